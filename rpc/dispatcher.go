package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
	"github.com/cluster1-arrowcolony/arrowhead-go/security"
)

// Endpoint is a concrete reachable provider endpoint resolved by
// orchestration.
type Endpoint struct {
	Address string
	Port    int
	URI     string
	Secure  string
}

// EndpointFor extracts the dispatchable endpoint from a matched candidate.
func EndpointFor(m core.MatchedService) Endpoint {
	return Endpoint{
		Address: m.Provider.Address,
		Port:    m.Provider.Port,
		URI:     m.ServiceURI,
		Secure:  m.Secure,
	}
}

// Dispatcher performs the mutually-authenticated HTTP exchange against a
// resolved endpoint. Connection-level failures and 502/503/504 are retried
// with exponential backoff and jitter up to the configured attempt count;
// 401/403 surface immediately as *AuthorizationError so the caller can
// invalidate its orchestration cache; any other non-2xx fails immediately
// as *RequestError. The connection pool is bounded and reused across
// dispatches to the same endpoint.
type Dispatcher struct {
	cfg   *Config
	httpc *http.Client
	log   *zap.Logger
}

// NewDispatcher builds a dispatcher. trust may be nil when TLS is disabled.
func NewDispatcher(cfg *Config, trust *security.TrustContext, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}

	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.TLS && trust != nil {
		transport.TLSClientConfig = trust.ClientTLSConfig()
	}

	return &Dispatcher{
		cfg: cfg,
		// No client-level timeout: the per-dispatch context bounds the sum
		// of attempts.
		httpc: &http.Client{Transport: transport},
		log:   log,
	}
}

// Dispatch sends one request to the endpoint and returns the response body
// verbatim. The token is attached as a bearer authorization header when
// present and the endpoint's security level requires it.
func (d *Dispatcher) Dispatch(ctx context.Context, ep Endpoint, method string, query url.Values, payload []byte, token *security.Token) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()
	}

	target := fmt.Sprintf("%s://%s:%d%s", d.cfg.Scheme(), ep.Address, ep.Port, ep.URI)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	requestID := uuid.NewString()

	var body []byte
	attempt := 0
	op := func() error {
		attempt++

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", requestID)
		if token != nil && ep.Secure == core.SecurityToken {
			req.Header.Set("Authorization", "Bearer "+token.Raw)
		}

		resp, err := d.httpc.Do(req)
		if err != nil {
			d.log.Debug("dispatch attempt failed",
				zap.String("request_id", requestID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			body = data
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&AuthorizationError{Status: resp.StatusCode, Body: data})
		case resp.StatusCode == http.StatusBadGateway ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout:
			d.log.Debug("dispatch attempt got retryable status",
				zap.String("request_id", requestID),
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			return fmt.Errorf("provider returned status %d", resp.StatusCode)
		default:
			return backoff.Permanent(&RequestError{Status: resp.StatusCode, Body: data})
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.RetryBaseDelay
	bo.MaxInterval = d.cfg.RetryMaxDelay
	bo.MaxElapsedTime = 0 // the context is the overall deadline

	maxRetries := uint64(0)
	if d.cfg.MaxAttempts > 1 {
		maxRetries = uint64(d.cfg.MaxAttempts - 1)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("dispatch %s %s: %w", method, target, ErrTimeout)
		}
		return nil, err
	}
	return body, nil
}

// CloseIdleConnections releases pooled connections.
func (d *Dispatcher) CloseIdleConnections() {
	d.httpc.CloseIdleConnections()
}
