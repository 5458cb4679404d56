package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
	"github.com/cluster1-arrowcolony/arrowhead-go/security"
)

// Client talks to the Arrowhead core collaborators (orchestrator and
// service registry) over the trust-configured transport. It carries no
// caching or retry policy; those live in the resolver and dispatcher.
type Client struct {
	cfg   *Config
	httpc *http.Client
	log   *zap.Logger
}

// NewClient builds a collaborator client. trust may be nil when TLS is
// disabled; log may be nil.
func NewClient(cfg *Config, trust *security.TrustContext, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
	}
	if cfg.TLS && trust != nil {
		transport.TLSClientConfig = trust.ClientTLSConfig()
	}

	return &Client{
		cfg: cfg,
		httpc: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		log: log,
	}
}

// Orchestrate asks the orchestrator to resolve a service request into a
// ranked provider candidate list.
func (c *Client) Orchestrate(ctx context.Context, req *core.OrchestrationRequest) (*core.OrchestrationResponse, error) {
	service := req.RequestedService.ServiceDefinitionRequirement

	var resp core.OrchestrationResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.cfg.OrchestratorURL("/orchestration"), req, &resp)
	if err != nil {
		// A zero status means no response arrived at all; otherwise the
		// orchestrator was reached but its body did not decode.
		if status == 0 {
			return nil, &OrchestrationError{Kind: KindUnreachable, Service: service, Err: err}
		}
		return nil, &OrchestrationError{Kind: KindRejected, Service: service, Status: status, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &OrchestrationError{Kind: KindRejected, Service: service, Status: status}
	}
	return &resp, nil
}

// RegisterSystem registers this system with the service registry.
func (c *Client) RegisterSystem(ctx context.Context, reg core.SystemRegistration) (*core.System, error) {
	var sys core.System
	status, err := c.doJSON(ctx, http.MethodPost, c.cfg.ServiceRegistryURL("/register-system"), reg, &sys)
	if err != nil {
		return nil, fmt.Errorf("register system: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("register system: registry returned status %d", status)
	}
	return &sys, nil
}

// UnregisterSystem removes this system's registry record.
func (c *Client) UnregisterSystem(ctx context.Context, id core.Identity) error {
	q := url.Values{}
	q.Set("system_name", id.SystemName)
	q.Set("address", id.Address)
	q.Set("port", strconv.Itoa(id.Port))

	status, err := c.doJSON(ctx, http.MethodDelete, c.cfg.ServiceRegistryURL("/unregister-system?"+q.Encode()), nil, nil)
	if err != nil {
		return fmt.Errorf("unregister system: %w", err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("unregister system: registry returned status %d", status)
	}
	return nil
}

// RegisterService upserts one service registration. The registry keys the
// record by provider system, service definition and version, so repeating
// the call replaces the prior entry instead of erroring.
func (c *Client) RegisterService(ctx context.Context, reg core.ServiceRegistrationRequest) (*core.ServiceRecord, error) {
	var rec core.ServiceRecord
	status, err := c.doJSON(ctx, http.MethodPost, c.cfg.ServiceRegistryURL("/register"), reg, &rec)
	if err != nil {
		return nil, fmt.Errorf("register service %q: %w", reg.ServiceDefinition, err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("register service %q: registry returned status %d", reg.ServiceDefinition, status)
	}
	return &rec, nil
}

// UnregisterService removes one service registration.
func (c *Client) UnregisterService(ctx context.Context, id core.Identity, serviceDefinition, serviceURI string) error {
	q := url.Values{}
	q.Set("system_name", id.SystemName)
	q.Set("service_uri", serviceURI)
	q.Set("service_definition", serviceDefinition)
	q.Set("address", id.Address)
	q.Set("port", strconv.Itoa(id.Port))

	status, err := c.doJSON(ctx, http.MethodDelete, c.cfg.ServiceRegistryURL("/unregister?"+q.Encode()), nil, nil)
	if err != nil {
		return fmt.Errorf("unregister service %q: %w", serviceDefinition, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("unregister service %q: registry returned status %d", serviceDefinition, status)
	}
	return nil
}

// doJSON performs one JSON request and decodes the response body into out
// when out is non-nil and the status is 2xx. The status code is returned
// for the caller to classify.
func (c *Client) doJSON(ctx context.Context, method, rawurl string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpc.CloseIdleConnections()
}
