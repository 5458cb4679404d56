package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
	"github.com/cluster1-arrowcolony/arrowhead-go/security"
)

// Params carry the query parameters and payload of a consumer request.
type Params struct {
	QueryParams url.Values
	Payload     []byte
}

// EmptyParams returns params with no query and no payload.
func EmptyParams() Params {
	return Params{QueryParams: url.Values{}}
}

// Framework composes the resolver, token cache and dispatcher into the
// single consumer-facing SendRequest operation. It exclusively owns its
// resolver and token cache for its lifetime.
type Framework struct {
	cfg      *Config
	trust    *security.TrustContext
	identity core.Identity

	client     *Client
	resolver   *OrchestrationResolver
	tokens     *TokenCache
	dispatcher *Dispatcher
	log        *zap.Logger
}

// New builds a Framework from configuration. When TLS is enabled the trust
// material is loaded from the configured keystore and truststore, and the
// system name defaults to the one bound into the certificate.
func New(cfg *Config, log *zap.Logger) (*Framework, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var trust *security.TrustContext
	if cfg.TLS {
		var err error
		trust, err = security.Load(cfg.KeystorePath, cfg.KeystorePassword, cfg.TruststorePath)
		if err != nil {
			return nil, err
		}
		if cfg.SystemName == "" {
			cfg.SystemName = trust.SystemName()
		}
	}

	client := NewClient(cfg, trust, log)

	return &Framework{
		cfg:        cfg,
		trust:      trust,
		identity:   core.Identity{SystemName: cfg.SystemName, Address: cfg.Address, Port: cfg.Port},
		client:     client,
		resolver:   NewResolver(client, cfg.OrchestrationTTL, log),
		tokens:     NewTokenCache(cfg.TokenSkew),
		dispatcher: NewDispatcher(cfg, trust, log),
		log:        log,
	}, nil
}

// Identity returns this system's identity.
func (f *Framework) Identity() core.Identity { return f.identity }

// Trust returns the loaded trust context, or nil when TLS is disabled.
func (f *Framework) Trust() *security.TrustContext { return f.trust }

// Client returns the collaborator client shared with the provider runtime.
func (f *Framework) Client() *Client { return f.client }

// Management returns the administrative API client.
func (f *Framework) Management() *Management { return NewManagement(f.client) }

// SendRequest resolves a service definition to a provider, attaches the
// authorization token when required, dispatches the request and returns the
// response body. An authorization failure triggers exactly one
// invalidate-and-retry cycle before surfacing.
func (f *Framework) SendRequest(ctx context.Context, serviceDefinition string, params Params) ([]byte, error) {
	return f.sendRequest(ctx, serviceDefinition, params, ResolveOptions{})
}

// SendRequestTo is SendRequest restricted to one provider system.
func (f *Framework) SendRequestTo(ctx context.Context, serviceDefinition, targetSystem string, params Params) ([]byte, error) {
	return f.sendRequest(ctx, serviceDefinition, params, ResolveOptions{TargetSystem: targetSystem})
}

func (f *Framework) sendRequest(ctx context.Context, serviceDefinition string, params Params, opts ResolveOptions) ([]byte, error) {
	matched, token, err := f.resolveWithToken(ctx, serviceDefinition, opts)
	if err != nil {
		return nil, err
	}

	body, err := f.dispatch(ctx, *matched, params, token)
	if err == nil {
		return body, nil
	}

	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		return nil, err
	}

	// The provider may have moved or the cached token gone stale. Drop both
	// caches, re-resolve once, and try again; the second failure surfaces.
	f.log.Debug("authorization rejected, re-resolving",
		zap.String("service", serviceDefinition),
		zap.Int("status", authErr.Status))
	f.invalidate(serviceDefinition, matched.Provider.SystemName, opts)

	matched, token, err = f.resolveWithToken(ctx, serviceDefinition, opts)
	if err != nil {
		return nil, err
	}
	return f.dispatch(ctx, *matched, params, token)
}

// resolveWithToken resolves the service and returns the primary candidate
// along with a usable token for it, re-resolving once when a token is
// required but neither cached nor carried by the cached result.
func (f *Framework) resolveWithToken(ctx context.Context, serviceDefinition string, opts ResolveOptions) (*core.MatchedService, *security.Token, error) {
	resp, err := f.resolver.Resolve(ctx, serviceDefinition, f.identity, opts)
	if err != nil {
		return nil, nil, err
	}
	matched := &resp.Response[0]
	f.storeEmbeddedToken(serviceDefinition, matched)

	token := f.tokens.TokenFor(f.identity.SystemName, matched.Provider.SystemName, serviceDefinition)
	if token == nil && matched.Secure == core.SecurityToken {
		// Token expired since the result was cached; a fresh orchestration
		// carries a fresh token.
		f.resolver.Invalidate(serviceDefinition, f.identity, opts)
		resp, err = f.resolver.Resolve(ctx, serviceDefinition, f.identity, opts)
		if err != nil {
			return nil, nil, err
		}
		matched = &resp.Response[0]
		f.storeEmbeddedToken(serviceDefinition, matched)
		token = f.tokens.TokenFor(f.identity.SystemName, matched.Provider.SystemName, serviceDefinition)
	}
	return matched, token, nil
}

func (f *Framework) storeEmbeddedToken(serviceDefinition string, matched *core.MatchedService) {
	raw := matched.AuthorizationTokens[f.cfg.Interface()]
	if raw == "" {
		return
	}
	tok, err := security.ParseToken(raw)
	if err != nil {
		f.log.Warn("discarding unparsable embedded token",
			zap.String("service", serviceDefinition),
			zap.String("provider", matched.Provider.SystemName),
			zap.Error(err))
		return
	}
	f.tokens.Store(f.identity.SystemName, matched.Provider.SystemName, serviceDefinition, tok)
}

func (f *Framework) invalidate(serviceDefinition, providerName string, opts ResolveOptions) {
	f.resolver.Invalidate(serviceDefinition, f.identity, opts)
	f.tokens.Drop(f.identity.SystemName, providerName, serviceDefinition)
}

func (f *Framework) dispatch(ctx context.Context, matched core.MatchedService, params Params, token *security.Token) ([]byte, error) {
	return f.dispatcher.Dispatch(ctx, EndpointFor(matched), methodFor(matched, params), params.QueryParams, params.Payload, token)
}

// methodFor picks the HTTP method the provider registered for the service,
// falling back on the payload arity convention when the metadata is absent.
func methodFor(matched core.MatchedService, params Params) string {
	if m, ok := matched.Metadata["http-method"]; ok && m != "" {
		return m
	}
	if len(params.Payload) > 0 {
		return http.MethodPost
	}
	return http.MethodGet
}

// Close releases pooled connections.
func (f *Framework) Close() {
	f.client.CloseIdleConnections()
	f.dispatcher.CloseIdleConnections()
}
