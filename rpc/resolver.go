package rpc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
)

// ResolveOptions narrow an orchestration query beyond the service name.
type ResolveOptions struct {
	// TargetSystem restricts matching to one provider system name.
	TargetSystem string
	// Metadata adds metadata requirements to the query.
	Metadata map[string]string
}

// fingerprint returns a canonical string of the options for cache keying.
func (o ResolveOptions) fingerprint() string {
	if o.TargetSystem == "" && len(o.Metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(o.Metadata))
	for k := range o.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(o.TargetSystem)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, o.Metadata[k])
	}
	return b.String()
}

type cacheEntry struct {
	resp    *core.OrchestrationResponse
	expires time.Time
}

// OrchestrationResolver resolves service definition names into provider
// candidate lists via the orchestrator, caching successful results with a
// TTL and coalescing concurrent identical lookups into one upstream query.
type OrchestrationResolver struct {
	client *Client
	ttl    time.Duration
	log    *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

// NewResolver builds a resolver on top of a collaborator client.
func NewResolver(client *Client, ttl time.Duration, log *zap.Logger) *OrchestrationResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrchestrationResolver{
		client: client,
		ttl:    ttl,
		log:    log,
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

func cacheKey(serviceDefinition, requester, fingerprint string) string {
	return serviceDefinition + "|" + requester + "|" + fingerprint
}

// Resolve returns the orchestration result for a service definition. Within
// the TTL window repeated calls with the same key are served from cache;
// concurrent cache misses for the same key share a single upstream query.
// The wait is bounded by the query's own timeout and by ctx.
func (r *OrchestrationResolver) Resolve(ctx context.Context, serviceDefinition string, requester core.Identity, opts ResolveOptions) (*core.OrchestrationResponse, error) {
	key := cacheKey(serviceDefinition, requester.SystemName, opts.fingerprint())

	if resp := r.cached(key); resp != nil {
		return resp, nil
	}

	ch := r.group.DoChan(key, func() (any, error) {
		// Detached from the first caller so its cancellation does not fail
		// the other callers sharing this flight.
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.client.cfg.RequestTimeout)
		defer cancel()

		resp, err := r.client.Orchestrate(qctx, buildOrchestrationRequest(r.client.cfg, serviceDefinition, requester, opts))
		if err != nil {
			return nil, err
		}
		if len(resp.Response) == 0 {
			return nil, &OrchestrationError{Kind: KindServiceNotAvailable, Service: serviceDefinition}
		}

		r.mu.Lock()
		r.cache[key] = cacheEntry{resp: resp, expires: r.now().Add(r.ttl)}
		r.mu.Unlock()

		r.log.Debug("orchestration resolved",
			zap.String("service", serviceDefinition),
			zap.Int("candidates", len(resp.Response)))
		return resp, nil
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("resolve %q: %w", serviceDefinition, ErrTimeout)
		}
		return nil, err
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*core.OrchestrationResponse), nil
	}
}

// Invalidate drops the cache entry for a key immediately, forcing the next
// Resolve to query upstream again. Callers use this after an authorization
// failure from the dispatcher.
func (r *OrchestrationResolver) Invalidate(serviceDefinition string, requester core.Identity, opts ResolveOptions) {
	key := cacheKey(serviceDefinition, requester.SystemName, opts.fingerprint())
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}

func (r *OrchestrationResolver) cached(key string) *core.OrchestrationResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[key]
	if !ok {
		return nil
	}
	if r.now().After(entry.expires) {
		delete(r.cache, key)
		return nil
	}
	return entry.resp
}

// buildOrchestrationRequest assembles the orchestrator query body with the
// default flags (matchmaking against the store override) and the interface
// and security requirements this SDK speaks.
func buildOrchestrationRequest(cfg *Config, serviceDefinition string, requester core.Identity, opts ResolveOptions) *core.OrchestrationRequest {
	secLevel := core.SecurityToken
	if !cfg.TLS {
		secLevel = core.SecurityNotSecure
	}

	metadata := map[string]string{}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	req := &core.OrchestrationRequest{
		Commands: map[string]string{},
		OrchestrationFlags: core.OrchestrationFlags{
			Matchmaking:   true,
			OverrideStore: true,
		},
		PreferredProviders: []any{},
		QoSRequirements:    map[string]string{},
		RequestedService: core.RequestedService{
			InterfaceRequirements:        []string{cfg.Interface()},
			SecurityRequirements:         []string{secLevel},
			ServiceDefinitionRequirement: serviceDefinition,
			MetadataRequirements:         metadata,
		},
		RequesterSystem: core.RequesterSystem{
			SystemName: requester.SystemName,
			Address:    requester.Address,
			Port:       requester.Port,
		},
	}
	if opts.TargetSystem != "" {
		req.RequestedService.MetadataRequirements["target-system"] = opts.TargetSystem
	}
	return req
}
