package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
)

func orchestratorStub(t *testing.T, calls *atomic.Int64, delay time.Duration, resp core.OrchestrationResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orchestrator/orchestration", r.URL.Path)

		var req core.OrchestrationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.OrchestrationFlags.Matchmaking)
		require.True(t, req.OrchestrationFlags.OverrideStore)

		calls.Inc()
		time.Sleep(delay)
		json.NewEncoder(w).Encode(resp)
	}))
}

func resolverFor(t *testing.T, serverURL string) (*OrchestrationResolver, *Config) {
	t.Helper()
	cfg := testConfig()
	cfg.OrchestratorHost, cfg.OrchestratorPort = hostPort(t, serverURL)
	return NewResolver(NewClient(cfg, nil, nil), cfg.OrchestrationTTL, nil), cfg
}

func TestResolveCoalescesConcurrentLookups(t *testing.T) {
	calls := atomic.NewInt64(0)
	resp := core.OrchestrationResponse{Response: []core.MatchedService{
		matchedCandidate("localhost", 8871, "/t", core.SecurityNotSecure, nil),
	}}
	srv := orchestratorStub(t, calls, 100*time.Millisecond, resp)
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)
	requester := core.Identity{SystemName: "testconsumer", Address: "localhost", Port: 9999}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
			require.NoError(t, err)
			require.Len(t, got.Response, 1)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
}

func TestResolveCachesUntilTTL(t *testing.T) {
	calls := atomic.NewInt64(0)
	resp := core.OrchestrationResponse{Response: []core.MatchedService{
		matchedCandidate("localhost", 8871, "/t", core.SecurityNotSecure, nil),
	}}
	srv := orchestratorStub(t, calls, 0, resp)
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)
	requester := core.Identity{SystemName: "testconsumer"}

	now := time.Now()
	r.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, err := r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, calls.Load())

	// Past the TTL the entry is gone and the next lookup goes upstream.
	now = now.Add(r.ttl + time.Second)
	_, err := r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestResolveInvalidateForcesRefresh(t *testing.T) {
	calls := atomic.NewInt64(0)
	resp := core.OrchestrationResponse{Response: []core.MatchedService{
		matchedCandidate("localhost", 8871, "/t", core.SecurityNotSecure, nil),
	}}
	srv := orchestratorStub(t, calls, 0, resp)
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)
	requester := core.Identity{SystemName: "testconsumer"}

	_, err := r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
	require.NoError(t, err)

	r.Invalidate("test-service", requester, ResolveOptions{})

	_, err = r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestResolveDistinctOptionsAreDistinctEntries(t *testing.T) {
	calls := atomic.NewInt64(0)
	resp := core.OrchestrationResponse{Response: []core.MatchedService{
		matchedCandidate("localhost", 8871, "/t", core.SecurityNotSecure, nil),
	}}
	srv := orchestratorStub(t, calls, 0, resp)
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)
	requester := core.Identity{SystemName: "testconsumer"}

	_, err := r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "test-service", requester, ResolveOptions{TargetSystem: "other"})
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "test-service", requester, ResolveOptions{Metadata: map[string]string{"k": "v"}})
	require.NoError(t, err)

	require.EqualValues(t, 3, calls.Load())
}

func TestResolveEmptyCandidateList(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := orchestratorStub(t, calls, 0, core.OrchestrationResponse{})
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)
	requester := core.Identity{SystemName: "testconsumer"}

	_, err := r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
	var orchErr *OrchestrationError
	require.ErrorAs(t, err, &orchErr)
	require.Equal(t, KindServiceNotAvailable, orchErr.Kind)
	require.Equal(t, "test-service", orchErr.Service)

	// Failures are not cached.
	_, err = r.Resolve(context.Background(), "test-service", requester, ResolveOptions{})
	require.Error(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestResolveRejectedByOrchestrator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)

	_, err := r.Resolve(context.Background(), "test-service", core.Identity{SystemName: "c"}, ResolveOptions{})
	var orchErr *OrchestrationError
	require.ErrorAs(t, err, &orchErr)
	require.Equal(t, KindRejected, orchErr.Kind)
	require.Equal(t, http.StatusBadRequest, orchErr.Status)
}

func TestResolveMalformedSuccessBodyIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)

	// The orchestrator answered, so a body that does not decode must not be
	// classified as unreachable.
	_, err := r.Resolve(context.Background(), "test-service", core.Identity{SystemName: "c"}, ResolveOptions{})
	var orchErr *OrchestrationError
	require.ErrorAs(t, err, &orchErr)
	require.Equal(t, KindRejected, orchErr.Kind)
	require.Equal(t, http.StatusOK, orchErr.Status)
	require.Error(t, orchErr.Err)
}

func TestResolveOrchestratorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	r, _ := resolverFor(t, addr)

	_, err := r.Resolve(context.Background(), "test-service", core.Identity{SystemName: "c"}, ResolveOptions{})
	var orchErr *OrchestrationError
	require.ErrorAs(t, err, &orchErr)
	require.Equal(t, KindUnreachable, orchErr.Kind)
}

func TestResolveCallerDeadline(t *testing.T) {
	calls := atomic.NewInt64(0)
	resp := core.OrchestrationResponse{Response: []core.MatchedService{
		matchedCandidate("localhost", 8871, "/t", core.SecurityNotSecure, nil),
	}}
	srv := orchestratorStub(t, calls, 500*time.Millisecond, resp)
	defer srv.Close()

	r, _ := resolverFor(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, "test-service", core.Identity{SystemName: "c"}, ResolveOptions{})
	require.ErrorIs(t, err, ErrTimeout)
}
