package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
	"github.com/cluster1-arrowcolony/arrowhead-go/rpc"
	"github.com/cluster1-arrowcolony/arrowhead-go/security"
)

// State is the lifecycle state of a Runtime.
type State int32

const (
	StateCreated State = iota
	StateRegistering
	StateServing
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRegistering:
		return "registering"
	case StateServing:
		return "serving"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Runtime owns a provider's binding table, registers the bindings with the
// service registry, and serves them on a mutually-authenticated listener.
type Runtime struct {
	cfg      *rpc.Config
	trust    *security.TrustContext
	client   *rpc.Client
	identity core.Identity
	log      *zap.Logger

	bindings []Binding

	state    *atomic.Int32
	server   *http.Server
	listener net.Listener
}

// NewRuntime resolves the binding descriptors into a runtime. When TLS is
// enabled the trust material is loaded from the configured keystore and
// truststore and the system name defaults to the certificate-bound one.
// Bindings with duplicate (uri, method) pairs are rejected.
func NewRuntime(cfg *rpc.Config, log *zap.Logger, bindings ...Binding) (*Runtime, error) {
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
	if cfg.SystemName == "" {
		return nil, fmt.Errorf("provider needs a system name")
	}

	resolved := make([]Binding, len(bindings))
	copy(resolved, bindings)

	seen := make(map[string]string, len(resolved))
	for i := range resolved {
		if resolved[i].URI == "" {
			resolved[i].URI = "/" + cfg.SystemName + "/" + resolved[i].ServiceDefinition
		}
		routeKey := resolved[i].Method + " " + resolved[i].URI
		if prior, ok := seen[routeKey]; ok {
			return nil, fmt.Errorf("bindings %q and %q collide on %s", prior, resolved[i].ServiceDefinition, routeKey)
		}
		seen[routeKey] = resolved[i].ServiceDefinition
	}

	return &Runtime{
		cfg:      cfg,
		trust:    trust,
		client:   rpc.NewClient(cfg, trust, log),
		identity: core.Identity{SystemName: cfg.SystemName, Address: cfg.Address, Port: cfg.Port},
		log:      log.With(zap.String("system", cfg.SystemName)),
		bindings: resolved,
		state:    atomic.NewInt32(int32(StateCreated)),
	}, nil
}

// State returns the current lifecycle state.
func (rt *Runtime) State() State { return State(rt.state.Load()) }

// Identity returns the provider's identity.
func (rt *Runtime) Identity() core.Identity { return rt.identity }

// Bindings returns the resolved binding table.
func (rt *Runtime) Bindings() []Binding { return rt.bindings }

// Addr returns the bound listener address while serving, which carries the
// concrete port when the configuration asked for port 0.
func (rt *Runtime) Addr() net.Addr {
	if rt.listener == nil {
		return nil
	}
	return rt.listener.Addr()
}

// Start registers every binding with the service registry, then opens the
// listener and begins serving. Any registration failure aborts startup,
// leaves the runtime in Created state, and surfaces as *RegistrationError.
func (rt *Runtime) Start(ctx context.Context) error {
	if !rt.state.CompareAndSwap(int32(StateCreated), int32(StateRegistering)) {
		return fmt.Errorf("cannot start runtime in state %s", rt.State())
	}

	for _, b := range rt.bindings {
		if _, err := rt.client.RegisterService(ctx, rt.registrationFor(b)); err != nil {
			rt.state.Store(int32(StateCreated))
			return &RegistrationError{ServiceDefinition: b.ServiceDefinition, Err: err}
		}
		rt.log.Info("service registered",
			zap.String("service", b.ServiceDefinition),
			zap.String("method", b.Method),
			zap.String("uri", b.URI))
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", rt.cfg.Address, rt.cfg.Port))
	if err != nil {
		rt.state.Store(int32(StateCreated))
		return fmt.Errorf("listen: %w", err)
	}
	if rt.cfg.TLS {
		// The TLS handshake authenticates the peer before any application
		// data is read.
		ln = tls.NewListener(ln, rt.trust.ServerTLSConfig())
	}
	rt.listener = ln

	rt.server = &http.Server{
		Handler:           rt.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := rt.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			rt.log.Error("listener failed", zap.Error(err))
		}
	}()

	rt.state.Store(int32(StateServing))
	rt.log.Info("provider serving", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop deregisters every binding best-effort, then shuts the listener down
// and releases its resources. Stop is idempotent: calling it on a runtime
// that is not serving is a no-op.
func (rt *Runtime) Stop(ctx context.Context) error {
	if !rt.state.CompareAndSwap(int32(StateServing), int32(StateStopping)) {
		return nil
	}

	for _, b := range rt.bindings {
		if err := rt.client.UnregisterService(ctx, rt.identity, b.ServiceDefinition, b.URI); err != nil {
			rt.log.Warn("deregistration failed",
				zap.String("service", b.ServiceDefinition),
				zap.Error(err))
		}
	}

	err := rt.server.Shutdown(ctx)
	rt.listener = nil
	rt.state.Store(int32(StateStopped))
	rt.log.Info("provider stopped")
	return err
}

func (rt *Runtime) registrationFor(b Binding) core.ServiceRegistrationRequest {
	secure := core.SecurityToken
	authInfo := ""
	if rt.cfg.TLS {
		authInfo = rt.trust.AuthenticationInfo()
	} else {
		secure = core.SecurityNotSecure
	}

	return core.ServiceRegistrationRequest{
		EndOfValidity: "",
		Interfaces:    []string{rt.cfg.Interface()},
		Metadata:      map[string]string{"http-method": b.Method},
		ProviderSystem: core.ProviderSystem{
			SystemName:         rt.identity.SystemName,
			Address:            rt.identity.Address,
			Port:               rt.identity.Port,
			AuthenticationInfo: authInfo,
		},
		Secure:            secure,
		ServiceDefinition: b.ServiceDefinition,
		ServiceURI:        b.URI,
		Version:           b.Version,
	}
}

func (rt *Runtime) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(rt.log))

	for _, b := range rt.bindings {
		r.Method(b.Method, b.URI, rt.handlerFor(b))
	}
	return r
}

// handlerFor wraps one binding into an HTTP handler. Handler faults are
// contained here: they become an opaque 500 and never take the listener
// down.
func (rt *Runtime) handlerFor(b Binding) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				rt.log.Error("handler panicked",
					zap.String("service", b.ServiceDefinition),
					zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError)
			}
		}()

		query := req.URL.Query()
		// Tokens may also travel as a query parameter; they are transport
		// concern, not handler input.
		query.Del("token")

		var payload []byte
		if b.hasPayload {
			data, err := io.ReadAll(req.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest)
				return
			}
			if !json.Valid(data) {
				writeError(w, http.StatusBadRequest)
				return
			}
			payload = data
		}

		result, err := b.invoke(req.Context(), Params{Query: query}, payload)
		if err != nil {
			rt.log.Error("handler failed",
				zap.String("service", b.ServiceDefinition),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
}

// requestLogger logs one line per served request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request served",
				zap.String("method", r.Method),
				zap.String("uri", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
