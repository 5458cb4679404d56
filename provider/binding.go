package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Params carry the query parameters of an inbound service call.
type Params struct {
	Query url.Values
}

// Handler serves a call that carries no business payload. Its binding
// defaults to GET.
type Handler func(ctx context.Context, p Params) (any, error)

// PayloadHandler serves a call whose body is a JSON payload. Its binding
// defaults to POST.
type PayloadHandler func(ctx context.Context, p Params, payload json.RawMessage) (any, error)

// Binding is one exposed operation: a service definition name bound to a
// URI, an HTTP method and a handler. Bindings are built declaratively with
// Handle/HandlePayload and collected into an immutable table consumed by
// NewRuntime.
type Binding struct {
	ServiceDefinition string
	URI               string
	Method            string
	Version           string

	hasPayload bool
	invoke     func(ctx context.Context, p Params, payload []byte) (any, error)
}

// Option adjusts a binding beyond its defaults.
type Option func(*Binding)

// WithMethod overrides the inferred HTTP method.
func WithMethod(method string) Option {
	return func(b *Binding) { b.Method = method }
}

// WithURI overrides the default /{system}/{service} URI.
func WithURI(uri string) Option {
	return func(b *Binding) { b.URI = uri }
}

// WithVersion overrides the default service version "1".
func WithVersion(version string) Option {
	return func(b *Binding) { b.Version = version }
}

// Handle binds a payload-less handler to a service definition. The method
// defaults to GET.
func Handle(serviceDefinition string, h Handler, opts ...Option) Binding {
	b := Binding{
		ServiceDefinition: serviceDefinition,
		Method:            http.MethodGet,
		Version:           "1",
		invoke: func(ctx context.Context, p Params, _ []byte) (any, error) {
			return h(ctx, p)
		},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// HandlePayload binds a payload-accepting handler to a service definition.
// The method defaults to POST.
func HandlePayload(serviceDefinition string, h PayloadHandler, opts ...Option) Binding {
	b := Binding{
		ServiceDefinition: serviceDefinition,
		Method:            http.MethodPost,
		Version:           "1",
		hasPayload:        true,
		invoke: func(ctx context.Context, p Params, payload []byte) (any, error) {
			return h(ctx, p, json.RawMessage(payload))
		},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
