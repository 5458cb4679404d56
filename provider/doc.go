// Package provider implements the server side of the SDK: declarative
// handler bindings with inferred HTTP methods, idempotent self-registration
// against the service registry, and a mutually-authenticated listener that
// routes inbound calls to the bound handlers.
package provider
