// Package rpc implements the consumer side of the Arrowhead SDK: the
// collaborator client for the orchestrator and service registry, the
// TTL-cached single-flight orchestration resolver, the token cache, the
// retrying request dispatcher, and the Framework facade that composes them
// into a single SendRequest operation.
package rpc
