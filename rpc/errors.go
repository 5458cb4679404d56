package rpc

import (
	"errors"
	"fmt"
)

// ErrTimeout marks operations abandoned because their deadline elapsed.
var ErrTimeout = errors.New("operation timed out")

// OrchestrationErrorKind classifies why a resolution failed.
type OrchestrationErrorKind int

const (
	// KindUnreachable: the orchestrator could not be reached at all.
	KindUnreachable OrchestrationErrorKind = iota
	// KindRejected: the orchestrator answered with a non-2xx status.
	KindRejected
	// KindServiceNotAvailable: the orchestrator answered with an empty
	// candidate list.
	KindServiceNotAvailable
)

func (k OrchestrationErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindServiceNotAvailable:
		return "service not available"
	}
	return "unknown"
}

// OrchestrationError reports a failed resolution of a service definition.
type OrchestrationError struct {
	Kind    OrchestrationErrorKind
	Service string
	Status  int
	Err     error
}

func (e *OrchestrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orchestration of %q failed (%s): %v", e.Service, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("orchestration of %q failed (%s): status %d", e.Service, e.Kind, e.Status)
	}
	return fmt.Sprintf("orchestration of %q failed (%s)", e.Service, e.Kind)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// AuthorizationError is a 401/403 from a provider. The dispatcher never
// retries it; the Framework invalidates its orchestration cache entry and
// re-resolves exactly once before surfacing it.
type AuthorizationError struct {
	Status int
	Body   []byte
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization rejected with status %d", e.Status)
}

// RequestError is a non-retryable application-level rejection, surfaced
// with the provider's status and body untouched.
type RequestError struct {
	Status int
	Body   []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected with status %d: %s", e.Status, string(e.Body))
}
