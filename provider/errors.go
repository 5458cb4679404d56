package provider

import "fmt"

// RegistrationError aborts provider startup: one of the bindings could not
// be registered with the service registry.
type RegistrationError struct {
	ServiceDefinition string
	Err               error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration of %q failed: %v", e.ServiceDefinition, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
