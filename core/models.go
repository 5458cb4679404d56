package core

import "fmt"

// Identity is the certificate-bound identity of a system: its common name
// together with the address and port it is reachable on.
type Identity struct {
	SystemName string
	Address    string
	Port       int
}

// String returns the identity in name@address:port form.
func (id Identity) String() string {
	return fmt.Sprintf("%s@%s:%d", id.SystemName, id.Address, id.Port)
}

// SystemRegistration is the request body for registering a system with the
// service registry.
type SystemRegistration struct {
	SystemName         string            `json:"systemName"`
	Address            string            `json:"address"`
	Port               int               `json:"port"`
	AuthenticationInfo string            `json:"authenticationInfo"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// System is a registered Arrowhead system record.
type System struct {
	ID                 int               `json:"id"`
	SystemName         string            `json:"systemName"`
	Address            string            `json:"address"`
	Port               int               `json:"port"`
	AuthenticationInfo string            `json:"authenticationInfo,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          string            `json:"createdAt,omitempty"`
	UpdatedAt          string            `json:"updatedAt,omitempty"`
}

// SystemList is the paged response of the registry's system listing.
type SystemList struct {
	Systems []System `json:"data"`
	Count   int      `json:"count"`
}

// ServiceDefinition is a named capability record.
type ServiceDefinition struct {
	ID                int    `json:"id"`
	ServiceDefinition string `json:"serviceDefinition"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// Interface is a service interface record, e.g. HTTP-SECURE-JSON.
type Interface struct {
	ID            int    `json:"id"`
	InterfaceName string `json:"interfaceName"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// ProviderSystem identifies the provider inside a service registration.
type ProviderSystem struct {
	SystemName         string            `json:"systemName"`
	Address            string            `json:"address"`
	Port               int               `json:"port"`
	AuthenticationInfo string            `json:"authenticationInfo"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// ServiceRegistrationRequest is the request body of
// POST /serviceregistry/register.
type ServiceRegistrationRequest struct {
	EndOfValidity     string            `json:"endOfValidity"`
	Interfaces        []string          `json:"interfaces"`
	Metadata          map[string]string `json:"metadata"`
	ProviderSystem    ProviderSystem    `json:"providerSystem"`
	Secure            string            `json:"secure"`
	ServiceDefinition string            `json:"serviceDefinition"`
	ServiceURI        string            `json:"serviceUri"`
	Version           string            `json:"version"`
}

// ServiceRecord is a registered service as returned by the registry.
type ServiceRecord struct {
	ID                int               `json:"id"`
	ServiceDefinition ServiceDefinition `json:"serviceDefinition"`
	Provider          System            `json:"provider"`
	ServiceURI        string            `json:"serviceUri"`
	Secure            string            `json:"secure"`
	Version           int               `json:"version"`
	Interfaces        []Interface       `json:"interfaces"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// ServiceList is the paged response of the registry's service listing.
type ServiceList struct {
	Services []ServiceRecord `json:"data"`
	Count    int             `json:"count"`
}

// RequesterSystem identifies the consumer inside an orchestration request.
type RequesterSystem struct {
	SystemName         string            `json:"systemName"`
	Address            string            `json:"address"`
	Port               int               `json:"port"`
	AuthenticationInfo string            `json:"authenticationInfo,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// OrchestrationFlags tune the orchestrator's matching behavior.
type OrchestrationFlags struct {
	OnlyPreferred          bool `json:"onlyPreferred"`
	OverrideStore          bool `json:"overrideStore"`
	ExternalServiceRequest bool `json:"externalServiceRequest"`
	EnableInterCloud       bool `json:"enableInterCloud"`
	EnableQoS              bool `json:"enableQoS"`
	Matchmaking            bool `json:"matchmaking"`
	MetadataSearch         bool `json:"metadataSearch"`
	TriggerInterCloud      bool `json:"triggerInterCloud"`
	PingProviders          bool `json:"pingProviders"`
}

// RequestedService names the service a consumer wants resolved.
type RequestedService struct {
	InterfaceRequirements         []string          `json:"interfaceRequirements"`
	SecurityRequirements          []string          `json:"securityRequirements"`
	ServiceDefinitionRequirement  string            `json:"serviceDefinitionRequirement"`
	MetadataRequirements          map[string]string `json:"metadataRequirements"`
	VersionRequirement            *int              `json:"versionRequirement,omitempty"`
	MinVersionRequirement         *int              `json:"minVersionRequirement,omitempty"`
	MaxVersionRequirement         *int              `json:"maxVersionRequirement,omitempty"`
	PingProviders                 bool              `json:"pingProviders"`
}

// OrchestrationRequest is the request body of POST /orchestrator/orchestration.
type OrchestrationRequest struct {
	Commands           map[string]string  `json:"commands"`
	OrchestrationFlags OrchestrationFlags `json:"orchestrationFlags"`
	PreferredProviders []any              `json:"preferredProviders"`
	QoSRequirements    map[string]string  `json:"qosRequirements"`
	RequestedService   RequestedService   `json:"requestedService"`
	RequesterSystem    RequesterSystem    `json:"requesterSystem"`
}

// MatchedService is one provider candidate in an orchestration response.
type MatchedService struct {
	Provider            System            `json:"provider"`
	Service             ServiceDefinition `json:"service"`
	ServiceURI          string            `json:"serviceUri"`
	Secure              string            `json:"secure"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Interfaces          []Interface       `json:"interfaces"`
	Version             int               `json:"version"`
	AuthorizationTokens map[string]string `json:"authorizationTokens,omitempty"`
	Warnings            []string          `json:"warnings,omitempty"`
}

// OrchestrationResponse is the ranked candidate list returned by the
// orchestrator. An empty list means no reachable provider matched.
type OrchestrationResponse struct {
	Response []MatchedService `json:"response"`
}

// AuthorizationRule grants a consumer access to services of providers.
type AuthorizationRule struct {
	ID                int               `json:"id"`
	ConsumerSystem    System            `json:"consumerSystem"`
	ProviderSystem    System            `json:"providerSystem"`
	ServiceDefinition ServiceDefinition `json:"serviceDefinition"`
	Interfaces        []Interface       `json:"interfaces"`
}

// AuthorizationList is the paged response of the authorization listing.
type AuthorizationList struct {
	Authorizations []AuthorizationRule `json:"data"`
	Count          int                 `json:"count"`
}

// AddAuthorizationRequest creates intra-cloud authorization rules.
type AddAuthorizationRequest struct {
	ConsumerID           int   `json:"consumerId"`
	ProviderIDs          []int `json:"providerIds"`
	InterfaceIDs         []int `json:"interfaceIds"`
	ServiceDefinitionIDs []int `json:"serviceDefinitionIds"`
}

const (
	// InterfaceSecureJSON is the interface this SDK speaks.
	InterfaceSecureJSON = "HTTP-SECURE-JSON"
	// InterfaceInsecureJSON is used when TLS is disabled.
	InterfaceInsecureJSON = "HTTP-INSECURE-JSON"

	// SecurityToken marks services that require a bearer token per call.
	SecurityToken = "TOKEN"
	// SecurityCertificate marks services protected by mTLS alone.
	SecurityCertificate = "CERTIFICATE"
	// SecurityNotSecure marks services with no authentication.
	SecurityNotSecure = "NOT_SECURE"
)
