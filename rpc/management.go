package rpc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
)

// Management wraps the administrative endpoints of the service registry and
// authorization systems. These are plain CRUD wrappers with no caching or
// retry policy; operators drive them from the CLI.
type Management struct {
	client *Client
}

// NewManagement builds a management client on top of a collaborator client.
func NewManagement(client *Client) *Management {
	return &Management{client: client}
}

// GetSystems lists all registered systems.
func (m *Management) GetSystems(ctx context.Context) ([]core.System, error) {
	var list core.SystemList
	status, err := m.client.doJSON(ctx, http.MethodGet, m.client.cfg.ServiceRegistryURL("/mgmt/systems?direction=ASC&sort_field=id"), nil, &list)
	if err != nil {
		return nil, fmt.Errorf("get systems: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get systems: registry returned status %d", status)
	}
	return list.Systems, nil
}

// GetSystem fetches one system by ID.
func (m *Management) GetSystem(ctx context.Context, id int) (*core.System, error) {
	var sys core.System
	status, err := m.client.doJSON(ctx, http.MethodGet, m.client.cfg.ServiceRegistryURL(fmt.Sprintf("/mgmt/systems/%d", id)), nil, &sys)
	if err != nil {
		return nil, fmt.Errorf("get system %d: %w", id, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get system %d: registry returned status %d", id, status)
	}
	return &sys, nil
}

// GetSystemByName scans the system listing for a name match.
func (m *Management) GetSystemByName(ctx context.Context, name string) (*core.System, error) {
	systems, err := m.GetSystems(ctx)
	if err != nil {
		return nil, err
	}
	for i := range systems {
		if systems[i].SystemName == name {
			return &systems[i], nil
		}
	}
	return nil, fmt.Errorf("system %q not found", name)
}

// RegisterSystem creates a system record through the management API.
func (m *Management) RegisterSystem(ctx context.Context, reg core.SystemRegistration) (*core.System, error) {
	var sys core.System
	status, err := m.client.doJSON(ctx, http.MethodPost, m.client.cfg.ServiceRegistryURL("/mgmt/systems"), reg, &sys)
	if err != nil {
		return nil, fmt.Errorf("register system: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("register system: registry returned status %d", status)
	}
	return &sys, nil
}

// UnregisterSystem deletes a system record by ID.
func (m *Management) UnregisterSystem(ctx context.Context, id int) error {
	status, err := m.client.doJSON(ctx, http.MethodDelete, m.client.cfg.ServiceRegistryURL(fmt.Sprintf("/mgmt/systems/%d", id)), nil, nil)
	if err != nil {
		return fmt.Errorf("unregister system %d: %w", id, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("unregister system %d: registry returned status %d", id, status)
	}
	return nil
}

// GetServices lists all registered services.
func (m *Management) GetServices(ctx context.Context) ([]core.ServiceRecord, error) {
	var list core.ServiceList
	status, err := m.client.doJSON(ctx, http.MethodGet, m.client.cfg.ServiceRegistryURL("/mgmt?direction=ASC&sort_field=id"), nil, &list)
	if err != nil {
		return nil, fmt.Errorf("get services: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get services: registry returned status %d", status)
	}
	return list.Services, nil
}

// RegisterService creates a service record through the management API.
func (m *Management) RegisterService(ctx context.Context, reg core.ServiceRegistrationRequest) (*core.ServiceRecord, error) {
	var rec core.ServiceRecord
	status, err := m.client.doJSON(ctx, http.MethodPost, m.client.cfg.ServiceRegistryURL("/mgmt/services"), reg, &rec)
	if err != nil {
		return nil, fmt.Errorf("register service: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("register service: registry returned status %d", status)
	}
	return &rec, nil
}

// UnregisterService deletes a service record by ID.
func (m *Management) UnregisterService(ctx context.Context, id int) error {
	status, err := m.client.doJSON(ctx, http.MethodDelete, m.client.cfg.ServiceRegistryURL(fmt.Sprintf("/mgmt/services/%d", id)), nil, nil)
	if err != nil {
		return fmt.Errorf("unregister service %d: %w", id, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("unregister service %d: registry returned status %d", id, status)
	}
	return nil
}

// GetAuthorizations lists intra-cloud authorization rules.
func (m *Management) GetAuthorizations(ctx context.Context) ([]core.AuthorizationRule, error) {
	var list core.AuthorizationList
	status, err := m.client.doJSON(ctx, http.MethodGet, m.client.cfg.AuthorizationURL("/mgmt/intracloud"), nil, &list)
	if err != nil {
		return nil, fmt.Errorf("get authorizations: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get authorizations: authorization returned status %d", status)
	}
	return list.Authorizations, nil
}

// AddAuthorization grants a consumer access to provider services.
func (m *Management) AddAuthorization(ctx context.Context, req core.AddAuthorizationRequest) error {
	status, err := m.client.doJSON(ctx, http.MethodPost, m.client.cfg.AuthorizationURL("/mgmt/intracloud"), req, nil)
	if err != nil {
		return fmt.Errorf("add authorization: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("add authorization: authorization returned status %d", status)
	}
	return nil
}
