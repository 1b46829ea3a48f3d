package models

import "time"

// CreateToolServerRequest represents the request body for registering a tool server
type CreateToolServerRequest struct {
	Name        string                 `json:"name" binding:"required,min=1,max=100"`
	Description string                 `json:"description"`
	URL         string                 `json:"server_url" binding:"required"`
	APIKey      string                 `json:"api_key"`
	Transport   TransportKind          `json:"transport_type"`
	IsEnabled   *bool                  `json:"is_enabled"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// ToDomain converts CreateToolServerRequest DTO to domain ToolServer model
func (req *CreateToolServerRequest) ToDomain() *ToolServer {
	now := time.Now().UTC()

	transport := req.Transport
	if transport == "" {
		transport = TransportSSE
	}

	state := StateActive
	if req.IsEnabled != nil && !*req.IsEnabled {
		state = StateDisabled
	}

	return &ToolServer{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		APIKey:      req.APIKey,
		Transport:   transport,
		State:       state,
		Health:      HealthUnknown,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UpdateToolServerRequest carries a partial update; nil fields are left untouched
type UpdateToolServerRequest struct {
	Name        *string                `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string                `json:"description"`
	URL         *string                `json:"server_url"`
	APIKey      *string                `json:"api_key"`
	Transport   *TransportKind         `json:"transport_type"`
	IsEnabled   *bool                  `json:"is_enabled"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Apply merges the update into server
func (req *UpdateToolServerRequest) Apply(server *ToolServer) {
	if req.Name != nil {
		server.Name = *req.Name
	}
	if req.Description != nil {
		server.Description = *req.Description
	}
	if req.URL != nil {
		server.URL = *req.URL
	}
	if req.APIKey != nil {
		server.APIKey = *req.APIKey
	}
	if req.Transport != nil {
		server.Transport = *req.Transport
	}
	if req.IsEnabled != nil {
		if *req.IsEnabled {
			server.State = StateActive
		} else {
			server.State = StateDisabled
		}
	}
	if req.Metadata != nil {
		server.Metadata = req.Metadata
	}
	server.UpdatedAt = time.Now().UTC()
}

// ToolServerResponse represents the response structure for a single tool server.
// The stored API key is never returned.
type ToolServerResponse struct {
	Id              string                 `json:"id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	URL             string                 `json:"server_url"`
	Transport       TransportKind          `json:"transport_type"`
	HasAPIKey       bool                   `json:"has_api_key"`
	IsEnabled       bool                   `json:"is_enabled"`
	State           LifecycleState         `json:"state"`
	Status          HealthStatus           `json:"status"`
	LastHealthCheck *time.Time             `json:"last_health_check,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ToolServerListResponse represents the response structure for listing tool servers
type ToolServerListResponse struct {
	Servers []ToolServerResponse `json:"servers"`
	Total   int                  `json:"total"`
}

// ToResponse converts a domain ToolServer to a ToolServerResponse DTO
func (s *ToolServer) ToResponse() ToolServerResponse {
	return ToolServerResponse{
		Id:              s.Id,
		Name:            s.Name,
		Description:     s.Description,
		URL:             s.URL,
		Transport:       s.Transport,
		HasAPIKey:       s.APIKey != "",
		IsEnabled:       s.Enabled(),
		State:           s.State,
		Status:          s.Health,
		LastHealthCheck: s.LastHealthCheck,
		Metadata:        s.Metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// HealthCheckResponse is the outcome of an on-demand health check
type HealthCheckResponse struct {
	ServerId  string       `json:"server_id"`
	Status    HealthStatus `json:"status"`
	CheckedAt time.Time    `json:"checked_at"`
	Error     string       `json:"error,omitempty"`
}
