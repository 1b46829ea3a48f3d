package models

import "time"

// CreateClientRequest represents the request body for creating a client application
type CreateClientRequest struct {
	Name        string `json:"client_name" binding:"required,min=1,max=100"`
	Description string `json:"description"`
	RateLimit   string `json:"rate_limit"`
}

// UpdateClientRequest carries a partial update; nil fields are left untouched
type UpdateClientRequest struct {
	Name        *string `json:"client_name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	RateLimit   *string `json:"rate_limit"`
}

// ClientResponse represents a client without secret material
type ClientResponse struct {
	Id           string         `json:"id"`
	Name         string         `json:"client_name"`
	ClientId     string         `json:"client_id"`
	Description  string         `json:"description,omitempty"`
	IsActive     bool           `json:"is_active"`
	State        LifecycleState `json:"state"`
	RateLimit    string         `json:"rate_limit"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
}

// ClientWithAPIKeyResponse is only returned on creation and key rotation
type ClientWithAPIKeyResponse struct {
	ClientResponse
	APIKey string `json:"api_key"`
}

// ClientListResponse represents the response structure for listing clients
type ClientListResponse struct {
	Clients []ClientResponse `json:"clients"`
	Total   int              `json:"total"`
}

// ToResponse converts a domain ClientApp to a ClientResponse DTO
func (c *ClientApp) ToResponse() ClientResponse {
	return ClientResponse{
		Id:           c.Id,
		Name:         c.Name,
		ClientId:     c.ClientId,
		Description:  c.Description,
		IsActive:     c.State.IsActive(),
		State:        c.State,
		RateLimit:    c.RateLimit.String(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		LastAccessed: c.LastAccessedAt,
	}
}

// ClientCredentials pairs a client with its freshly issued plaintext key
type ClientCredentials struct {
	Client *ClientApp
	APIKey string
}

// ToResponse converts credentials to the one-time response DTO
func (cc *ClientCredentials) ToResponse() ClientWithAPIKeyResponse {
	return ClientWithAPIKeyResponse{
		ClientResponse: cc.Client.ToResponse(),
		APIKey:         cc.APIKey,
	}
}
