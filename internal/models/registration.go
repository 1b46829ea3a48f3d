package models

import "time"

// BuildRegistration links an external build identifier to a tool server
type BuildRegistration struct {
	Id           string
	ServerId     string
	BuildId      string
	RegisteredAt time.Time
}

// RegisterBuildRequest represents the request body for registering a build
type RegisterBuildRequest struct {
	BuildId string `json:"build_id" binding:"required"`
}

// BuildRegistrationResponse represents a single registration
type BuildRegistrationResponse struct {
	Id           string    `json:"id"`
	ServerId     string    `json:"mcp_server_id"`
	BuildId      string    `json:"build_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ToResponse converts a domain BuildRegistration to its response DTO
func (r *BuildRegistration) ToResponse() BuildRegistrationResponse {
	return BuildRegistrationResponse{
		Id:           r.Id,
		ServerId:     r.ServerId,
		BuildId:      r.BuildId,
		RegisteredAt: r.RegisteredAt,
	}
}
