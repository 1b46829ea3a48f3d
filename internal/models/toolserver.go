package models

import "time"

// TransportKind selects how a session to a tool server is opened
type TransportKind string

const (
	TransportSSE            TransportKind = "sse"
	TransportStreamableHTTP TransportKind = "streamable-http"
	TransportStdio          TransportKind = "stdio"
)

// Valid reports whether the transport kind is supported
func (k TransportKind) Valid() bool {
	switch k {
	case TransportSSE, TransportStreamableHTTP, TransportStdio:
		return true
	}
	return false
}

// HealthStatus is the last-known reachability of a tool server
type HealthStatus string

const (
	HealthUnknown HealthStatus = "UNKNOWN"
	HealthUp      HealthStatus = "UP"
	HealthDown    HealthStatus = "DOWN"
)

// ToolServer represents the domain model for a registered MCP tool server
// This is a database-agnostic business entity
type ToolServer struct {
	Id              string
	Name            string
	Description     string
	URL             string
	APIKey          string // Layer-2 credential, plaintext in memory, encrypted at rest
	Transport       TransportKind
	State           LifecycleState
	Health          HealthStatus
	LastHealthCheck *time.Time
	Metadata        map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Enabled reports whether proxy operations may target this server
func (s *ToolServer) Enabled() bool {
	return s.State.IsActive()
}
