package models

// LifecycleState replaces the enabled/active and deleted flags of the stored
// entities. DELETED is terminal.
type LifecycleState string

const (
	StateActive   LifecycleState = "ACTIVE"
	StateDisabled LifecycleState = "DISABLED"
	StateDeleted  LifecycleState = "DELETED"
)

// IsActive reports whether the entity may be used
func (s LifecycleState) IsActive() bool {
	return s == StateActive
}

// IsDeleted reports whether the entity was soft-deleted
func (s LifecycleState) IsDeleted() bool {
	return s == StateDeleted
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is a generic acknowledgement body
type StatusResponse struct {
	Status string `json:"status"`
}
