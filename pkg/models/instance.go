package models

import "time"

type InstanceStatus string

const (
	ActiveInstanceStatus    InstanceStatus = "ACTIVE"
	CompletedInstanceStatus InstanceStatus = "COMPLETED"
	CancelledInstanceStatus InstanceStatus = "CANCELLED"
)

// WorkflowInstance tracks one business entity through a definition's
// graph. At most one ACTIVE instance exists per
// (tenant, entity_type, entity_id). COMPLETED and CANCELLED are
// terminal; no further transitions are accepted.
type WorkflowInstance struct {
	ID              int64          `json:"id" db:"id"`                                 // Unique identifier (PostgreSQL auto-increment)
	TenantID        string         `json:"tenant_id" db:"tenant_id"`                   // Owning tenant
	DefinitionID    int64          `json:"definition_id" db:"definition_id"`           // Immutable once created
	EntityType      string         `json:"entity_type" db:"entity_type"`               // External business object type (e.g., "invoice")
	EntityID        string         `json:"entity_id" db:"entity_id"`                   // External business object identifier
	CurrentStateID  int64          `json:"current_state_id" db:"current_state_id"`     // Pointer into the definition's states
	Status          InstanceStatus `json:"status" db:"status"`                         // "ACTIVE", "COMPLETED", "CANCELLED"
	Version         int64          `json:"version" db:"version"`                       // Optimistic concurrency counter, bumped on every mutation
	StartedByUserID string         `json:"started_by_user_id" db:"started_by_user_id"` // Actor that started the instance, empty if unknown
	StartedAt       time.Time      `json:"started_at" db:"started_at"`                 // Creation timestamp
	CompletedAt     *time.Time     `json:"completed_at,omitempty" db:"completed_at"`   // Set when the instance completes or is cancelled
}

// Terminal reports whether the instance can no longer transition.
func (i WorkflowInstance) Terminal() bool {
	return i.Status == CompletedInstanceStatus || i.Status == CancelledInstanceStatus
}
