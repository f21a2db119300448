package models

import "time"

// InstanceLog is one row of an instance's append-only audit trail.
// Starting an instance writes a row with a nil FromStateID; a
// cancellation writes a row with a nil TransitionID whose from and to
// states both equal the state the instance froze in.
type InstanceLog struct {
	ID           int64     `json:"id" db:"id"`                       // Auto-incremented log ID
	InstanceID   int64     `json:"instance_id" db:"instance_id"`     // Parent instance
	TenantID     string    `json:"tenant_id" db:"tenant_id"`         // Owning tenant
	FromStateID  *int64    `json:"from_state_id" db:"from_state_id"` // Nil for the start entry
	ToStateID    int64     `json:"to_state_id" db:"to_state_id"`     // State after the change
	TransitionID *int64    `json:"transition_id" db:"transition_id"` // Nil for start and cancellation entries
	ActorUserID  string    `json:"actor_user_id" db:"actor_user_id"` // Who acted, empty if unknown
	Comment      string    `json:"comment,omitempty" db:"comment"`   // Optional, mandatory for requires_comment transitions
	ActedAt      time.Time `json:"acted_at" db:"acted_at"`           // Timestamp of the change
}
