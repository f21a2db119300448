package models

// WorkflowTransition is a directed edge between two states of the same
// definition. Self-loops (from == to) are allowed and act as re-entry
// edges: they change nothing but still produce a history entry.
type WorkflowTransition struct {
	ID              int64  `json:"id" db:"id"`                             // Unique identifier (PostgreSQL auto-increment)
	DefinitionID    int64  `json:"definition_id" db:"definition_id"`       // Foreign key to WorkflowDefinition
	FromStateID     int64  `json:"from_state_id" db:"from_state_id"`       // Edge origin; must match the instance's current state
	ToStateID       int64  `json:"to_state_id" db:"to_state_id"`           // Edge destination
	Name            string `json:"name" db:"name"`                         // Descriptive name (e.g., "approve")
	Description     string `json:"description" db:"description"`           // Optional free text
	RequiresComment bool   `json:"requires_comment" db:"requires_comment"` // Reject the transition unless a comment is supplied
}
