package models

import "time"

type DefinitionStatus string

const (
	DraftDefinitionStatus    DefinitionStatus = "DRAFT"
	ActiveDefinitionStatus   DefinitionStatus = "ACTIVE"
	ArchivedDefinitionStatus DefinitionStatus = "ARCHIVED"
)

// WorkflowDefinition is a tenant-owned graph of states and transitions
// governing one kind of business entity (e.g. "invoice").
// The graph is written once at creation time; only definition-level
// attributes change afterwards.
type WorkflowDefinition struct {
	ID          int64            `json:"id" db:"id"`                   // Unique identifier (PostgreSQL auto-increment)
	TenantID    string           `json:"tenant_id" db:"tenant_id"`     // Owning tenant; isolation boundary
	Name        string           `json:"name" db:"name"`               // Descriptive name (e.g., "InvoiceApproval")
	Description string           `json:"description" db:"description"` // Optional free text
	EntityType  string           `json:"entity_type" db:"entity_type"` // Kind of business object governed (e.g., "invoice")
	Status      DefinitionStatus `json:"status" db:"status"`           // "DRAFT", "ACTIVE", "ARCHIVED"
	IsActive    bool             `json:"is_active" db:"is_active"`     // Only active definitions can start instances
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`   // Creation timestamp
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`   // Last update timestamp

	States      []WorkflowState      `json:"states,omitempty"`      // States in the definition (populated on aggregate reads)
	Transitions []WorkflowTransition `json:"transitions,omitempty"` // Transitions in the definition (populated on aggregate reads)
}
