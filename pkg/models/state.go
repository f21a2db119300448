package models

// WorkflowState is a node in a definition's graph. State names are
// unique within their definition.
type WorkflowState struct {
	ID           int64  `json:"id" db:"id"`                       // Unique identifier (PostgreSQL auto-increment)
	DefinitionID int64  `json:"definition_id" db:"definition_id"` // Foreign key to WorkflowDefinition
	Name         string `json:"name" db:"name"`                   // Unique within the definition (e.g., "review")
	Description  string `json:"description" db:"description"`     // Optional free text
	IsInitial    bool   `json:"is_initial" db:"is_initial"`       // Instances start here
	IsFinal      bool   `json:"is_final" db:"is_final"`           // Entering this state completes the instance
	SortOrder    int    `json:"sort_order" db:"sort_order"`       // Display ordering only, not semantically load-bearing
}
