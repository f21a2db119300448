package storage

import (
	"github.com/pkg/errors"

	"github.com/tenantic/flowcore/pkg/models"
)

// ErrNotFound is returned when a row does not exist within the caller's
// tenant scope. ErrConflict is returned when an optimistic-concurrency
// check fails on an instance mutation.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("conflicting concurrent update")
)

// Store defines the storage operations for the workflow engine.
// Begin returns a Store bound to a transaction; the service layer owns
// commit/rollback.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Definition operations
	SaveDefinition(d models.WorkflowDefinition) (int64, error)
	SaveState(s models.WorkflowState) (int64, error)
	SaveTransition(t models.WorkflowTransition) (int64, error)
	GetDefinition(id int64, tenantID string) (models.WorkflowDefinition, error)
	ListDefinitions(tenantID string) ([]models.WorkflowDefinition, error)
	UpdateDefinition(d models.WorkflowDefinition) error

	// Instance operations
	SaveInstance(in models.WorkflowInstance) (int64, error)
	GetInstance(id int64, tenantID string) (models.WorkflowInstance, error)
	GetInstanceByEntity(entityType, entityID, tenantID string) (models.WorkflowInstance, error)
	// UpdateInstanceState persists current_state_id, status and
	// completed_at if and only if the stored version still equals
	// in.Version; on success the stored version is in.Version+1.
	// Returns ErrConflict otherwise.
	UpdateInstanceState(in models.WorkflowInstance) error
	DeleteInstance(id int64, tenantID string) error

	// History operations
	SaveLog(l models.InstanceLog) (int64, error)
	ListLogs(instanceID int64, tenantID string) ([]models.InstanceLog, error)
}
