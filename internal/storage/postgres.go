package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tenantic/flowcore/pkg/models"
	"github.com/tenantic/flowcore/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveDefinition creates a new definition row (no states/transitions)
func (s *PostgresStore) SaveDefinition(d models.WorkflowDefinition) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_definitions (tenant_id, name, description, entity_type, status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		d.TenantID, d.Name, d.Description, d.EntityType, d.Status, d.IsActive, d.CreatedAt, d.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save definition: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) SaveState(st models.WorkflowState) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_states (definition_id, name, description, is_initial, is_final, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		st.DefinitionID, st.Name, st.Description, st.IsInitial, st.IsFinal, st.SortOrder).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save state: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) SaveTransition(t models.WorkflowTransition) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_transitions (definition_id, from_state_id, to_state_id, name, description, requires_comment)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.DefinitionID, t.FromStateID, t.ToStateID, t.Name, t.Description, t.RequiresComment).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save transition: %w", err)
	}
	return id, nil
}

// GetDefinition retrieves a definition by ID within the tenant,
// including its states and transitions
func (s *PostgresStore) GetDefinition(id int64, tenantID string) (models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	err := s.db.Get(&def, "SELECT * FROM workflow_definitions WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err == sql.ErrNoRows {
		return models.WorkflowDefinition{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowDefinition{}, err
	}

	err = s.db.Select(&def.States, "SELECT * FROM workflow_states WHERE definition_id = $1 ORDER BY sort_order, id", id)
	if err != nil {
		return models.WorkflowDefinition{}, fmt.Errorf("get definition %d states: %w", id, err)
	}

	err = s.db.Select(&def.Transitions, "SELECT * FROM workflow_transitions WHERE definition_id = $1 ORDER BY id", id)
	if err != nil {
		return models.WorkflowDefinition{}, fmt.Errorf("get definition %d transitions: %w", id, err)
	}

	return def, nil
}

func (s *PostgresStore) ListDefinitions(tenantID string) ([]models.WorkflowDefinition, error) {
	defs := []models.WorkflowDefinition{}
	query := "SELECT * FROM workflow_definitions WHERE tenant_id = $1 ORDER BY created_at DESC"
	err := s.db.Select(&defs, query, tenantID)
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// UpdateDefinition persists definition-level attributes only; the
// graph rows are never touched after creation
func (s *PostgresStore) UpdateDefinition(d models.WorkflowDefinition) error {
	res, err := s.db.Exec(`
		UPDATE workflow_definitions
		SET name = $1, description = $2, status = $3, is_active = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND tenant_id = $6`,
		d.Name, d.Description, d.Status, d.IsActive, d.ID, d.TenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveInstance creates a new instance and returns its ID
func (s *PostgresStore) SaveInstance(in models.WorkflowInstance) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_instances (tenant_id, definition_id, entity_type, entity_id, current_state_id, status, version, started_by_user_id, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		in.TenantID, in.DefinitionID, in.EntityType, in.EntityID, in.CurrentStateID, in.Status, in.Version, in.StartedByUserID, in.StartedAt, in.CompletedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save instance: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetInstance(id int64, tenantID string) (models.WorkflowInstance, error) {
	var in models.WorkflowInstance
	err := s.db.Get(&in, "SELECT * FROM workflow_instances WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err == sql.ErrNoRows {
		return models.WorkflowInstance{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowInstance{}, err
	}
	return in, nil
}

// GetInstanceByEntity returns the instance governing the entity,
// preferring the active one over terminal predecessors
func (s *PostgresStore) GetInstanceByEntity(entityType, entityID, tenantID string) (models.WorkflowInstance, error) {
	var in models.WorkflowInstance
	err := s.db.Get(&in, `
		SELECT * FROM workflow_instances
		WHERE entity_type = $1 AND entity_id = $2 AND tenant_id = $3
		ORDER BY (status = 'ACTIVE') DESC, started_at DESC
		LIMIT 1`,
		entityType, entityID, tenantID)
	if err == sql.ErrNoRows {
		return models.WorkflowInstance{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowInstance{}, err
	}
	return in, nil
}

// UpdateInstanceState applies the state/status mutation only if the
// stored version still matches; zero rows affected means a concurrent
// writer got there first
func (s *PostgresStore) UpdateInstanceState(in models.WorkflowInstance) error {
	res, err := s.db.Exec(`
		UPDATE workflow_instances
		SET current_state_id = $1, status = $2, completed_at = $3, version = version + 1
		WHERE id = $4 AND tenant_id = $5 AND version = $6`,
		in.CurrentStateID, in.Status, in.CompletedAt, in.ID, in.TenantID, in.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

// DeleteInstance hard-removes an instance; its logs cascade via FK
func (s *PostgresStore) DeleteInstance(id int64, tenantID string) error {
	res, err := s.db.Exec("DELETE FROM workflow_instances WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveLog appends one history row
func (s *PostgresStore) SaveLog(l models.InstanceLog) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_instance_logs (instance_id, tenant_id, from_state_id, to_state_id, transition_id, actor_user_id, comment, acted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		l.InstanceID, l.TenantID, l.FromStateID, l.ToStateID, l.TransitionID, l.ActorUserID, l.Comment, l.ActedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save instance log: %w", err)
	}
	return id, nil
}

// ListLogs retrieves the audit trail for an instance, oldest first
func (s *PostgresStore) ListLogs(instanceID int64, tenantID string) ([]models.InstanceLog, error) {
	logs := []models.InstanceLog{}
	err := s.db.Select(&logs, `
		SELECT * FROM workflow_instance_logs
		WHERE instance_id = $1 AND tenant_id = $2
		ORDER BY acted_at, id`,
		instanceID, tenantID)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
