package storage

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/tenantic/flowcore/pkg/models"
)

// MockStore implements Store with in-memory slices. Begin snapshots the
// data into a child store; Commit copies the child back to its parent
// and Rollback discards it, so service-level atomicity is observable in
// tests without a database.
type MockStore struct {
	definitions []models.WorkflowDefinition
	states      []models.WorkflowState
	transitions []models.WorkflowTransition
	instances   []models.WorkflowInstance
	logs        []models.InstanceLog

	nextDefinitionID int64
	nextStateID      int64
	nextTransitionID int64
	nextInstanceID   int64
	nextLogID        int64

	parent *MockStore

	// FailSaveLog forces the next SaveLog to fail, for atomicity tests.
	FailSaveLog bool
}

// NewMockStore returns an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Begin() (Store, error) {
	if m.parent != nil {
		return nil, errors.New("nested transactions not supported")
	}
	tx := &MockStore{
		definitions:      append([]models.WorkflowDefinition(nil), m.definitions...),
		states:           append([]models.WorkflowState(nil), m.states...),
		transitions:      append([]models.WorkflowTransition(nil), m.transitions...),
		instances:        append([]models.WorkflowInstance(nil), m.instances...),
		logs:             append([]models.InstanceLog(nil), m.logs...),
		nextDefinitionID: m.nextDefinitionID,
		nextStateID:      m.nextStateID,
		nextTransitionID: m.nextTransitionID,
		nextInstanceID:   m.nextInstanceID,
		nextLogID:        m.nextLogID,
		parent:           m,
		FailSaveLog:      m.FailSaveLog,
	}
	return tx, nil
}

func (m *MockStore) Commit() error {
	if m.parent == nil {
		return errors.New("cannot commit: not a transaction")
	}
	p := m.parent
	p.definitions = m.definitions
	p.states = m.states
	p.transitions = m.transitions
	p.instances = m.instances
	p.logs = m.logs
	p.nextDefinitionID = m.nextDefinitionID
	p.nextStateID = m.nextStateID
	p.nextTransitionID = m.nextTransitionID
	p.nextInstanceID = m.nextInstanceID
	p.nextLogID = m.nextLogID
	p.FailSaveLog = m.FailSaveLog
	m.parent = nil
	return nil
}

func (m *MockStore) Rollback() error {
	if m.parent == nil {
		return errors.New("cannot rollback: not a transaction")
	}
	m.parent.FailSaveLog = m.FailSaveLog
	m.parent = nil
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) SaveDefinition(d models.WorkflowDefinition) (int64, error) {
	m.nextDefinitionID++
	d.ID = m.nextDefinitionID
	m.definitions = append(m.definitions, d)
	return d.ID, nil
}

func (m *MockStore) SaveState(s models.WorkflowState) (int64, error) {
	m.nextStateID++
	s.ID = m.nextStateID
	m.states = append(m.states, s)
	return s.ID, nil
}

func (m *MockStore) SaveTransition(t models.WorkflowTransition) (int64, error) {
	m.nextTransitionID++
	t.ID = m.nextTransitionID
	m.transitions = append(m.transitions, t)
	return t.ID, nil
}

func (m *MockStore) GetDefinition(id int64, tenantID string) (models.WorkflowDefinition, error) {
	for _, d := range m.definitions {
		if d.ID == id && d.TenantID == tenantID {
			d.States = nil
			d.Transitions = nil
			for _, s := range m.states {
				if s.DefinitionID == id {
					d.States = append(d.States, s)
				}
			}
			for _, t := range m.transitions {
				if t.DefinitionID == id {
					d.Transitions = append(d.Transitions, t)
				}
			}
			return d, nil
		}
	}
	return models.WorkflowDefinition{}, ErrNotFound
}

func (m *MockStore) ListDefinitions(tenantID string) ([]models.WorkflowDefinition, error) {
	defs := []models.WorkflowDefinition{}
	for _, d := range m.definitions {
		if d.TenantID == tenantID {
			defs = append(defs, d)
		}
	}
	return defs, nil
}

func (m *MockStore) UpdateDefinition(d models.WorkflowDefinition) error {
	for i, existing := range m.definitions {
		if existing.ID == d.ID && existing.TenantID == d.TenantID {
			updated := existing
			updated.Name = d.Name
			updated.Description = d.Description
			updated.Status = d.Status
			updated.IsActive = d.IsActive
			updated.UpdatedAt = time.Now()
			m.definitions = append([]models.WorkflowDefinition(nil), m.definitions...)
			m.definitions[i] = updated
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) SaveInstance(in models.WorkflowInstance) (int64, error) {
	m.nextInstanceID++
	in.ID = m.nextInstanceID
	m.instances = append(m.instances, in)
	return in.ID, nil
}

func (m *MockStore) GetInstance(id int64, tenantID string) (models.WorkflowInstance, error) {
	for _, in := range m.instances {
		if in.ID == id && in.TenantID == tenantID {
			return in, nil
		}
	}
	return models.WorkflowInstance{}, ErrNotFound
}

func (m *MockStore) GetInstanceByEntity(entityType, entityID, tenantID string) (models.WorkflowInstance, error) {
	// Prefer the active instance; otherwise return the most recent one.
	var found *models.WorkflowInstance
	for i := range m.instances {
		in := &m.instances[i]
		if in.TenantID != tenantID || in.EntityType != entityType || in.EntityID != entityID {
			continue
		}
		if in.Status == models.ActiveInstanceStatus {
			return *in, nil
		}
		found = in
	}
	if found == nil {
		return models.WorkflowInstance{}, ErrNotFound
	}
	return *found, nil
}

func (m *MockStore) UpdateInstanceState(in models.WorkflowInstance) error {
	for i, existing := range m.instances {
		if existing.ID == in.ID && existing.TenantID == in.TenantID {
			if existing.Version != in.Version {
				return ErrConflict
			}
			updated := existing
			updated.CurrentStateID = in.CurrentStateID
			updated.Status = in.Status
			updated.CompletedAt = in.CompletedAt
			updated.Version = in.Version + 1
			m.instances = append([]models.WorkflowInstance(nil), m.instances...)
			m.instances[i] = updated
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) DeleteInstance(id int64, tenantID string) error {
	for i, in := range m.instances {
		if in.ID == id && in.TenantID == tenantID {
			instances := append([]models.WorkflowInstance(nil), m.instances...)
			m.instances = append(instances[:i], instances[i+1:]...)
			logs := []models.InstanceLog{}
			for _, l := range m.logs {
				if l.InstanceID != id {
					logs = append(logs, l)
				}
			}
			m.logs = logs
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) SaveLog(l models.InstanceLog) (int64, error) {
	if m.FailSaveLog {
		m.FailSaveLog = false
		return 0, errors.New("forced log write failure")
	}
	m.nextLogID++
	l.ID = m.nextLogID
	m.logs = append(m.logs, l)
	return l.ID, nil
}

func (m *MockStore) ListLogs(instanceID int64, tenantID string) ([]models.InstanceLog, error) {
	logs := []models.InstanceLog{}
	for _, l := range m.logs {
		if l.InstanceID == instanceID && l.TenantID == tenantID {
			logs = append(logs, l)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].ActedAt.Equal(logs[j].ActedAt) {
			return logs[i].ID < logs[j].ID
		}
		return logs[i].ActedAt.Before(logs[j].ActedAt)
	})
	return logs, nil
}
