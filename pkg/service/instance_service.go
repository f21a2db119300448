package service

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tenantic/flowcore/pkg/models"
	"github.com/tenantic/flowcore/pkg/storage"
)

// InstanceService creates workflow instances and drives them through
// their definition's graph. Advance and Cancel run inside a single
// storage transaction: the instance mutation and the history append
// commit together or not at all, and a version check guards against
// concurrent writers.
type InstanceService struct {
	store  storage.Store
	logger Logger
}

func NewInstanceService(store storage.Store, logger Logger) *InstanceService {
	return &InstanceService{store: store, logger: logger}
}

// StartInstance binds a new instance of the given definition to a
// business entity. The definition must be active and carry an initial
// state; at most one active instance may exist per
// (tenant, entity type, entity id).
func (s *InstanceService) StartInstance(tenantID string, definitionID int64, entityType, entityID, startedByUserID string) (in models.WorkflowInstance, err error) {
	if entityType == "" || entityID == "" {
		return models.WorkflowInstance{}, errors.Wrap(ErrValidation, "entity type and entity id are required")
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.WorkflowInstance{}, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	def, err := txStore.GetDefinition(definitionID, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowInstance{}, errors.Wrapf(ErrNotFound, "definition %d", definitionID)
		}
		return models.WorkflowInstance{}, err
	}
	// An inactive definition is reported exactly like a missing one.
	if !def.IsActive {
		return models.WorkflowInstance{}, errors.Wrapf(ErrNotFound, "definition %d", definitionID)
	}

	graph := models.NewGraph(&def)
	initial, ok := graph.InitialState()
	if !ok {
		return models.WorkflowInstance{}, errors.Wrapf(ErrInvalidDefinition, "definition %d has no initial state", definitionID)
	}

	existing, err := txStore.GetInstanceByEntity(entityType, entityID, tenantID)
	if err == nil && existing.Status == models.ActiveInstanceStatus {
		return models.WorkflowInstance{}, errors.Wrapf(ErrValidation, "entity %s/%s already has an active instance (%d)", entityType, entityID, existing.ID)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.WorkflowInstance{}, err
	}

	now := time.Now()
	in = models.WorkflowInstance{
		TenantID:        tenantID,
		DefinitionID:    definitionID,
		EntityType:      entityType,
		EntityID:        entityID,
		CurrentStateID:  initial.ID,
		Status:          models.ActiveInstanceStatus,
		Version:         1,
		StartedByUserID: startedByUserID,
		StartedAt:       now,
	}
	in.ID, err = txStore.SaveInstance(in)
	if err != nil {
		return models.WorkflowInstance{}, errors.Wrap(err, "save instance")
	}

	_, err = txStore.SaveLog(models.InstanceLog{
		InstanceID:  in.ID,
		TenantID:    tenantID,
		FromStateID: nil,
		ToStateID:   initial.ID,
		ActorUserID: startedByUserID,
		ActedAt:     now,
	})
	if err != nil {
		return models.WorkflowInstance{}, errors.Wrap(err, "append start log")
	}

	s.logger.Infof("Started instance %d of definition %d for %s/%s (tenant %s)", in.ID, definitionID, entityType, entityID, tenantID)
	return in, nil
}

// GetInstance returns the instance bound to the given entity, or nil if
// none exists. Absence is not an error: callers use this to check
// whether a workflow has started for the entity.
func (s *InstanceService) GetInstance(entityType, entityID, tenantID string) (*models.WorkflowInstance, error) {
	in, err := s.store.GetInstanceByEntity(entityType, entityID, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get instance for %s/%s", entityType, entityID)
	}
	return &in, nil
}

// GetInstanceByID fetches an instance by its id.
func (s *InstanceService) GetInstanceByID(id int64, tenantID string) (models.WorkflowInstance, error) {
	in, err := s.store.GetInstance(id, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowInstance{}, errors.Wrapf(ErrNotFound, "instance %d", id)
		}
		return models.WorkflowInstance{}, errors.Wrapf(err, "get instance %d", id)
	}
	return in, nil
}

// DeleteInstance hard-removes an instance and its history. This is an
// administrative escape hatch, not part of the business flow.
func (s *InstanceService) DeleteInstance(id int64, tenantID string) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.DeleteInstance(id, tenantID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Wrapf(ErrNotFound, "instance %d", id)
		}
		return errors.Wrapf(err, "delete instance %d", id)
	}
	s.logger.Infof("Deleted instance %d (tenant %s)", id, tenantID)
	return nil
}

// Advance applies a declared transition to an active instance.
//
// The transition must belong to the instance's definition and originate
// at its current state; a requires_comment transition demands a
// non-empty comment. Landing on a final state completes the instance in
// the same operation. The state mutation and the history row commit
// atomically, guarded by the instance's version; a conflicting
// concurrent write surfaces as ErrConcurrency and leaves everything
// unchanged.
func (s *InstanceService) Advance(tenantID string, instanceID, transitionID int64, actorUserID, comment string) (in models.WorkflowInstance, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return models.WorkflowInstance{}, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	in, err = txStore.GetInstance(instanceID, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowInstance{}, errors.Wrapf(ErrNotFound, "instance %d", instanceID)
		}
		return models.WorkflowInstance{}, err
	}
	if in.Status != models.ActiveInstanceStatus {
		return models.WorkflowInstance{}, errors.Wrapf(ErrInvalidState, "instance %d is %s", instanceID, in.Status)
	}

	def, err := txStore.GetDefinition(in.DefinitionID, tenantID)
	if err != nil {
		return models.WorkflowInstance{}, errors.Wrapf(err, "load definition %d", in.DefinitionID)
	}
	graph := models.NewGraph(&def)

	tr, ok := graph.Transition(transitionID)
	if !ok {
		return models.WorkflowInstance{}, errors.Wrapf(ErrNotFound, "transition %d in definition %d", transitionID, in.DefinitionID)
	}
	if !graph.CanApply(tr, in.CurrentStateID) {
		return models.WorkflowInstance{}, errors.Wrapf(ErrIllegalTransition, "transition '%s' starts from state %d, instance %d is in state %d",
			tr.Name, tr.FromStateID, instanceID, in.CurrentStateID)
	}
	if tr.RequiresComment && strings.TrimSpace(comment) == "" {
		return models.WorkflowInstance{}, errors.Wrapf(ErrValidation, "transition '%s' requires a comment", tr.Name)
	}

	toState, ok := graph.State(tr.ToStateID)
	if !ok {
		return models.WorkflowInstance{}, errors.Wrapf(ErrInvalidDefinition, "transition '%s' targets unknown state %d", tr.Name, tr.ToStateID)
	}

	now := time.Now()
	fromStateID := in.CurrentStateID
	in.CurrentStateID = tr.ToStateID
	if toState.IsFinal {
		in.Status = models.CompletedInstanceStatus
		in.CompletedAt = &now
	}

	if err = txStore.UpdateInstanceState(in); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return models.WorkflowInstance{}, errors.Wrapf(ErrConcurrency, "instance %d was modified concurrently", instanceID)
		}
		return models.WorkflowInstance{}, errors.Wrapf(err, "update instance %d", instanceID)
	}
	in.Version++

	_, err = txStore.SaveLog(models.InstanceLog{
		InstanceID:   instanceID,
		TenantID:     tenantID,
		FromStateID:  &fromStateID,
		ToStateID:    tr.ToStateID,
		TransitionID: &tr.ID,
		ActorUserID:  actorUserID,
		Comment:      comment,
		ActedAt:      now,
	})
	if err != nil {
		return models.WorkflowInstance{}, errors.Wrap(err, "append transition log")
	}

	s.logger.Infof("Advanced instance %d via transition '%s' to state %d (tenant %s)", instanceID, tr.Name, tr.ToStateID, tenantID)
	return in, nil
}

// Cancel terminates an active instance without consulting the graph:
// cancellation is always permitted from any active state. The instance
// freezes at its current state; the history row records from == to with
// no transition.
func (s *InstanceService) Cancel(tenantID string, instanceID int64, actorUserID, comment string) (in models.WorkflowInstance, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return models.WorkflowInstance{}, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	in, err = txStore.GetInstance(instanceID, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowInstance{}, errors.Wrapf(ErrNotFound, "instance %d", instanceID)
		}
		return models.WorkflowInstance{}, err
	}
	if in.Status != models.ActiveInstanceStatus {
		return models.WorkflowInstance{}, errors.Wrapf(ErrInvalidState, "instance %d is %s", instanceID, in.Status)
	}

	now := time.Now()
	in.Status = models.CancelledInstanceStatus
	in.CompletedAt = &now

	if err = txStore.UpdateInstanceState(in); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return models.WorkflowInstance{}, errors.Wrapf(ErrConcurrency, "instance %d was modified concurrently", instanceID)
		}
		return models.WorkflowInstance{}, errors.Wrapf(err, "update instance %d", instanceID)
	}
	in.Version++

	currentStateID := in.CurrentStateID
	_, err = txStore.SaveLog(models.InstanceLog{
		InstanceID:  instanceID,
		TenantID:    tenantID,
		FromStateID: &currentStateID,
		ToStateID:   currentStateID,
		ActorUserID: actorUserID,
		Comment:     comment,
		ActedAt:     now,
	})
	if err != nil {
		return models.WorkflowInstance{}, errors.Wrap(err, "append cancellation log")
	}

	s.logger.Infof("Cancelled instance %d at state %d (tenant %s)", instanceID, currentStateID, tenantID)
	return in, nil
}

// ListHistory returns the instance's audit trail ordered by acted_at
// ascending.
func (s *InstanceService) ListHistory(instanceID int64, tenantID string) ([]models.InstanceLog, error) {
	if _, err := s.store.GetInstance(instanceID, tenantID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "instance %d", instanceID)
		}
		return nil, errors.Wrapf(err, "get instance %d", instanceID)
	}
	return s.store.ListLogs(instanceID, tenantID)
}
