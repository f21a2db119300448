package service

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tenantic/flowcore/pkg/models"
	"github.com/tenantic/flowcore/pkg/storage"
)

// Logger defines the logging interface for the services.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// StateInput describes one state of a definition being created.
type StateInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsInitial   bool   `json:"is_initial"`
	IsFinal     bool   `json:"is_final"`
	SortOrder   int    `json:"sort_order"`
}

// TransitionInput describes one transition of a definition being
// created. From and To reference states by name.
type TransitionInput struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	From            string `json:"from"`
	To              string `json:"to"`
	RequiresComment bool   `json:"requires_comment"`
}

// CreateDefinitionInput is the aggregate payload for CreateDefinition.
type CreateDefinitionInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	EntityType  string            `json:"entity_type"`
	States      []StateInput      `json:"states"`
	Transitions []TransitionInput `json:"transitions"`
}

// UpdateDefinitionInput carries the partial update for
// UpdateDefinition; nil fields are left untouched.
type UpdateDefinitionInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// DefinitionService manages tenant-owned workflow definitions. A
// definition's graph is written once at creation; later updates touch
// definition-level attributes only, so in-flight instances can never
// see a state or transition disappear underneath them.
type DefinitionService struct {
	store  storage.Store
	logger Logger
}

func NewDefinitionService(store storage.Store, logger Logger) *DefinitionService {
	return &DefinitionService{store: store, logger: logger}
}

// CreateDefinition validates the aggregate and persists the definition,
// its states and its transitions atomically. New definitions start in
// DRAFT status and must be activated before instances can start.
func (s *DefinitionService) CreateDefinition(tenantID string, input CreateDefinitionInput) (def models.WorkflowDefinition, err error) {
	if err := validateCreateInput(tenantID, input); err != nil {
		return models.WorkflowDefinition{}, err
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.WorkflowDefinition{}, err
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

	now := time.Now()
	def = models.WorkflowDefinition{
		TenantID:    tenantID,
		Name:        input.Name,
		Description: input.Description,
		EntityType:  input.EntityType,
		Status:      models.DraftDefinitionStatus,
		IsActive:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	def.ID, err = txStore.SaveDefinition(def)
	if err != nil {
		return models.WorkflowDefinition{}, errors.Wrap(err, "save definition")
	}

	stateIDs := make(map[string]int64, len(input.States))
	for _, in := range input.States {
		st := models.WorkflowState{
			DefinitionID: def.ID,
			Name:         in.Name,
			Description:  in.Description,
			IsInitial:    in.IsInitial,
			IsFinal:      in.IsFinal,
			SortOrder:    in.SortOrder,
		}
		st.ID, err = txStore.SaveState(st)
		if err != nil {
			return models.WorkflowDefinition{}, errors.Wrapf(err, "save state '%s'", in.Name)
		}
		stateIDs[st.Name] = st.ID
		def.States = append(def.States, st)
	}

	for _, in := range input.Transitions {
		tr := models.WorkflowTransition{
			DefinitionID:    def.ID,
			FromStateID:     stateIDs[in.From],
			ToStateID:       stateIDs[in.To],
			Name:            in.Name,
			Description:     in.Description,
			RequiresComment: in.RequiresComment,
		}
		tr.ID, err = txStore.SaveTransition(tr)
		if err != nil {
			return models.WorkflowDefinition{}, errors.Wrapf(err, "save transition '%s'", in.Name)
		}
		def.Transitions = append(def.Transitions, tr)
	}

	s.logger.Infof("Created workflow definition '%s' with ID %d for tenant %s", def.Name, def.ID, tenantID)
	return def, nil
}

func validateCreateInput(tenantID string, input CreateDefinitionInput) error {
	if tenantID == "" {
		return errors.Wrap(ErrValidation, "tenant id is required")
	}
	if input.Name == "" {
		return errors.Wrap(ErrValidation, "definition name cannot be empty")
	}
	if len(input.Name) > 100 {
		return errors.Wrap(ErrValidation, "definition name too long (max 100 characters)")
	}
	if input.EntityType == "" {
		return errors.Wrap(ErrValidation, "entity type cannot be empty")
	}
	if len(input.States) < 2 {
		return errors.Wrap(ErrValidation, "a definition needs at least 2 states")
	}

	names := make(map[string]struct{}, len(input.States))
	initials := 0
	for _, st := range input.States {
		if st.Name == "" {
			return errors.Wrap(ErrValidation, "state name cannot be empty")
		}
		if _, dup := names[st.Name]; dup {
			return errors.Wrapf(ErrValidation, "duplicate state name '%s'", st.Name)
		}
		names[st.Name] = struct{}{}
		if st.IsInitial {
			initials++
		}
	}
	if initials != 1 {
		return errors.Wrapf(ErrValidation, "a definition needs exactly one initial state, got %d", initials)
	}

	for _, tr := range input.Transitions {
		if tr.Name == "" {
			return errors.Wrap(ErrValidation, "transition name cannot be empty")
		}
		if _, ok := names[tr.From]; !ok {
			return errors.Wrapf(ErrValidation, "transition '%s' references unknown from-state '%s'", tr.Name, tr.From)
		}
		if _, ok := names[tr.To]; !ok {
			return errors.Wrapf(ErrValidation, "transition '%s' references unknown to-state '%s'", tr.Name, tr.To)
		}
	}
	return nil
}

// UpdateDefinition applies a partial update to definition-level
// attributes. Activating a definition requires the graph to carry at
// least one initial and one final state; the graph itself is immutable
// here.
func (s *DefinitionService) UpdateDefinition(id int64, tenantID string, input UpdateDefinitionInput) (def models.WorkflowDefinition, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return models.WorkflowDefinition{}, err
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

	def, err = txStore.GetDefinition(id, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowDefinition{}, errors.Wrapf(ErrNotFound, "definition %d", id)
		}
		return models.WorkflowDefinition{}, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return models.WorkflowDefinition{}, errors.Wrap(ErrValidation, "definition name cannot be empty")
		}
		def.Name = *input.Name
	}
	if input.Description != nil {
		def.Description = *input.Description
	}
	if input.IsActive != nil {
		if *input.IsActive {
			graph := models.NewGraph(&def)
			if _, ok := graph.InitialState(); !ok {
				return models.WorkflowDefinition{}, errors.Wrapf(ErrInvalidDefinition, "definition %d has no initial state", id)
			}
			if !graph.HasFinalState() {
				return models.WorkflowDefinition{}, errors.Wrapf(ErrInvalidDefinition, "definition %d has no final state", id)
			}
			def.Status = models.ActiveDefinitionStatus
		} else {
			def.Status = models.DraftDefinitionStatus
		}
		def.IsActive = *input.IsActive
	}
	def.UpdatedAt = time.Now()

	if err = txStore.UpdateDefinition(def); err != nil {
		return models.WorkflowDefinition{}, errors.Wrapf(err, "update definition %d", id)
	}
	s.logger.Infof("Updated workflow definition %d for tenant %s", id, tenantID)
	return def, nil
}

// ArchiveDefinition soft-deletes a definition: it can no longer start
// instances, but existing instances and history stay readable.
func (s *DefinitionService) ArchiveDefinition(id int64, tenantID string) (def models.WorkflowDefinition, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return models.WorkflowDefinition{}, err
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

	def, err = txStore.GetDefinition(id, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowDefinition{}, errors.Wrapf(ErrNotFound, "definition %d", id)
		}
		return models.WorkflowDefinition{}, err
	}

	def.Status = models.ArchivedDefinitionStatus
	def.IsActive = false
	def.UpdatedAt = time.Now()
	if err = txStore.UpdateDefinition(def); err != nil {
		return models.WorkflowDefinition{}, errors.Wrapf(err, "archive definition %d", id)
	}
	s.logger.Infof("Archived workflow definition %d for tenant %s", id, tenantID)
	return def, nil
}

// GetDefinition fetches the full aggregate (states and transitions).
func (s *DefinitionService) GetDefinition(id int64, tenantID string) (models.WorkflowDefinition, error) {
	def, err := s.store.GetDefinition(id, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowDefinition{}, errors.Wrapf(ErrNotFound, "definition %d", id)
		}
		return models.WorkflowDefinition{}, errors.Wrapf(err, "get definition %d", id)
	}
	return def, nil
}

// ListDefinitions returns the tenant's definitions without their
// graphs.
func (s *DefinitionService) ListDefinitions(tenantID string) ([]models.WorkflowDefinition, error) {
	return s.store.ListDefinitions(tenantID)
}
