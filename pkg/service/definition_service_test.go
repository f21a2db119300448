package service_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/tenantic/flowcore/pkg/models"
	"github.com/tenantic/flowcore/pkg/service"
	"github.com/tenantic/flowcore/pkg/storage"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{}) {
	// no-op
}

func (l logger) Errorf(format string, args ...interface{}) {
	// no-op
}

func approvalInput() service.CreateDefinitionInput {
	return service.CreateDefinitionInput{
		Name:       "InvoiceApproval",
		EntityType: "invoice",
		States: []service.StateInput{
			{Name: "draft", IsInitial: true, SortOrder: 1},
			{Name: "review", SortOrder: 2},
			{Name: "approved", IsFinal: true, SortOrder: 3},
			{Name: "rejected", IsFinal: true, SortOrder: 4},
		},
		Transitions: []service.TransitionInput{
			{Name: "submit", From: "draft", To: "review"},
			{Name: "approve", From: "review", To: "approved"},
			{Name: "reject", From: "review", To: "rejected", RequiresComment: true},
		},
	}
}

func TestCreateDefinition(t *testing.T) {
	newService := func() *service.DefinitionService {
		return service.NewDefinitionService(storage.NewMockStore(), logger{})
	}

	t.Run("ValidAggregate", func(t *testing.T) {
		svc := newService()
		def, err := svc.CreateDefinition("acme", approvalInput())
		assert.NoError(t, err)
		assert.NotZero(t, def.ID)
		assert.Equal(t, "acme", def.TenantID)
		assert.Equal(t, models.DraftDefinitionStatus, def.Status)
		assert.False(t, def.IsActive)
		assert.Len(t, def.States, 4)
		assert.Len(t, def.Transitions, 3)
		for _, st := range def.States {
			assert.NotZero(t, st.ID)
			assert.Equal(t, def.ID, st.DefinitionID)
		}
		for _, tr := range def.Transitions {
			assert.NotZero(t, tr.ID)
			assert.NotZero(t, tr.FromStateID)
			assert.NotZero(t, tr.ToStateID)
		}
	})

	t.Run("MissingTenant", func(t *testing.T) {
		svc := newService()
		_, err := svc.CreateDefinition("", approvalInput())
		assert.True(t, errors.Is(err, service.ErrValidation))
	})

	t.Run("EmptyName", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.Name = ""
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
	})

	t.Run("MissingEntityType", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.EntityType = ""
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
	})

	t.Run("TooFewStates", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.States = input.States[:1]
		input.Transitions = nil
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
		assert.Contains(t, err.Error(), "at least 2 states")
	})

	t.Run("DuplicateStateName", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.States[1].Name = "draft"
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
		assert.Contains(t, err.Error(), "duplicate state name")
	})

	t.Run("NoInitialState", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.States[0].IsInitial = false
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
	})

	t.Run("MultipleInitialStates", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.States[1].IsInitial = true
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
		assert.Contains(t, err.Error(), "exactly one initial state")
	})

	t.Run("TransitionToUnknownState", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.Transitions[0].To = "nonexistent"
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
		assert.Contains(t, err.Error(), "unknown to-state")
	})

	t.Run("TransitionFromUnknownState", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.Transitions[0].From = "nonexistent"
		_, err := svc.CreateDefinition("acme", input)
		assert.True(t, errors.Is(err, service.ErrValidation))
		assert.Contains(t, err.Error(), "unknown from-state")
	})

	t.Run("SelfLoopAccepted", func(t *testing.T) {
		svc := newService()
		input := approvalInput()
		input.Transitions = append(input.Transitions, service.TransitionInput{
			Name: "request-changes", From: "review", To: "review",
		})
		def, err := svc.CreateDefinition("acme", input)
		assert.NoError(t, err)
		assert.Len(t, def.Transitions, 4)
	})
}

func TestGetDefinition(t *testing.T) {
	store := storage.NewMockStore()
	svc := service.NewDefinitionService(store, logger{})

	created, err := svc.CreateDefinition("acme", approvalInput())
	assert.NoError(t, err)

	t.Run("ReturnsAggregate", func(t *testing.T) {
		def, err := svc.GetDefinition(created.ID, "acme")
		assert.NoError(t, err)
		assert.Equal(t, created.ID, def.ID)
		assert.Len(t, def.States, 4)
		assert.Len(t, def.Transitions, 3)
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := svc.GetDefinition(9999, "acme")
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})

	t.Run("CrossTenantReadsNotFound", func(t *testing.T) {
		_, err := svc.GetDefinition(created.ID, "other-tenant")
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})
}

func TestUpdateDefinition(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	boolPtr := func(b bool) *bool { return &b }

	t.Run("RenameAndDescribe", func(t *testing.T) {
		svc := service.NewDefinitionService(storage.NewMockStore(), logger{})
		created, err := svc.CreateDefinition("acme", approvalInput())
		assert.NoError(t, err)

		def, err := svc.UpdateDefinition(created.ID, "acme", service.UpdateDefinitionInput{
			Name:        strPtr("InvoiceApprovalV2"),
			Description: strPtr("two-step approval"),
		})
		assert.NoError(t, err)
		assert.Equal(t, "InvoiceApprovalV2", def.Name)
		assert.Equal(t, "two-step approval", def.Description)
		// Graph untouched
		reloaded, err := svc.GetDefinition(created.ID, "acme")
		assert.NoError(t, err)
		assert.Len(t, reloaded.States, 4)
		assert.Len(t, reloaded.Transitions, 3)
	})

	t.Run("Activate", func(t *testing.T) {
		svc := service.NewDefinitionService(storage.NewMockStore(), logger{})
		created, err := svc.CreateDefinition("acme", approvalInput())
		assert.NoError(t, err)

		def, err := svc.UpdateDefinition(created.ID, "acme", service.UpdateDefinitionInput{IsActive: boolPtr(true)})
		assert.NoError(t, err)
		assert.True(t, def.IsActive)
		assert.Equal(t, models.ActiveDefinitionStatus, def.Status)
	})

	t.Run("ActivateWithoutFinalState", func(t *testing.T) {
		svc := service.NewDefinitionService(storage.NewMockStore(), logger{})
		input := approvalInput()
		for i := range input.States {
			input.States[i].IsFinal = false
		}
		created, err := svc.CreateDefinition("acme", input)
		assert.NoError(t, err)

		_, err = svc.UpdateDefinition(created.ID, "acme", service.UpdateDefinitionInput{IsActive: boolPtr(true)})
		assert.True(t, errors.Is(err, service.ErrInvalidDefinition))

		// Definition unchanged
		def, err := svc.GetDefinition(created.ID, "acme")
		assert.NoError(t, err)
		assert.False(t, def.IsActive)
	})

	t.Run("Deactivate", func(t *testing.T) {
		svc := service.NewDefinitionService(storage.NewMockStore(), logger{})
		created, err := svc.CreateDefinition("acme", approvalInput())
		assert.NoError(t, err)
		_, err = svc.UpdateDefinition(created.ID, "acme", service.UpdateDefinitionInput{IsActive: boolPtr(true)})
		assert.NoError(t, err)

		def, err := svc.UpdateDefinition(created.ID, "acme", service.UpdateDefinitionInput{IsActive: boolPtr(false)})
		assert.NoError(t, err)
		assert.False(t, def.IsActive)
		assert.Equal(t, models.DraftDefinitionStatus, def.Status)
	})

	t.Run("EmptyNameRejected", func(t *testing.T) {
		svc := service.NewDefinitionService(storage.NewMockStore(), logger{})
		created, err := svc.CreateDefinition("acme", approvalInput())
		assert.NoError(t, err)

		_, err = svc.UpdateDefinition(created.ID, "acme", service.UpdateDefinitionInput{Name: strPtr("")})
		assert.True(t, errors.Is(err, service.ErrValidation))
	})

	t.Run("CrossTenantNotFound", func(t *testing.T) {
		svc := service.NewDefinitionService(storage.NewMockStore(), logger{})
		created, err := svc.CreateDefinition("acme", approvalInput())
		assert.NoError(t, err)

		_, err = svc.UpdateDefinition(created.ID, "other-tenant", service.UpdateDefinitionInput{Name: strPtr("x")})
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})
}

func TestArchiveDefinition(t *testing.T) {
	svc := service.NewDefinitionService(storage.NewMockStore(), logger{})
	created, err := svc.CreateDefinition("acme", approvalInput())
	assert.NoError(t, err)

	def, err := svc.ArchiveDefinition(created.ID, "acme")
	assert.NoError(t, err)
	assert.Equal(t, models.ArchivedDefinitionStatus, def.Status)
	assert.False(t, def.IsActive)

	_, err = svc.ArchiveDefinition(9999, "acme")
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestListDefinitions(t *testing.T) {
	svc := service.NewDefinitionService(storage.NewMockStore(), logger{})

	defs, err := svc.ListDefinitions("acme")
	assert.NoError(t, err)
	assert.Empty(t, defs)

	_, err = svc.CreateDefinition("acme", approvalInput())
	assert.NoError(t, err)
	input := approvalInput()
	input.Name = "LeaveRequest"
	input.EntityType = "leave_request"
	_, err = svc.CreateDefinition("acme", input)
	assert.NoError(t, err)
	_, err = svc.CreateDefinition("globex", approvalInput())
	assert.NoError(t, err)

	defs, err = svc.ListDefinitions("acme")
	assert.NoError(t, err)
	assert.Len(t, defs, 2)

	defs, err = svc.ListDefinitions("globex")
	assert.NoError(t, err)
	assert.Len(t, defs, 1)
}
