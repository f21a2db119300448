package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tenantic/flowcore/pkg/models"
)

func approvalDefinition() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		ID:         1,
		TenantID:   "acme",
		Name:       "InvoiceApproval",
		EntityType: "invoice",
		States: []models.WorkflowState{
			{ID: 1, DefinitionID: 1, Name: "draft", IsInitial: true, SortOrder: 1},
			{ID: 2, DefinitionID: 1, Name: "review", SortOrder: 2},
			{ID: 3, DefinitionID: 1, Name: "approved", IsFinal: true, SortOrder: 3},
			{ID: 4, DefinitionID: 1, Name: "rejected", IsFinal: true, SortOrder: 4},
		},
		Transitions: []models.WorkflowTransition{
			{ID: 10, DefinitionID: 1, FromStateID: 1, ToStateID: 2, Name: "submit"},
			{ID: 11, DefinitionID: 1, FromStateID: 2, ToStateID: 3, Name: "approve"},
			{ID: 12, DefinitionID: 1, FromStateID: 2, ToStateID: 4, Name: "reject", RequiresComment: true},
		},
	}
}

func TestGraphInitialState(t *testing.T) {
	t.Run("SingleInitial", func(t *testing.T) {
		def := approvalDefinition()
		g := models.NewGraph(&def)
		initial, ok := g.InitialState()
		assert.True(t, ok)
		assert.Equal(t, "draft", initial.Name)
	})

	t.Run("NoInitial", func(t *testing.T) {
		def := approvalDefinition()
		for i := range def.States {
			def.States[i].IsInitial = false
		}
		g := models.NewGraph(&def)
		_, ok := g.InitialState()
		assert.False(t, ok)
	})

	t.Run("MultipleInitialsLowestSortOrderWins", func(t *testing.T) {
		def := approvalDefinition()
		def.States[1].IsInitial = true
		def.States[1].SortOrder = 0
		g := models.NewGraph(&def)
		initial, ok := g.InitialState()
		assert.True(t, ok)
		assert.Equal(t, "review", initial.Name)
	})

	t.Run("SortOrderTieBreaksOnID", func(t *testing.T) {
		def := approvalDefinition()
		def.States[1].IsInitial = true
		def.States[1].SortOrder = def.States[0].SortOrder
		g := models.NewGraph(&def)
		initial, ok := g.InitialState()
		assert.True(t, ok)
		assert.Equal(t, "draft", initial.Name)
	})
}

func TestGraphLookups(t *testing.T) {
	def := approvalDefinition()
	g := models.NewGraph(&def)

	st, ok := g.State(2)
	assert.True(t, ok)
	assert.Equal(t, "review", st.Name)

	_, ok = g.State(99)
	assert.False(t, ok)

	byName, ok := g.StateByName("approved")
	assert.True(t, ok)
	assert.True(t, byName.IsFinal)

	tr, ok := g.Transition(11)
	assert.True(t, ok)
	assert.Equal(t, "approve", tr.Name)

	_, ok = g.Transition(99)
	assert.False(t, ok)

	assert.True(t, g.HasFinalState())
}

func TestGraphOutgoing(t *testing.T) {
	def := approvalDefinition()
	g := models.NewGraph(&def)

	out := g.Outgoing(2)
	assert.Len(t, out, 2)

	assert.Empty(t, g.Outgoing(3))
	assert.Empty(t, g.Outgoing(4))
}

func TestGraphCanApply(t *testing.T) {
	def := approvalDefinition()
	g := models.NewGraph(&def)

	submit, _ := g.Transition(10)
	assert.True(t, g.CanApply(submit, 1))
	assert.False(t, g.CanApply(submit, 2))

	approve, _ := g.Transition(11)
	assert.False(t, g.CanApply(approve, 1))
	assert.True(t, g.CanApply(approve, 2))
}

func TestGraphSelfLoop(t *testing.T) {
	def := approvalDefinition()
	def.Transitions = append(def.Transitions, models.WorkflowTransition{
		ID: 13, DefinitionID: 1, FromStateID: 2, ToStateID: 2, Name: "request-changes",
	})
	g := models.NewGraph(&def)

	loop, ok := g.Transition(13)
	assert.True(t, ok)
	assert.True(t, g.CanApply(loop, 2))
	assert.Len(t, g.Outgoing(2), 3)
}
