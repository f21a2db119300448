package models

import "sort"

// Graph is the in-memory view of a definition's states and transitions,
// built once per operation from a loaded aggregate. It answers the
// structural questions the engine needs: where do instances start,
// which edge is this, and is that edge legal from here.
type Graph struct {
	states       map[int64]*WorkflowState
	statesByName map[string]*WorkflowState
	transitions  map[int64]*WorkflowTransition
	outgoing     map[int64][]*WorkflowTransition
}

// NewGraph compiles the definition's states and transitions into lookup
// maps. The definition aggregate must be fully loaded.
func NewGraph(def *WorkflowDefinition) *Graph {
	g := &Graph{
		states:       make(map[int64]*WorkflowState, len(def.States)),
		statesByName: make(map[string]*WorkflowState, len(def.States)),
		transitions:  make(map[int64]*WorkflowTransition, len(def.Transitions)),
		outgoing:     make(map[int64][]*WorkflowTransition),
	}
	for i := range def.States {
		st := &def.States[i]
		g.states[st.ID] = st
		g.statesByName[st.Name] = st
	}
	for i := range def.Transitions {
		tr := &def.Transitions[i]
		g.transitions[tr.ID] = tr
		g.outgoing[tr.FromStateID] = append(g.outgoing[tr.FromStateID], tr)
	}
	return g
}

// InitialState returns the state instances start in. With several
// is_initial states the lowest sort_order (then lowest id) wins, so
// definitions imported from elsewhere still resolve deterministically.
func (g *Graph) InitialState() (*WorkflowState, bool) {
	var initials []*WorkflowState
	for _, st := range g.states {
		if st.IsInitial {
			initials = append(initials, st)
		}
	}
	if len(initials) == 0 {
		return nil, false
	}
	sort.Slice(initials, func(i, j int) bool {
		if initials[i].SortOrder != initials[j].SortOrder {
			return initials[i].SortOrder < initials[j].SortOrder
		}
		return initials[i].ID < initials[j].ID
	})
	return initials[0], true
}

// HasFinalState reports whether at least one state is flagged is_final.
func (g *Graph) HasFinalState() bool {
	for _, st := range g.states {
		if st.IsFinal {
			return true
		}
	}
	return false
}

// State looks up a state by id.
func (g *Graph) State(id int64) (*WorkflowState, bool) {
	st, ok := g.states[id]
	return st, ok
}

// StateByName looks up a state by its definition-unique name.
func (g *Graph) StateByName(name string) (*WorkflowState, bool) {
	st, ok := g.statesByName[name]
	return st, ok
}

// Transition looks up a transition by id.
func (g *Graph) Transition(id int64) (*WorkflowTransition, bool) {
	tr, ok := g.transitions[id]
	return tr, ok
}

// Outgoing returns the transitions leaving the given state.
func (g *Graph) Outgoing(stateID int64) []*WorkflowTransition {
	return g.outgoing[stateID]
}

// CanApply reports whether the transition is legal from the given
// state: the directed edge must originate exactly at the instance's
// current node.
func (g *Graph) CanApply(tr *WorkflowTransition, currentStateID int64) bool {
	return tr.FromStateID == currentStateID
}
