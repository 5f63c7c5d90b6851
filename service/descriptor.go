package service

import (
	"fmt"

	es2 "github.com/CharellKing/ela-move/pkg/es"
)

type IndexState string

const (
	StateDiscovered      IndexState = "discovered"
	StateConflictChecked IndexState = "conflict_checked"
	StateReadOnlyLocked  IndexState = "read_only_locked"
	StateReindexed       IndexState = "reindexed"
	StateVerified        IndexState = "verified"
	StateFailed          IndexState = "failed"
	StateFinalized       IndexState = "finalized"
)

// Failed and Verified share a rank: they are the two possible outcomes of
// verification and neither can follow the other.
var stateOrder = map[IndexState]int{
	StateDiscovered:      0,
	StateConflictChecked: 1,
	StateReadOnlyLocked:  2,
	StateReindexed:       3,
	StateVerified:        4,
	StateFailed:          4,
	StateFinalized:       5,
}

// IndexDescriptor tracks one index through a single run. It is rebuilt from
// cluster-observable state on every run and never persisted.
type IndexDescriptor struct {
	Name        string
	SourceCount es2.DocCount
	TargetCount es2.DocCount
	State       IndexState
}

func NewIndexDescriptor(name string) *IndexDescriptor {
	return &IndexDescriptor{
		Name:        name,
		SourceCount: es2.UnknownCount(),
		TargetCount: es2.UnknownCount(),
		State:       StateDiscovered,
	}
}

// Advance moves the descriptor strictly forward. Failed is terminal.
func (d *IndexDescriptor) Advance(to IndexState) error {
	if d.State == StateFailed || d.State == StateFinalized {
		return fmt.Errorf("index %s already terminal in state %s", d.Name, d.State)
	}

	if stateOrder[to] <= stateOrder[d.State] {
		return fmt.Errorf("invalid transition %s -> %s for index %s", d.State, to, d.Name)
	}

	d.State = to
	return nil
}
