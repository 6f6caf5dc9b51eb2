package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that no live entity has the requested id. Wrapped by
// the engine's lookup failures; match with errors.Is.
var ErrNotFound = errors.New("not found")

// InvalidTransitionError reports a state change that is not reachable from
// the entity's current state.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: invalid transition %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// PreconditionFailedError reports a transition whose guard is not satisfied.
// BlockingIDs names the entities holding the guard so callers can explain
// the block or decide to override.
type PreconditionFailedError struct {
	Entity      string
	ID          string
	To          string
	BlockingIDs []string
}

func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("%s %s: cannot reach %s, blocked by [%s]",
		e.Entity, e.ID, e.To, strings.Join(e.BlockingIDs, ", "))
}
