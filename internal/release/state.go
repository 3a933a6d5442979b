// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"fmt"
)

const (
	// Unstaged is the initial state: nothing has been written to the local
	// staging repository for this run.
	Unstaged State = iota
	// Staged means archives, POM, checksums and signatures are on disk.
	Staged
	// Uploaded means every staged file was deployed to an open remote
	// staging repository.
	Uploaded
	// Validating means close or promote was requested and the remote is
	// being polled.
	Validating
	// Released is terminal: the version is public.
	Released
	// Failed is terminal and reachable from every non-terminal state.
	Failed
)

// ErrInvalidTransition is the sentinel wrapped by InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid release state transition")

type (
	// State is the per-module, per-run release state. It is never persisted.
	State int

	// InvalidTransitionError reports an edge the state machine does not allow.
	InvalidTransitionError struct {
		From State
		To   State
	}
)

func (s State) String() string {
	switch s {
	case Unstaged:
		return "unstaged"
	case Staged:
		return "staged"
	case Uploaded:
		return "uploaded"
	case Validating:
		return "validating"
	case Released:
		return "released"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == Released || s == Failed
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// Transition validates the edge from -> to.
func Transition(from, to State) error {
	if from.IsTerminal() {
		return &InvalidTransitionError{From: from, To: to}
	}
	if to == Failed {
		return nil
	}
	if to == from+1 {
		return nil
	}
	return &InvalidTransitionError{From: from, To: to}
}
