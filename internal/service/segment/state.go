// Package segment provides window ID generation and the lifecycle of a
// slow-pass window.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a window.
type State int

const (
	// StateOpen - Window has been snapshotted, inference not started.
	StateOpen State = iota
	// StateInferring - Inference is in flight. The buffer is untouched.
	StateInferring
	// StateCommitted - Results emitted and the cursor advanced past the window.
	StateCommitted
	// StateDropped - Inference failed or was cancelled. No results, no commit.
	// The audio stays pending and is read again by the next window.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateInferring:
		return "INFERRING"
	case StateCommitted:
		return "COMMITTED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (COMMITTED or DROPPED).
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateDropped
}

// Errors for invalid state transitions.
var (
	ErrWindowClosed        = errors.New("window is closed")
	ErrAlreadyInferring    = errors.New("inference already started for this window")
	ErrCommitBeforeInfer   = errors.New("cannot commit a window before inference")
	ErrWindowAlreadyCommit = errors.New("window already committed")
)

// Lifecycle manages the state machine for a single window.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	OPEN → INFERRING → COMMITTED
//	  │         │
//	  └─────────┴── Drop() ──→ DROPPED
//
// Rules:
//   - OPEN: BeginInference moves to INFERRING.
//   - INFERRING: Commit moves to COMMITTED exactly once and applies the
//     caller's buffer commit.
//   - COMMITTED / DROPPED: terminal, every transition fails.
type Lifecycle struct {
	mu    sync.RWMutex
	id    string
	state State
}

// NewLifecycle creates a window lifecycle in OPEN state.
func NewLifecycle(id string) *Lifecycle {
	return &Lifecycle{
		id:    id,
		state: StateOpen,
	}
}

// ID returns the window ID.
func (l *Lifecycle) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsDropped returns true if the window was abandoned.
func (l *Lifecycle) IsDropped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDropped
}

// BeginInference moves OPEN → INFERRING.
func (l *Lifecycle) BeginInference() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		l.state = StateInferring
		return nil
	case StateInferring:
		return ErrAlreadyInferring
	case StateCommitted, StateDropped:
		return ErrWindowClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Commit moves INFERRING → COMMITTED and runs apply while holding the
// lifecycle lock, so a window dropped concurrently never applies its commit.
// apply may be nil.
func (l *Lifecycle) Commit(apply func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateInferring:
		if apply != nil {
			apply()
		}
		l.state = StateCommitted
		return nil
	case StateOpen:
		return ErrCommitBeforeInfer
	case StateCommitted:
		return ErrWindowAlreadyCommit
	case StateDropped:
		return ErrWindowClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Drop abandons the window. Returns true if the window was dropped, false if
// it was already terminal.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}
