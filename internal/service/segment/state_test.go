package segment

import (
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("win-1")

	if lc.State() != StateOpen {
		t.Errorf("expected StateOpen, got %v", lc.State())
	}
	if lc.ID() != "win-1" {
		t.Errorf("expected win-1, got %v", lc.ID())
	}
	if lc.IsDropped() {
		t.Error("expected IsDropped to be false")
	}
}

func TestLifecycle_FullCycle(t *testing.T) {
	lc := NewLifecycle("win-1")

	if err := lc.BeginInference(); err != nil {
		t.Fatalf("BeginInference: unexpected error: %v", err)
	}
	if lc.State() != StateInferring {
		t.Errorf("expected StateInferring, got %v", lc.State())
	}
	if err := lc.Commit(nil); err != nil {
		t.Fatalf("Commit: unexpected error: %v", err)
	}
	if lc.State() != StateCommitted {
		t.Errorf("expected StateCommitted, got %v", lc.State())
	}
}

func TestLifecycle_CommitOnlyOnce(t *testing.T) {
	lc := NewLifecycle("win-1")
	lc.BeginInference()

	if err := lc.Commit(nil); err != nil {
		t.Fatalf("first commit: unexpected error: %v", err)
	}
	if err := lc.Commit(nil); err != ErrWindowAlreadyCommit {
		t.Errorf("second commit: expected ErrWindowAlreadyCommit, got %v", err)
	}
}

func TestLifecycle_CommitBeforeInference(t *testing.T) {
	lc := NewLifecycle("win-1")

	if err := lc.Commit(nil); err != ErrCommitBeforeInfer {
		t.Errorf("expected ErrCommitBeforeInfer, got %v", err)
	}
	if lc.State() != StateOpen {
		t.Errorf("expected StateOpen, got %v", lc.State())
	}
}

func TestLifecycle_BeginInferenceTwice(t *testing.T) {
	lc := NewLifecycle("win-1")
	lc.BeginInference()

	if err := lc.BeginInference(); err != ErrAlreadyInferring {
		t.Errorf("expected ErrAlreadyInferring, got %v", err)
	}
}

func TestLifecycle_Drop_MidInference(t *testing.T) {
	lc := NewLifecycle("win-1")
	lc.BeginInference()

	if !lc.Drop() {
		t.Error("expected Drop to return true during inference")
	}
	if !lc.IsDropped() {
		t.Error("expected IsDropped after drop")
	}

	// A late commit after cancellation must be refused.
	if err := lc.Commit(nil); err != ErrWindowClosed {
		t.Errorf("expected ErrWindowClosed, got %v", err)
	}
}

func TestLifecycle_Drop_Idempotent(t *testing.T) {
	lc := NewLifecycle("win-1")

	if !lc.Drop() {
		t.Error("first Drop should return true")
	}
	if lc.Drop() {
		t.Error("second Drop should return false")
	}
}

func TestLifecycle_Drop_FailsAfterCommit(t *testing.T) {
	lc := NewLifecycle("win-1")
	lc.BeginInference()
	lc.Commit(nil)

	if lc.Drop() {
		t.Error("Drop should return false after commit")
	}
	if lc.State() != StateCommitted {
		t.Errorf("expected StateCommitted to be kept, got %v", lc.State())
	}
}

func TestLifecycle_OperationsFailAfterDrop(t *testing.T) {
	lc := NewLifecycle("win-1")
	lc.Drop()

	if err := lc.BeginInference(); err != ErrWindowClosed {
		t.Errorf("BeginInference: expected ErrWindowClosed, got %v", err)
	}
	if err := lc.Commit(nil); err != ErrWindowClosed {
		t.Errorf("Commit: expected ErrWindowClosed, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateOpen, "OPEN"},
		{StateInferring, "INFERRING"},
		{StateCommitted, "COMMITTED"},
		{StateDropped, "DROPPED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		terminal bool
	}{
		{StateOpen, false},
		{StateInferring, false},
		{StateCommitted, true},
		{StateDropped, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestLifecycle_CommitAppliesOnlyFromInferring(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(lc *Lifecycle)
		wantErr   error
		wantApply bool
	}{
		{"inferring", func(lc *Lifecycle) { lc.BeginInference() }, nil, true},
		{"open", func(lc *Lifecycle) {}, ErrCommitBeforeInfer, false},
		{"dropped", func(lc *Lifecycle) { lc.BeginInference(); lc.Drop() }, ErrWindowClosed, false},
		{"committed", func(lc *Lifecycle) { lc.BeginInference(); lc.Commit(nil) }, ErrWindowAlreadyCommit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle("win-1")
			tt.setup(lc)

			applied := false
			err := lc.Commit(func() { applied = true })
			if err != tt.wantErr {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if applied != tt.wantApply {
				t.Errorf("expected applied=%v, got %v", tt.wantApply, applied)
			}
		})
	}
}
