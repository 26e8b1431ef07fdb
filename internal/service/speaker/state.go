// Package speaker holds the per-speaker audio buffer shared by ingest and
// the two transcription passes.
//
// Buffer policy: cursor with overlap. The slow pass reads from
// cursor-overlap to the end of the buffer and, once inference succeeds,
// commits the window end as the new cursor. Commit also compacts the front
// of the buffer, keeping a fixed number of bytes before the cursor so the
// next overlap and the fast pass tail stay available. Memory is therefore
// bounded by retain + pending, and pending is bounded by the append limit.
package speaker

import (
	"errors"
	"fmt"
	"sync"

	"live-transcription-service/internal/models"
)

// ErrPendingLimit is returned by Append when accepting the chunk would
// leave more unprocessed audio than the configured limit.
var ErrPendingLimit = errors.New("pending audio limit exceeded")

// Window is a copy of a slice of a speaker's buffer. Start and End are
// absolute byte offsets since the session began.
type Window struct {
	Speaker models.Speaker
	PCM     []byte
	Start   int64
	End     int64
}

// Len returns the window size in bytes.
func (w Window) Len() int {
	return len(w.PCM)
}

// Stats is a point-in-time view of a speaker's buffer.
type Stats struct {
	Len     int
	Cursor  int
	Pending int
	Written int64
	Trimmed int64
}

// State is the buffer and pass bookkeeping for one speaker. Every method
// takes the same mutex, so a reader never observes a half-appended chunk.
type State struct {
	speaker    models.Speaker
	maxPending int

	mu        sync.Mutex
	buf       []byte
	cursor    int   // buffer-relative end of committed audio
	trimmed   int64 // absolute offset of buf[0]
	lastDraft string
}

// NewState creates an empty buffer. maxPending <= 0 disables the append limit.
func NewState(speaker models.Speaker, maxPending int) *State {
	return &State{
		speaker:    speaker,
		maxPending: maxPending,
	}
}

// Speaker returns the channel this state belongs to.
func (s *State) Speaker() models.Speaker {
	return s.speaker
}

// Append copies p to the tail of the buffer and returns the total number of
// bytes ever written.
func (s *State) Append(p []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxPending > 0 {
		pending := len(s.buf) - s.cursor
		if pending+len(p) > s.maxPending {
			return s.trimmed + int64(len(s.buf)), fmt.Errorf("%w: %d+%d > %d",
				ErrPendingLimit, pending, len(p), s.maxPending)
		}
	}

	s.buf = append(s.buf, p...)
	return s.trimmed + int64(len(s.buf)), nil
}

// SnapshotTail returns a copy of the last n bytes, or the whole buffer if it
// is shorter. It never touches the cursor.
func (s *State) SnapshotTail(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return nil
	}
	start := len(s.buf) - n
	if start < 0 {
		start = 0
	}
	return append([]byte(nil), s.buf[start:]...)
}

// SnapshotFrom returns a copy of the buffer from max(0, cursor-overlap) up to
// the end, capped at maxBytes when maxBytes > 0. The returned End is the
// offset to pass to Commit once the window has been transcribed.
func (s *State) SnapshotFrom(overlap, maxBytes int) Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.cursor - overlap
	if start < 0 {
		start = 0
	}
	end := len(s.buf)
	if maxBytes > 0 && end-start > maxBytes {
		end = start + maxBytes
	}

	return Window{
		Speaker: s.speaker,
		PCM:     append([]byte(nil), s.buf[start:end]...),
		Start:   s.trimmed + int64(start),
		End:     s.trimmed + int64(end),
	}
}

// Commit advances the cursor to the absolute offset end and compacts the
// buffer, keeping retain bytes before the new cursor. A stale end at or
// behind the cursor is ignored. It returns the number of bytes discarded.
func (s *State) Commit(end int64, retain int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := int(end - s.trimmed)
	if rel <= s.cursor {
		return 0
	}
	if rel > len(s.buf) {
		rel = len(s.buf)
	}
	s.cursor = rel
	return s.trimFrontLocked(retain)
}

// TrimFront discards committed history, keeping keep bytes before the
// cursor. Unprocessed bytes are never discarded. It returns the number of
// bytes removed.
func (s *State) TrimFront(keep int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trimFrontLocked(keep)
}

func (s *State) trimFrontLocked(keep int) int {
	if keep < 0 {
		keep = 0
	}
	drop := s.cursor - keep
	if drop <= 0 {
		return 0
	}
	n := copy(s.buf, s.buf[drop:])
	s.buf = s.buf[:n]
	s.cursor -= drop
	s.trimmed += int64(drop)
	return drop
}

// Len returns the number of bytes currently held.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Pending returns the number of bytes not yet committed by the slow pass.
func (s *State) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) - s.cursor
}

// Written returns the total number of bytes ever appended.
func (s *State) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trimmed + int64(len(s.buf))
}

// Stats returns a consistent snapshot of the buffer counters.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Len:     len(s.buf),
		Cursor:  s.cursor,
		Pending: len(s.buf) - s.cursor,
		Written: s.trimmed + int64(len(s.buf)),
		Trimmed: s.trimmed,
	}
}

// Draft records text as the latest draft. It returns false when text equals
// the previous draft, meaning the caller should not emit it again.
func (s *State) Draft(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == s.lastDraft {
		return false
	}
	s.lastDraft = text
	return true
}

// LastDraft returns the most recent emitted draft text.
func (s *State) LastDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDraft
}
