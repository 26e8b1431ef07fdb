package speaker

import "live-transcription-service/internal/models"

// Set owns one State per fixed speaker for the lifetime of a session.
type Set struct {
	states map[models.Speaker]*State
}

// NewSet creates fresh state for every speaker in models.Speakers.
func NewSet(maxPending int) *Set {
	states := make(map[models.Speaker]*State, len(models.Speakers))
	for _, sp := range models.Speakers {
		states[sp] = NewState(sp, maxPending)
	}
	return &Set{states: states}
}

// Get returns the state for a speaker.
func (s *Set) Get(sp models.Speaker) (*State, bool) {
	st, ok := s.states[sp]
	return st, ok
}

// All returns the states in models.Speakers order.
func (s *Set) All() []*State {
	out := make([]*State, 0, len(models.Speakers))
	for _, sp := range models.Speakers {
		out = append(out, s.states[sp])
	}
	return out
}
