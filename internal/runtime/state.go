package runtime

import (
	"maps"
	"sync"
	"time"

	"rgehrsitz/assist/internal/rules"
)

// State is the engine state shared between the background worker and the
// presentation side. Every read and write goes through its mutex.
type State struct {
	mu                 sync.Mutex
	previousSuggestion string
	previousPopup      string
	lastCheck          time.Time
	lastUICheck        time.Time
	dismissed          map[string]bool
	active             *rules.Rule
}

// Snapshot is an immutable copy of State used for one evaluation.
type Snapshot struct {
	PreviousSuggestion string
	PreviousPopup      string
	LastCheck          time.Time
	LastUICheck        time.Time
	Dismissed          map[string]bool
	Active             *rules.Rule
}

// IsDismissed reports whether id was dismissed at snapshot time.
func (s Snapshot) IsDismissed(id string) bool {
	_, ok := s.Dismissed[id]
	return ok
}

// NewState returns an empty state.
func NewState() *State {
	return &State{dismissed: make(map[string]bool)}
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		PreviousSuggestion: s.previousSuggestion,
		PreviousPopup:      s.previousPopup,
		LastCheck:          s.lastCheck,
		LastUICheck:        s.lastUICheck,
		Dismissed:          maps.Clone(s.dismissed),
		Active:             s.active,
	}
}

// Active returns the currently published suggestion, or nil.
func (s *State) Active() *rules.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive publishes the result of a selection.
func (s *State) SetActive(r *rules.Rule) {
	s.mu.Lock()
	s.active = r
	s.mu.Unlock()
}

// Dismiss suppresses id from future selection. persist records whether the
// user asked for the dismissal to outlive the session.
func (s *State) Dismiss(id string, persist bool) {
	s.mu.Lock()
	s.dismissed[id] = persist
	s.mu.Unlock()
}

// IsDismissed reports whether id has been dismissed.
func (s *State) IsDismissed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dismissed[id]
	return ok
}

// Dismissed returns a copy of the dismissal set.
func (s *State) Dismissed() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.dismissed)
}

// PreviousSuggestion returns the id of the last suggestion acted on.
func (s *State) PreviousSuggestion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previousSuggestion
}

// SetPreviousSuggestion records the suggestion the user acted on.
func (s *State) SetPreviousSuggestion(id string) {
	s.mu.Lock()
	s.previousSuggestion = id
	s.mu.Unlock()
}

// PreviousPopup returns the id of the last suggestion shown.
func (s *State) PreviousPopup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previousPopup
}

// LastCheck returns the time of the last poll or user response.
func (s *State) LastCheck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheck
}

// MarkCheck sets the last check time.
func (s *State) MarkCheck(t time.Time) {
	s.mu.Lock()
	s.lastCheck = t
	s.mu.Unlock()
}

// LastUICheck returns the time a suggestion was last shown.
func (s *State) LastUICheck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUICheck
}

// MarkUICheck sets the last UI check time.
func (s *State) MarkUICheck(t time.Time) {
	s.mu.Lock()
	s.lastUICheck = t
	s.mu.Unlock()
}

// Rewind moves the last check back by d and aligns the UI check with it, so
// that the next poll and any elapsed: condition come due sooner.
func (s *State) Rewind(d time.Duration) {
	s.mu.Lock()
	s.lastCheck = s.lastCheck.Add(-d)
	s.lastUICheck = s.lastCheck
	s.mu.Unlock()
}

// claimPopup decides whether the active suggestion may be shown and, if so,
// records the show in the same critical section.
func (s *State) claimPopup(now time.Time, interval time.Duration, passive bool) (*rules.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.active
	if r == nil || passive {
		return nil, false
	}
	if _, dismissed := s.dismissed[r.ID]; dismissed {
		return nil, false
	}
	if r.ID == s.previousPopup {
		return nil, false
	}
	if now.Before(s.lastUICheck.Add(interval)) {
		return nil, false
	}
	s.lastUICheck = now
	s.previousPopup = r.ID
	return r, true
}

// Reset returns the state to its initial values.
func (s *State) Reset() {
	s.mu.Lock()
	s.previousSuggestion = ""
	s.previousPopup = ""
	s.lastCheck = time.Time{}
	s.lastUICheck = time.Time{}
	s.dismissed = make(map[string]bool)
	s.active = nil
	s.mu.Unlock()
}
