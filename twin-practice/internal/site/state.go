package site

import (
	"encoding/json"
	"sync"

	pkgstore "github.com/bouvet-sqad/flowcheck/pkg/store"
)

// DefaultOutcomes is the notification cycle used until a test loads its
// own: two failures, then success.
var DefaultOutcomes = []bool{false, false, true}

// Session is a browser session keyed by the sid cookie.
type Session struct {
	Username string `json:"username,omitempty"`
	Flash    string `json:"flash,omitempty"`
	FlashOK  bool   `json:"flash_ok,omitempty"`
}

// Authenticated reports whether the session has logged in.
func (s Session) Authenticated() bool { return s.Username != "" }

// State is the practice site's mutable state: sessions and the position
// in the notification outcome cycle.
type State struct {
	Sessions *pkgstore.Store[Session]

	mu       sync.Mutex
	outcomes []bool
	next     int
}

// NewState creates empty state with DefaultOutcomes.
func NewState() *State {
	return &State{
		Sessions: pkgstore.New[Session]("sid"),
		outcomes: append([]bool(nil), DefaultOutcomes...),
	}
}

// NextOutcome returns whether the next notification succeeds and advances
// the cycle.
func (s *State) NextOutcome() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) == 0 {
		return true
	}
	ok := s.outcomes[s.next%len(s.outcomes)]
	s.next++
	return ok
}

type stateSnapshot struct {
	Sessions          map[string]Session `json:"sessions"`
	Outcomes          []bool             `json:"notification_outcomes"`
	NotificationsSent int                `json:"notifications_sent"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *State) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateSnapshot{
		Sessions:          s.Sessions.Snapshot(),
		Outcomes:          append([]bool(nil), s.outcomes...),
		NotificationsSent: s.next,
	}
}

// LoadState replaces the state. An omitted outcome list keeps the current
// one; the cycle restarts either way.
func (s *State) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Sessions != nil {
		s.Sessions.LoadSnapshot(snap.Sessions)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Outcomes != nil {
		s.outcomes = snap.Outcomes
	}
	s.next = snap.NotificationsSent
	return nil
}

// Reset clears sessions and restores DefaultOutcomes.
func (s *State) Reset() {
	s.Sessions.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append([]bool(nil), DefaultOutcomes...)
	s.next = 0
}

// SetOutcomes replaces the notification cycle and restarts it.
func (s *State) SetOutcomes(outcomes ...bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append([]bool(nil), outcomes...)
	s.next = 0
}
