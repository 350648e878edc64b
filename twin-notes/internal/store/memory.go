package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	pkgstore "github.com/bouvet-sqad/flowcheck/pkg/store"
)

// MemoryStore holds all Notes twin state in memory.
type MemoryStore struct {
	Users   *pkgstore.Store[User]
	Notes   *pkgstore.Store[Note]
	Revoked *pkgstore.Store[Revocation] // keyed by token ID

	Clock *pkgstore.Clock
}

// New creates a new MemoryStore with empty state.
func New() *MemoryStore {
	return &MemoryStore{
		Users:   pkgstore.New[User]("64f1a0"),
		Notes:   pkgstore.New[Note]("64f2b0"),
		Revoked: pkgstore.New[Revocation]("rev"),
		Clock:   pkgstore.NewClock(),
	}
}

// stateSnapshot is the JSON-serializable state for admin endpoints.
type stateSnapshot struct {
	Users   map[string]User       `json:"users"`
	Notes   map[string]Note       `json:"notes"`
	Revoked map[string]Revocation `json:"revoked,omitempty"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return stateSnapshot{
		Users:   s.Users.Snapshot(),
		Notes:   s.Notes.Snapshot(),
		Revoked: s.Revoked.Snapshot(),
	}
}

// LoadState replaces the full state from a JSON body.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.Users.LoadSnapshot(snap.Users)
	s.Notes.LoadSnapshot(snap.Notes)
	if snap.Revoked != nil {
		s.Revoked.LoadSnapshot(snap.Revoked)
	} else {
		s.Revoked.Reset()
	}
	return nil
}

// Reset clears all state.
func (s *MemoryStore) Reset() {
	s.Users.Reset()
	s.Notes.Reset()
	s.Revoked.Reset()
	s.Clock.Reset()
}

// UserByEmail finds a user by email, case-insensitively.
func (s *MemoryStore) UserByEmail(email string) (User, bool) {
	_, u, ok := s.Users.Find(func(_ string, u User) bool {
		return strings.EqualFold(u.Email, email)
	})
	return u, ok
}

// NotesOf returns the user's notes in creation order.
func (s *MemoryStore) NotesOf(userID string) []Note {
	return s.Notes.Filter(func(_ string, n Note) bool { return n.UserID == userID })
}

// DeleteUser removes the user together with their notes.
func (s *MemoryStore) DeleteUser(userID string) bool {
	if !s.Users.Delete(userID) {
		return false
	}
	s.Notes.DeleteWhere(func(_ string, n Note) bool { return n.UserID == userID })
	return true
}

// HashPassword returns the stored form of a password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
