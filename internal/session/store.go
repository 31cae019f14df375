// Package session holds the client's local session: one credential string and
// one JSON-encoded user profile. Both are set together at login and cleared
// together on logout or when the server reports an invalid credential.
package session

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
)

var ErrNoSession = errors.New("no active session")

// Store is a goroutine-safe in-memory session store.
type Store struct {
	mu      sync.RWMutex
	token   string
	profile []byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set stores the credential and profile of a fresh login.
func (s *Store) Set(token string, profile models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.profile = data
	s.mu.Unlock()
	return nil
}

// Token returns the held credential.
func (s *Store) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoSession
	}
	return s.token, nil
}

// Profile returns the stored user profile.
func (s *Store) Profile() (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return models.UserProfile{}, ErrNoSession
	}
	var profile models.UserProfile
	if err := json.Unmarshal(s.profile, &profile); err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

// Clear wipes the credential and profile together. Called on logout and on a
// detected invalid or expired credential; the user then re-authenticates.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.profile = nil
	s.mu.Unlock()
}

// Active reports whether a session is held.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}
