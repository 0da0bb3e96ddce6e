// Package directory resolves owner ids to notification contact details.
// User accounts live in a separate service; this is the only view of them
// the task backbone needs.
package directory

import (
	"context"
	"errors"
	"sync"
)

// ErrContactNotFound indicates the directory has no contact for the user.
var ErrContactNotFound = errors.New("contact not found")

// Contact is the deliverable addressing for one user.
type Contact struct {
	Email       string
	DeviceToken string
}

// Resolver looks up contact details for a user.
type Resolver interface {
	Lookup(ctx context.Context, userID string) (Contact, error)
}

// Static is a fixed in-memory resolver for tests and local development.
type Static struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

// NewStatic creates a resolver over a fixed contact map.
func NewStatic(contacts map[string]Contact) *Static {
	cp := make(map[string]Contact, len(contacts))
	for k, v := range contacts {
		cp[k] = v
	}
	return &Static{contacts: cp}
}

func (s *Static) Lookup(_ context.Context, userID string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[userID]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	return c, nil
}

// Add registers or replaces a contact.
func (s *Static) Add(userID string, c Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[userID] = c
}
