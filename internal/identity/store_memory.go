package identity

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
)

// InMemory is the map-backed store used by unit tests and the e2e wiring.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*User
	byEmail map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.UserID]*User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemory) CreateIfEmailAvailable(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[key] = user.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[userID]
	return &clone, nil
}

func (s *InMemory) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *user
	s.byID[user.ID] = &clone
	return nil
}

func (s *InMemory) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.byID))
	for _, user := range s.byID {
		clone := *user
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}
