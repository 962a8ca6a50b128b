package audit

import (
	"context"
	"sync"

	id "doccontrol/pkg/domain"
)

// InMemoryStore keeps events in a slice. Used by unit tests and the e2e
// wiring; the postgres store is the production sink.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastN(s.events, limit), nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, documentID id.DocumentID, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	for _, e := range s.events {
		if e.DocumentID != nil && *e.DocumentID == documentID {
			matched = append(matched, e)
		}
	}
	return lastN(matched, limit), nil
}

// lastN returns up to limit events, most recent first. Events are appended in
// order, so recency is slice position.
func lastN(events []Event, limit int) []Event {
	if limit <= 0 || limit > len(events) {
		limit = len(events)
	}
	out := make([]Event, 0, limit)
	for i := len(events) - 1; i >= len(events)-limit; i-- {
		out = append(out, events[i])
	}
	return out
}
