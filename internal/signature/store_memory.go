package signature

import (
	"context"
	"sort"
	"sync"

	id "doccontrol/pkg/domain"
)

// InMemoryStore backs unit tests and the no-database wiring.
type InMemoryStore struct {
	mu         sync.RWMutex
	signatures map[id.SignatureID]*ElectronicSignature
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{signatures: make(map[id.SignatureID]*ElectronicSignature)}
}

func (s *InMemoryStore) Create(_ context.Context, sig *ElectronicSignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *sig
	s.signatures[sig.ID] = &clone
	return nil
}

func (s *InMemoryStore) ListByVersion(_ context.Context, versionID id.DocumentVersionID) ([]*ElectronicSignature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var signatures []*ElectronicSignature
	for _, sig := range s.signatures {
		if sig.DocumentVersionID == versionID {
			clone := *sig
			signatures = append(signatures, &clone)
		}
	}
	sort.Slice(signatures, func(i, j int) bool { return signatures[i].SignedAt.After(signatures[j].SignedAt) })
	return signatures, nil
}
