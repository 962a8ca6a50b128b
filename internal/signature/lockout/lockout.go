// Package lockout throttles signature credential failures. A signer who
// fails the credential check too many times inside the window is hard-locked
// until the window expires; lockout state is advisory throttling, not part of
// the audited signature record.
package lockout

import (
	"context"
	"sync"
	"time"

	id "doccontrol/pkg/domain"
)

// Guard tracks failed credential checks per signer.
type Guard interface {
	// Locked reports whether the signer is currently hard-locked.
	Locked(ctx context.Context, userID id.UserID) (bool, error)
	// RegisterFailure records one failed check and reports whether the
	// signer is now locked.
	RegisterFailure(ctx context.Context, userID id.UserID) (bool, error)
	// Reset clears the signer's failure count after a successful check.
	Reset(ctx context.Context, userID id.UserID) error
}

// Memory is the fallback guard when redis is not configured. Counts reset
// when the window since the first failure elapses.
type Memory struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	failures  map[id.UserID]*entry
}

type entry struct {
	count int
	first time.Time
}

func NewMemory(threshold int, window time.Duration) *Memory {
	return &Memory{
		threshold: threshold,
		window:    window,
		failures:  make(map[id.UserID]*entry),
	}
}

func (m *Memory) Locked(_ context.Context, userID id.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.failures[userID]
	if !ok {
		return false, nil
	}
	if time.Since(e.first) > m.window {
		delete(m.failures, userID)
		return false, nil
	}
	return e.count >= m.threshold, nil
}

func (m *Memory) RegisterFailure(_ context.Context, userID id.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.failures[userID]
	if !ok || time.Since(e.first) > m.window {
		e = &entry{first: time.Now()}
		m.failures[userID] = e
	}
	e.count++
	return e.count >= m.threshold, nil
}

func (m *Memory) Reset(_ context.Context, userID id.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.failures, userID)
	return nil
}
