package state

import (
	"context"
	"fmt"
	"sync"
)

type InMemoryStateManager struct {
	lock     sync.RWMutex
	snapshot *Snapshot
}

func NewInMemoryStateManager() *InMemoryStateManager {
	return &InMemoryStateManager{}
}

func (m *InMemoryStateManager) Get(ctx context.Context) (*Snapshot, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.snapshot == nil {
		return nil, ErrNoSession
	}
	return &Snapshot{
		SessionID: m.snapshot.SessionID,
		Timestamp: m.snapshot.Timestamp,
		Puzzle:    m.snapshot.Puzzle.Copy(),
	}, nil
}

// Set stores a copy of snapshot, so the caller may keep mutating its own.
func (m *InMemoryStateManager) Set(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil || snapshot.Puzzle == nil {
		return fmt.Errorf("snapshot is nil")
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.snapshot = &Snapshot{
		SessionID: snapshot.SessionID,
		Timestamp: snapshot.Timestamp,
		Puzzle:    snapshot.Puzzle.Copy(),
	}
	return nil
}

func (m *InMemoryStateManager) Clear(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.snapshot = nil
	return nil
}
