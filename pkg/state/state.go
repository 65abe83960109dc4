package state

import (
	"context"
	"errors"

	"github.com/cbodonnell/jigsaw/pkg/puzzle"
)

// ErrNoSession is returned by Get while no puzzle session is running.
var ErrNoSession = errors.New("no active session")

// Snapshot is the authority's canonical state as of one tick.
type Snapshot struct {
	SessionID string
	Timestamp int64
	Puzzle    *puzzle.State
}

// StateManager provides shared access to the latest snapshot.
// Implementations must be thread-safe.
type StateManager interface {
	// Get returns a copy of the current snapshot.
	Get(ctx context.Context) (*Snapshot, error)
	// Set replaces the current snapshot.
	Set(ctx context.Context, snapshot *Snapshot) error
	// Clear forgets the snapshot when a session ends.
	Clear(ctx context.Context) error
}
