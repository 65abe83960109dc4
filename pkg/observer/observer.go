// Package observer keeps a local mirror of a puzzle in sync with the
// authority while letting the user drag one piece at a time.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
)

var (
	ErrAlreadyStarted = errors.New("observer already started")
	ErrNotStarted     = errors.New("observer not started")
	ErrAlreadyHolding = errors.New("a piece is already held")
	ErrNotHolding     = errors.New("no piece is held")
	ErrNoInitialState = errors.New("initial state is nil")
)

const idle = -1

// Sender forwards a message to the authority.
type Sender interface {
	SendMessage(ctx context.Context, msg *messages.Message) error
}

// Observer mirrors the authority's state. While a piece is held locally,
// ticks never overwrite it, so the piece follows the pointer instead of
// lagging a round trip behind.
type Observer struct {
	sender Sender
	logger *log.Logger

	mu      sync.Mutex
	mirror  *puzzle.State
	held    int
	session string
}

func NewObserver(sender Sender) *Observer {
	return &Observer{
		sender: sender,
		logger: log.With("observer"),
		held:   idle,
	}
}

// Start adopts initial as the mirror and proposes it to the authority.
func (o *Observer) Start(ctx context.Context, initial *puzzle.State) error {
	if initial == nil {
		return ErrNoInitialState
	}

	o.mu.Lock()
	if o.mirror != nil {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.mirror = initial.Copy()
	o.mu.Unlock()

	msg, err := messages.Start(initial)
	if err != nil {
		return fmt.Errorf("failed to build start message: %v", err)
	}
	if err := o.sender.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to send start message: %v", err)
	}
	return nil
}

// BeginDrag moves the observer into the held state for index.
func (o *Observer) BeginDrag(index int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.mirror == nil {
		return ErrNotStarted
	}
	if o.held != idle {
		return fmt.Errorf("%w: %d", ErrAlreadyHolding, o.held)
	}
	if index < 0 || index >= o.mirror.Len() {
		return fmt.Errorf("%w: %d", puzzle.ErrIndexOutOfRange, index)
	}
	o.held = index
	return nil
}

// Move updates the local mirror first and then forwards the move.
func (o *Observer) Move(ctx context.Context, index int, x, y float64) error {
	o.mu.Lock()
	if o.mirror == nil {
		o.mu.Unlock()
		return ErrNotStarted
	}
	if err := o.mirror.SetPosition(index, x, y); err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	msg, err := messages.Move(index, x, y)
	if err != nil {
		return fmt.Errorf("failed to build move message: %v", err)
	}
	if err := o.sender.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to send move message: %v", err)
	}
	return nil
}

// EndDrag returns to idle and tells the authority the piece was let go.
func (o *Observer) EndDrag(ctx context.Context) error {
	o.mu.Lock()
	index := o.held
	if index == idle {
		o.mu.Unlock()
		return ErrNotHolding
	}
	o.held = idle
	o.mu.Unlock()

	msg, err := messages.Release(index)
	if err != nil {
		return fmt.Errorf("failed to build release message: %v", err)
	}
	if err := o.sender.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to send release message: %v", err)
	}
	return nil
}

// ApplyUpdate overwrites every piece except the one held locally. Applying
// the same tick twice leaves the mirror unchanged.
func (o *Observer) ApplyUpdate(tick *messages.ServerState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if tick.SessionID != "" && tick.SessionID != o.session {
		if o.session != "" {
			o.logger.Info("Session changed from %s to %s", o.session, tick.SessionID)
		}
		o.session = tick.SessionID
	}

	if o.mirror == nil || o.mirror.Len() != len(tick.Puzzle) {
		// joined a session seeded by someone else
		next := &puzzle.State{Pieces: make([]puzzle.PieceState, len(tick.Puzzle))}
		copy(next.Pieces, tick.Puzzle)
		if o.held != idle {
			if o.held < next.Len() && o.mirror != nil && o.held < o.mirror.Len() {
				next.Pieces[o.held] = o.mirror.Pieces[o.held]
			} else {
				o.held = idle
			}
		}
		o.mirror = next
		return
	}

	for i, p := range tick.Puzzle {
		if i == o.held {
			continue
		}
		o.mirror.Pieces[i] = p
	}
}

// HandleMessage applies a message received from the authority.
func (o *Observer) HandleMessage(msg *messages.Message) error {
	switch msg.Type {
	case messages.MessageTypeServerState:
		tick := &messages.ServerState{}
		if err := json.Unmarshal(msg.Payload, tick); err != nil {
			return fmt.Errorf("failed to unmarshal server state: %v", err)
		}
		o.ApplyUpdate(tick)
		return nil
	default:
		return fmt.Errorf("unexpected message type: %s", msg.Type)
	}
}

// Held returns the locally held index and whether one is held.
func (o *Observer) Held() (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.held, o.held != idle
}

// Session returns the id of the last session seen in a tick.
func (o *Observer) Session() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Snapshot returns a copy of the mirror, or nil before the first state.
func (o *Observer) Snapshot() *puzzle.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mirror == nil {
		return nil
	}
	return o.mirror.Copy()
}
