// Package session holds the authoritative copy of a puzzle and replicates
// it to every observer once per tick.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/network"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/cbodonnell/jigsaw/pkg/queue"
	"github.com/cbodonnell/jigsaw/pkg/state"
	"github.com/cbodonnell/jigsaw/pkg/workers"
	"github.com/google/uuid"
)

// DefaultTickInterval is 60 ticks per second.
const DefaultTickInterval = time.Second / 60

// Authority owns the canonical puzzle state. Only the goroutine running
// Start reads or writes it; network handlers reach it through the queues.
type Authority struct {
	clientMessageQueue   queue.Queue
	connectionEventQueue queue.Queue
	stateManager         state.StateManager
	broadcastChan        chan<- workers.BroadcastMessage
	tickInterval         time.Duration
	newSessionID         func() string
	logger               *log.Logger

	sessionID string
	puzzle    *puzzle.State
	observers map[uint32]struct{}
	// holders maps an active piece index to the client that moved it last
	holders map[int]uint32
}

// NewAuthorityOptions contains options for creating a new Authority.
type NewAuthorityOptions struct {
	ClientMessageQueue   queue.Queue
	ConnectionEventQueue queue.Queue
	StateManager         state.StateManager
	BroadcastChan        chan<- workers.BroadcastMessage
	TickInterval         time.Duration
}

func NewAuthority(opts NewAuthorityOptions) *Authority {
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Authority{
		clientMessageQueue:   opts.ClientMessageQueue,
		connectionEventQueue: opts.ConnectionEventQueue,
		stateManager:         opts.StateManager,
		broadcastChan:        opts.BroadcastChan,
		tickInterval:         tickInterval,
		newSessionID:         uuid.NewString,
		logger:               log.With("session"),
		observers:            make(map[uint32]struct{}),
		holders:              make(map[int]uint32),
	}
}

// Start runs the tick loop until ctx is cancelled.
func (a *Authority) Start(ctx context.Context) error {
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.endSession(context.Background())
			return nil
		case t := <-ticker.C:
			if err := a.tick(ctx, t); err != nil {
				a.logger.Error("Failed to run tick: %v", err)
			}
		}
	}
}

// tick runs one iteration of the loop.
func (a *Authority) tick(ctx context.Context, t time.Time) error {
	a.processConnectionEvents(ctx)
	a.processClientMessages()
	if !a.active() {
		return nil
	}
	return a.publish(ctx, t)
}

func (a *Authority) active() bool {
	return a.puzzle != nil
}

// processConnectionEvents tracks who is connected. The session ends when
// the last observer leaves.
func (a *Authority) processConnectionEvents(ctx context.Context) {
	pendingEvents, err := a.connectionEventQueue.ReadAllMessages()
	if err != nil {
		a.logger.Error("Failed to read connection events: %v", err)
		return
	}
	for _, item := range pendingEvents {
		event, ok := item.(*network.ClientEvent)
		if !ok {
			a.logger.Error("Unhandled connection event type: %T", item)
			continue
		}

		switch event.Type {
		case network.ClientEventTypeConnect:
			a.observers[event.ClientID] = struct{}{}
		case network.ClientEventTypeDisconnect:
			delete(a.observers, event.ClientID)
			a.releaseAllHeldBy(event.ClientID)
			if len(a.observers) == 0 && a.active() {
				a.logger.Info("Last observer left, ending session %s", a.sessionID)
				a.endSession(ctx)
			}
		default:
			a.logger.Error("Unhandled client event: %v", event.Type)
		}
	}
}

// processClientMessages applies all pending client messages in arrival order.
func (a *Authority) processClientMessages() {
	pendingMessages, err := a.clientMessageQueue.ReadAllMessages()
	if err != nil {
		a.logger.Error("Failed to read client messages: %v", err)
		return
	}
	for _, item := range pendingMessages {
		message, ok := item.(*messages.Message)
		if !ok {
			a.logger.Error("Failed to cast message to messages.Message")
			continue
		}

		switch message.Type {
		case messages.MessageTypeClientStart:
			if err := a.handleStart(message); err != nil {
				a.logger.Warn("Discarding start from client %d: %v", message.ClientID, err)
			}
		case messages.MessageTypeClientMove:
			if err := a.handleMove(message); err != nil {
				a.logger.Warn("Discarding move from client %d: %v", message.ClientID, err)
			}
		case messages.MessageTypeClientRelease:
			if err := a.handleRelease(message); err != nil {
				a.logger.Warn("Discarding release from client %d: %v", message.ClientID, err)
			}
		default:
			a.logger.Error("Unhandled message type: %s", message.Type)
		}
	}
}

// handleStart adopts the observer's seeded layout. A start that arrives
// while a session is running is a late joiner's handshake and leaves the
// canonical state alone; the joiner already got a snapshot on connect.
// A start from a client that already left is dropped, otherwise the
// session would have no observer to end it.
func (a *Authority) handleStart(message *messages.Message) error {
	if _, ok := a.observers[message.ClientID]; !ok {
		return fmt.Errorf("client %d is not connected", message.ClientID)
	}
	if a.active() {
		a.logger.Debug("Client %d joined running session %s", message.ClientID, a.sessionID)
		return nil
	}

	start := &messages.ClientStart{}
	if err := json.Unmarshal(message.Payload, start); err != nil {
		return fmt.Errorf("failed to unmarshal start: %v", err)
	}
	if len(start.Puzzle) == 0 {
		return fmt.Errorf("start has no pieces")
	}

	a.puzzle = &puzzle.State{Pieces: start.Puzzle}
	a.sessionID = a.newSessionID()
	a.holders = make(map[int]uint32)
	a.logger.Info("Client %d started session %s with %d pieces", message.ClientID, a.sessionID, a.puzzle.Len())
	return nil
}

// handleMove applies a move unconditionally. Two observers dragging the
// same piece race; whichever move is read last wins.
func (a *Authority) handleMove(message *messages.Message) error {
	if !a.active() {
		return fmt.Errorf("no active session")
	}

	move := &messages.ClientMove{}
	if err := json.Unmarshal(message.Payload, move); err != nil {
		return fmt.Errorf("failed to unmarshal move: %v", err)
	}
	if move.Index == nil {
		return fmt.Errorf("move has no index")
	}

	index := *move.Index
	if err := a.puzzle.SetPosition(index, move.X, move.Y); err != nil {
		return err
	}
	if err := a.puzzle.SetActive(index, true); err != nil {
		return err
	}
	a.holders[index] = message.ClientID
	return nil
}

func (a *Authority) handleRelease(message *messages.Message) error {
	if !a.active() {
		return fmt.Errorf("no active session")
	}

	release := &messages.ClientRelease{}
	if err := json.Unmarshal(message.Payload, release); err != nil {
		return fmt.Errorf("failed to unmarshal release: %v", err)
	}
	if release.Index == nil {
		return fmt.Errorf("release has no index")
	}

	if err := a.puzzle.SetActive(*release.Index, false); err != nil {
		return err
	}
	delete(a.holders, *release.Index)
	return nil
}

// releaseAllHeldBy clears the active flag of pieces a departed client was
// still dragging.
func (a *Authority) releaseAllHeldBy(clientID uint32) {
	if !a.active() {
		return
	}
	for index, holder := range a.holders {
		if holder != clientID {
			continue
		}
		if err := a.puzzle.SetActive(index, false); err != nil {
			a.logger.Error("Failed to release piece %d: %v", index, err)
		}
		delete(a.holders, index)
	}
}

func (a *Authority) endSession(ctx context.Context) {
	a.puzzle = nil
	a.sessionID = ""
	a.holders = make(map[int]uint32)
	if err := a.stateManager.Clear(ctx); err != nil {
		a.logger.Error("Failed to clear snapshot: %v", err)
	}
}

// publish stores the snapshot for late joiners and hands a copy to the
// broadcast worker. A tick is dropped if the worker is still busy with the
// previous one.
func (a *Authority) publish(ctx context.Context, t time.Time) error {
	snapshot := &state.Snapshot{
		SessionID: a.sessionID,
		Timestamp: t.UnixMilli(),
		Puzzle:    a.puzzle,
	}
	if err := a.stateManager.Set(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to set snapshot: %v", err)
	}

	msg := workers.BroadcastMessage{
		Type: messages.MessageTypeServerState,
		Message: &messages.ServerState{
			SessionID: snapshot.SessionID,
			Timestamp: snapshot.Timestamp,
			Puzzle:    a.puzzle.Copy().Pieces,
		},
	}
	select {
	case a.broadcastChan <- msg:
	default:
		a.logger.Warn("Broadcast worker is busy, dropping tick %d", snapshot.Timestamp)
	}
	return nil
}
