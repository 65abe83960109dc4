package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	mocks "github.com/cbodonnell/jigsaw/mocks/github.com/cbodonnell/jigsaw/pkg/queue"
	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/network"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/cbodonnell/jigsaw/pkg/queue"
	"github.com/cbodonnell/jigsaw/pkg/state"
	"github.com/cbodonnell/jigsaw/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourPieces() []puzzle.PieceState {
	return []puzzle.PieceState{
		{Row: 0, Col: 0, X: 0, Y: 0},
		{Row: 0, Col: 1, X: 10, Y: 10},
		{Row: 1, Col: 0, X: 20, Y: 20},
		{Row: 1, Col: 1, X: 30, Y: 30},
	}
}

// from stamps a built message with the sending client, e.g.
// from(t, 1)(messages.Move(0, 1, 1)).
func from(t *testing.T, clientID uint32) func(*messages.Message, error) *messages.Message {
	return func(msg *messages.Message, err error) *messages.Message {
		t.Helper()
		require.NoError(t, err)
		msg.ClientID = clientID
		return msg
	}
}

func rawMessage(clientID uint32, t messages.MessageType, payload string) *messages.Message {
	return &messages.Message{ClientID: clientID, Type: t, Payload: json.RawMessage(payload)}
}

func newTestAuthority(clientMessageQueue, connectionEventQueue queue.Queue) (*Authority, chan workers.BroadcastMessage, *state.InMemoryStateManager) {
	broadcastChan := make(chan workers.BroadcastMessage, 8)
	stateManager := state.NewInMemoryStateManager()
	a := NewAuthority(NewAuthorityOptions{
		ClientMessageQueue:   clientMessageQueue,
		ConnectionEventQueue: connectionEventQueue,
		StateManager:         stateManager,
		BroadcastChan:        broadcastChan,
	})
	a.newSessionID = func() string { return "session-1" }
	return a, broadcastChan, stateManager
}

func TestAuthority_processClientMessages(t *testing.T) {
	start, startErr := messages.Start(&puzzle.State{Pieces: fourPieces()})

	tests := []struct {
		name     string
		active   bool
		messages []interface{}
		want     []puzzle.PieceState
	}{
		{
			name:     "start adopts the observer layout",
			messages: []interface{}{from(t, 1)(start, startErr)},
			want:     fourPieces(),
		},
		{
			name:   "move applies and marks active",
			active: true,
			messages: []interface{}{
				from(t, 1)(messages.NewMessage(messages.MessageTypeClientMove, &messages.ClientMove{Index: intPtr(2), X: 99, Y: 99})),
			},
			want: func() []puzzle.PieceState {
				p := fourPieces()
				p[2].X, p[2].Y, p[2].IsActive = 99, 99, true
				return p
			}(),
		},
		{
			name:   "last writer wins",
			active: true,
			messages: []interface{}{
				from(t, 1)(messages.Move(1, 5, 5)),
				from(t, 2)(messages.Move(1, 7, 8)),
			},
			want: func() []puzzle.PieceState {
				p := fourPieces()
				p[1].X, p[1].Y, p[1].IsActive = 7, 8, true
				return p
			}(),
		},
		{
			name:   "release clears active",
			active: true,
			messages: []interface{}{
				from(t, 1)(messages.Move(3, 1, 2)),
				from(t, 1)(messages.Release(3)),
			},
			want: func() []puzzle.PieceState {
				p := fourPieces()
				p[3].X, p[3].Y = 1, 2
				return p
			}(),
		},
		{
			name:   "bad moves are discarded",
			active: true,
			messages: []interface{}{
				from(t, 1)(messages.Move(4, 1, 1)),
				from(t, 1)(messages.Move(-1, 1, 1)),
				rawMessage(1, messages.MessageTypeClientMove, `{"type":"move","x":1,"y":1}`),
				rawMessage(1, messages.MessageTypeClientMove, `{"type":"move","index":"two","x":1,"y":1}`),
				rawMessage(1, messages.MessageTypeClientRelease, `{"type":"release","index":12}`),
				"not a message",
			},
			want: fourPieces(),
		},
		{
			name:   "second start keeps the running session",
			active: true,
			messages: []interface{}{
				from(t, 2)(messages.Start(&puzzle.State{Pieces: []puzzle.PieceState{{X: 500, Y: 500}}})),
			},
			want: fourPieces(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockQueue := mocks.NewQueue(t)
			a, _, _ := newTestAuthority(mockQueue, nil)
			a.observers[1] = struct{}{}
			a.observers[2] = struct{}{}
			if tt.active {
				a.puzzle = &puzzle.State{Pieces: fourPieces()}
				a.sessionID = "running"
			}
			mockQueue.EXPECT().ReadAllMessages().Return(tt.messages, nil).Once()

			a.processClientMessages()

			require.True(t, a.active())
			assert.Equal(t, tt.want, a.puzzle.Pieces)
		})
	}
}

func TestAuthority_moveBeforeStartIsDiscarded(t *testing.T) {
	mockQueue := mocks.NewQueue(t)
	a, _, _ := newTestAuthority(mockQueue, nil)
	mockQueue.EXPECT().ReadAllMessages().Return([]interface{}{
		from(t, 1)(messages.Move(0, 1, 1)),
		rawMessage(1, messages.MessageTypeClientStart, `{"type":"start","puzzle":[]}`),
	}, nil).Once()

	a.processClientMessages()
	assert.False(t, a.active())
}

func TestAuthority_startFromDepartedClientIsDropped(t *testing.T) {
	messageQueue := queue.NewInMemoryQueue(16)
	eventQueue := queue.NewInMemoryQueue(16)
	a, broadcastChan, stateManager := newTestAuthority(messageQueue, eventQueue)
	ctx := context.Background()

	// client 1 connects, starts and leaves before the authority ticks
	require.NoError(t, eventQueue.Enqueue(&network.ClientEvent{ClientID: 1, Type: network.ClientEventTypeConnect}))
	require.NoError(t, messageQueue.Enqueue(from(t, 1)(messages.Start(&puzzle.State{Pieces: fourPieces()}))))
	require.NoError(t, eventQueue.Enqueue(&network.ClientEvent{ClientID: 1, Type: network.ClientEventTypeDisconnect}))

	require.NoError(t, a.tick(ctx, time.Now()))
	require.NoError(t, a.tick(ctx, time.Now()))

	assert.Empty(t, a.observers)
	assert.False(t, a.active())
	assert.Empty(t, broadcastChan)
	_, err := stateManager.Get(ctx)
	assert.ErrorIs(t, err, state.ErrNoSession)

	// the next client can start a fresh session
	require.NoError(t, eventQueue.Enqueue(&network.ClientEvent{ClientID: 2, Type: network.ClientEventTypeConnect}))
	require.NoError(t, messageQueue.Enqueue(from(t, 2)(messages.Start(&puzzle.State{Pieces: fourPieces()[:2]}))))
	require.NoError(t, a.tick(ctx, time.Now()))

	require.True(t, a.active())
	assert.Equal(t, 2, a.puzzle.Len())
	assert.Len(t, broadcastChan, 1)
}

func TestAuthority_logsAsSessionComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log.SetDefaultLogger(log.New(buf, "", 0, log.LogLevelWarn))
	defer log.SetDefaultLogger(log.New(os.Stdout, "", log.DefaultLoggerFlag, log.LogLevelInfo))

	mockQueue := mocks.NewQueue(t)
	a, _, _ := newTestAuthority(mockQueue, nil)
	mockQueue.EXPECT().ReadAllMessages().Return([]interface{}{
		from(t, 1)(messages.Move(0, 1, 1)),
	}, nil).Once()
	a.processClientMessages()

	entry := map[string]string{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "warn", entry["level"])
}

func TestAuthority_readErrorIsLogged(t *testing.T) {
	mockQueue := mocks.NewQueue(t)
	a, _, _ := newTestAuthority(mockQueue, mockQueue)
	mockQueue.EXPECT().ReadAllMessages().Return(nil, errors.New("boom")).Twice()

	require.NoError(t, a.tick(context.Background(), time.Now()))
	assert.False(t, a.active())
}

func TestAuthority_processConnectionEvents(t *testing.T) {
	eventQueue := mocks.NewQueue(t)
	a, _, stateManager := newTestAuthority(nil, eventQueue)
	ctx := context.Background()

	a.puzzle = &puzzle.State{Pieces: fourPieces()}
	a.sessionID = "running"
	require.NoError(t, stateManager.Set(ctx, &state.Snapshot{SessionID: "running", Puzzle: a.puzzle}))

	// client 2 is holding piece 1 when it drops
	require.NoError(t, a.puzzle.SetActive(1, true))
	a.holders[1] = 2

	eventQueue.EXPECT().ReadAllMessages().Return([]interface{}{
		&network.ClientEvent{ClientID: 1, Type: network.ClientEventTypeConnect},
		&network.ClientEvent{ClientID: 2, Type: network.ClientEventTypeConnect},
		&network.ClientEvent{ClientID: 2, Type: network.ClientEventTypeDisconnect},
	}, nil).Once()
	a.processConnectionEvents(ctx)

	require.True(t, a.active())
	assert.False(t, a.puzzle.Pieces[1].IsActive)
	assert.Len(t, a.observers, 1)

	eventQueue.EXPECT().ReadAllMessages().Return([]interface{}{
		&network.ClientEvent{ClientID: 1, Type: network.ClientEventTypeDisconnect},
	}, nil).Once()
	a.processConnectionEvents(ctx)

	assert.False(t, a.active())
	assert.Empty(t, a.sessionID)
	_, err := stateManager.Get(ctx)
	assert.True(t, errors.Is(err, state.ErrNoSession))
}

func TestAuthority_tickPublishesFullState(t *testing.T) {
	messageQueue := mocks.NewQueue(t)
	eventQueue := mocks.NewQueue(t)
	a, broadcastChan, stateManager := newTestAuthority(messageQueue, eventQueue)
	ctx := context.Background()

	start, err := messages.Start(&puzzle.State{Pieces: fourPieces()})
	eventQueue.EXPECT().ReadAllMessages().Return([]interface{}{
		&network.ClientEvent{ClientID: 1, Type: network.ClientEventTypeConnect},
	}, nil).Once()
	messageQueue.EXPECT().ReadAllMessages().Return([]interface{}{
		from(t, 1)(start, err),
		from(t, 1)(messages.Move(2, 99, 99)),
	}, nil).Once()

	now := time.UnixMilli(1700000000000)
	require.NoError(t, a.tick(ctx, now))

	require.Len(t, broadcastChan, 1)
	msg := <-broadcastChan
	assert.Equal(t, messages.MessageTypeServerState, msg.Type)
	tick := msg.Message.(*messages.ServerState)
	assert.Equal(t, "session-1", tick.SessionID)
	assert.Equal(t, now.UnixMilli(), tick.Timestamp)
	require.Len(t, tick.Puzzle, 4)
	assert.Equal(t, 99.0, tick.Puzzle[2].X)
	assert.True(t, tick.Puzzle[2].IsActive)

	// the broadcast copy is detached from the canonical state
	tick.Puzzle[0].X = -1
	assert.Equal(t, 0.0, a.puzzle.Pieces[0].X)

	snapshot, err := stateManager.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-1", snapshot.SessionID)
	assert.Equal(t, 99.0, snapshot.Puzzle.Pieces[2].X)
}

func TestAuthority_tickDropsWhenWorkerBusy(t *testing.T) {
	a, _, _ := newTestAuthority(nil, nil)
	full := make(chan workers.BroadcastMessage)
	a.broadcastChan = full
	a.puzzle = &puzzle.State{Pieces: fourPieces()}

	assert.NoError(t, a.publish(context.Background(), time.Now()))
}

func TestAuthority_Start(t *testing.T) {
	messageQueue := queue.NewInMemoryQueue(16)
	eventQueue := queue.NewInMemoryQueue(16)
	broadcastChan := make(chan workers.BroadcastMessage, 1)
	a := NewAuthority(NewAuthorityOptions{
		ClientMessageQueue:   messageQueue,
		ConnectionEventQueue: eventQueue,
		StateManager:         state.NewInMemoryStateManager(),
		BroadcastChan:        broadcastChan,
		TickInterval:         5 * time.Millisecond,
	})

	start, err := messages.Start(&puzzle.State{Pieces: fourPieces()})
	require.NoError(t, eventQueue.Enqueue(&network.ClientEvent{ClientID: 1, Type: network.ClientEventTypeConnect}))
	require.NoError(t, messageQueue.Enqueue(from(t, 1)(start, err)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- a.Start(ctx) }()

	select {
	case msg := <-broadcastChan:
		assert.Len(t, msg.Message.(*messages.ServerState).Puzzle, 4)
	case <-time.After(time.Second):
		t.Fatal("no tick broadcast")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("authority did not stop")
	}
}

func intPtr(i int) *int {
	return &i
}
