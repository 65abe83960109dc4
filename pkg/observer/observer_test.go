package observer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*messages.Message
	err  error
}

func (s *recordingSender) SendMessage(ctx context.Context, msg *messages.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) types() []messages.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]messages.MessageType, 0, len(s.sent))
	for _, m := range s.sent {
		types = append(types, m.Type)
	}
	return types
}

func fourPieces() *puzzle.State {
	return &puzzle.State{Pieces: []puzzle.PieceState{
		{Row: 0, Col: 0, X: 0, Y: 0},
		{Row: 0, Col: 1, X: 10, Y: 10},
		{Row: 1, Col: 0, X: 20, Y: 20},
		{Row: 1, Col: 1, X: 30, Y: 30},
	}}
}

func tickAt(positions ...float64) *messages.ServerState {
	tick := &messages.ServerState{SessionID: "s1"}
	for i, p := range positions {
		tick.Puzzle = append(tick.Puzzle, puzzle.PieceState{Row: i / 2, Col: i % 2, X: p, Y: p})
	}
	return tick
}

func startedObserver(t *testing.T) (*Observer, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	o := NewObserver(sender)
	require.NoError(t, o.Start(context.Background(), fourPieces()))
	return o, sender
}

func TestObserver_Start(t *testing.T) {
	o, sender := startedObserver(t)
	assert.Equal(t, []messages.MessageType{messages.MessageTypeClientStart}, sender.types())
	assert.True(t, o.Snapshot().Equal(fourPieces()))

	start := &messages.ClientStart{}
	require.NoError(t, json.Unmarshal(sender.sent[0].Payload, start))
	assert.Equal(t, fourPieces().Pieces, start.Puzzle)

	err := o.Start(context.Background(), fourPieces())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestObserver_StartWithoutState(t *testing.T) {
	sender := &recordingSender{}
	o := NewObserver(sender)

	assert.ErrorIs(t, o.Start(context.Background(), nil), ErrNoInitialState)
	assert.Empty(t, sender.types())
	assert.Nil(t, o.Snapshot())

	// still startable afterwards
	assert.NoError(t, o.Start(context.Background(), fourPieces()))
}

func TestObserver_HeldPieceIgnoresTicks(t *testing.T) {
	o, sender := startedObserver(t)
	ctx := context.Background()

	require.NoError(t, o.BeginDrag(2))
	require.NoError(t, o.Move(ctx, 2, 99, 99))

	o.ApplyUpdate(tickAt(1, 11, 21, 31))

	got := o.Snapshot()
	assert.Equal(t, 1.0, got.Pieces[0].X)
	assert.Equal(t, 11.0, got.Pieces[1].X)
	assert.Equal(t, 99.0, got.Pieces[2].X)
	assert.Equal(t, 99.0, got.Pieces[2].Y)
	assert.Equal(t, 31.0, got.Pieces[3].X)

	assert.Equal(t, []messages.MessageType{
		messages.MessageTypeClientStart,
		messages.MessageTypeClientMove,
	}, sender.types())
	move := &messages.ClientMove{}
	require.NoError(t, json.Unmarshal(sender.sent[1].Payload, move))
	require.NotNil(t, move.Index)
	assert.Equal(t, 2, *move.Index)
	assert.Equal(t, 99.0, move.X)
}

func TestObserver_ApplyUpdateIsIdempotent(t *testing.T) {
	o, _ := startedObserver(t)
	require.NoError(t, o.BeginDrag(1))

	tick := tickAt(5, 6, 7, 8)
	o.ApplyUpdate(tick)
	once := o.Snapshot()
	o.ApplyUpdate(tick)
	assert.True(t, once.Equal(o.Snapshot()))
	assert.Equal(t, "s1", o.Session())
}

func TestObserver_BeginDrag(t *testing.T) {
	tests := []struct {
		name    string
		first   int
		second  int
		wantErr error
	}{
		{name: "second drag while holding", first: 0, second: 1, wantErr: ErrAlreadyHolding},
		{name: "same piece twice", first: 3, second: 3, wantErr: ErrAlreadyHolding},
		{name: "out of range", first: -1, second: 4, wantErr: puzzle.ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := startedObserver(t)
			if tt.first >= 0 {
				require.NoError(t, o.BeginDrag(tt.first))
			}
			assert.ErrorIs(t, o.BeginDrag(tt.second), tt.wantErr)
		})
	}
}

func TestObserver_NotStarted(t *testing.T) {
	o := NewObserver(&recordingSender{})
	assert.ErrorIs(t, o.BeginDrag(0), ErrNotStarted)
	assert.ErrorIs(t, o.Move(context.Background(), 0, 1, 1), ErrNotStarted)
	assert.ErrorIs(t, o.EndDrag(context.Background()), ErrNotHolding)
	assert.Nil(t, o.Snapshot())
}

func TestObserver_EndDragResumesUpdates(t *testing.T) {
	o, sender := startedObserver(t)
	ctx := context.Background()

	require.NoError(t, o.BeginDrag(2))
	require.NoError(t, o.Move(ctx, 2, 99, 99))
	require.NoError(t, o.EndDrag(ctx))

	_, holding := o.Held()
	assert.False(t, holding)
	assert.Equal(t, messages.MessageTypeClientRelease, sender.types()[2])

	o.ApplyUpdate(tickAt(0, 10, 50, 30))
	assert.Equal(t, 50.0, o.Snapshot().Pieces[2].X)

	// a new drag is allowed once idle
	assert.NoError(t, o.BeginDrag(0))
}

func TestObserver_SendFailureKeepsLocalMove(t *testing.T) {
	o, sender := startedObserver(t)
	sender.err = errors.New("closed")

	require.NoError(t, o.BeginDrag(1))
	assert.Error(t, o.Move(context.Background(), 1, 42, 43))
	assert.Equal(t, 42.0, o.Snapshot().Pieces[1].X)
}

func TestObserver_ApplyUpdateAdoptsForeignSession(t *testing.T) {
	o := NewObserver(&recordingSender{})
	o.ApplyUpdate(tickAt(1, 2))
	require.NotNil(t, o.Snapshot())
	assert.Equal(t, 2, o.Snapshot().Len())

	// mirror grows with the authority, held piece kept
	require.NoError(t, o.BeginDrag(1))
	require.NoError(t, o.Move(context.Background(), 1, 77, 77))
	o.ApplyUpdate(tickAt(4, 5, 6, 7))
	got := o.Snapshot()
	assert.Equal(t, 4, got.Len())
	assert.Equal(t, 77.0, got.Pieces[1].X)
	assert.Equal(t, 6.0, got.Pieces[2].X)
}

func TestObserver_HandleMessage(t *testing.T) {
	o, _ := startedObserver(t)

	msg, err := messages.NewMessage(messages.MessageTypeServerState, tickAt(3, 3, 3, 3))
	require.NoError(t, err)
	require.NoError(t, o.HandleMessage(msg))
	assert.Equal(t, 3.0, o.Snapshot().Pieces[0].X)

	assert.Error(t, o.HandleMessage(&messages.Message{Type: messages.MessageTypeClientMove, Payload: json.RawMessage(`{}`)}))
	assert.Error(t, o.HandleMessage(&messages.Message{Type: messages.MessageTypeServerState, Payload: json.RawMessage(`[`)}))
}
