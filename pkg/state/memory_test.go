package state

import (
	"context"
	"errors"
	"testing"

	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStateManager(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryStateManager()

	_, err := m.Get(ctx)
	assert.True(t, errors.Is(err, ErrNoSession))
	assert.Error(t, m.Set(ctx, nil))

	p := puzzle.NewState(2)
	require.NoError(t, p.SetPosition(1, 4, 5))
	require.NoError(t, m.Set(ctx, &Snapshot{SessionID: "s1", Timestamp: 10, Puzzle: p}))

	// later writes to the caller's state do not leak in
	require.NoError(t, p.SetPosition(1, 100, 100))

	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, int64(10), got.Timestamp)
	x, y, err := got.Puzzle.Position(1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, x)
	assert.Equal(t, 5.0, y)

	// nor do writes to a returned copy
	require.NoError(t, got.Puzzle.SetPosition(0, 9, 9))
	again, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, again.Puzzle.Pieces[0].X)

	require.NoError(t, m.Clear(ctx))
	_, err = m.Get(ctx)
	assert.True(t, errors.Is(err, ErrNoSession))
}
