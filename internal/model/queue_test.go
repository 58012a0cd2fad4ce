package model

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func newTestQueue(n int) *Queue {
	tracks := make([]*Track, n)
	for i := range tracks {
		tracks[i] = &Track{ID: TrackID(i + 1)}
	}
	return NewQueue(uuid.New(), tracks)
}

func TestSetShufflePreservesCurrentTrack(t *testing.T) {
	q := newTestQueue(10)
	q.Position = 3
	current := q.Current()
	require.NotNil(t, current)

	rng := rand.New(rand.NewSource(1))
	q.SetShuffle(true, rng)
	require.True(t, q.Shuffle)
	require.Same(t, current, q.Current())

	q.SetShuffle(false, rng)
	require.False(t, q.Shuffle)
	require.Same(t, current, q.Current())
	require.Equal(t, 3, q.Position) // identity order: track id 4 is at index 3
}

func TestAdvanceRepeatModes(t *testing.T) {
	q := newTestQueue(3)

	q.Repeat = RepeatNone
	q.Position = 2
	require.True(t, q.Advance())
	require.Equal(t, 0, q.Position)

	q.Repeat = RepeatAll
	q.Position = 2
	require.False(t, q.Advance())
	require.Equal(t, 0, q.Position)

	q.Repeat = RepeatOne
	q.Position = 1
	require.False(t, q.Advance())
	require.Equal(t, 1, q.Position)
}
