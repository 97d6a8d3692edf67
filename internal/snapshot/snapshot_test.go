package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gargmohit24/ITSC-2021/internal/database"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	st := store.New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())
	return st
}

func f(v float64) *float64 { return &v }

func sample(node, run int, secs float64, x, y, speed *float64) store.Sample {
	return store.Sample{
		NodeID:       node,
		RunID:        run,
		Seconds:      secs,
		Controller:   "ACC",
		MobilityPosX: x,
		MobilityPosY: y,
		ApplSpeed:    speed,
	}
}

func TestBuildIntersectsInstants(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.UpsertSamples([]store.Sample{
		// vehicle 1: present at both instants
		sample(1, 0, 10, f(0), f(0), f(5)),
		sample(1, 0, 11, f(5), f(0), f(5)),
		// vehicle 2: only at the start
		sample(2, 0, 10, f(20), f(0), f(3)),
		// vehicle 3: only at the end
		sample(3, 0, 11, f(40), f(0), f(3)),
	}))

	snap, err := Build(st, 0, 10, 11)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Len())

	v, ok := snap.Get(1)
	require.True(t, ok)
	assert.Equal(t, 0.0, v.PrevPos.X)
	assert.Equal(t, 5.0, v.CurrPos.X)
	assert.Equal(t, 5.0, v.Speed)
	assert.Equal(t, "ACC", v.Controller)

	_, ok = snap.Get(2)
	assert.False(t, ok)
	_, ok = snap.Get(3)
	assert.False(t, ok)
}

func TestBuildExcludesNullPositionOrSpeed(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.UpsertSamples([]store.Sample{
		// position missing at the start instant
		sample(1, 0, 10, nil, nil, f(5)),
		sample(1, 0, 11, f(5), f(0), f(5)),
		// speed missing at the end instant
		sample(2, 0, 10, f(0), f(0), f(5)),
		sample(2, 0, 11, f(5), f(0), nil),
	}))

	snap, err := Build(st, 0, 10, 11)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}

func TestBuildEmptyIntersectionIsNotAnError(t *testing.T) {
	st := newTestStore(t)

	snap, err := Build(st, 0, 10, 11)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Empty(t, snap.Vehicles())
}

func TestBuildScopedToRun(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.UpsertSamples([]store.Sample{
		sample(1, 7, 10, f(0), f(0), f(5)),
		sample(1, 7, 11, f(5), f(0), f(5)),
	}))

	snap, err := Build(st, 0, 10, 11)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())

	snap, err = Build(st, 7, 10, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestVehiclesOrderedByNodeID(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.UpsertSamples([]store.Sample{
		sample(9, 0, 10, f(0), f(0), f(1)),
		sample(9, 0, 11, f(1), f(0), f(1)),
		sample(2, 0, 10, f(10), f(0), f(1)),
		sample(2, 0, 11, f(11), f(0), f(1)),
		sample(5, 0, 10, f(20), f(0), f(1)),
		sample(5, 0, 11, f(21), f(0), f(1)),
	}))

	snap, err := Build(st, 0, 10, 11)
	require.NoError(t, err)

	var ids []int
	for _, v := range snap.Vehicles() {
		ids = append(ids, v.NodeID)
	}
	assert.Equal(t, []int{2, 5, 9}, ids)
}
