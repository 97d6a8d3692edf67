package store

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	st := New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())
	return st
}

func f(v float64) *float64 { return &v }

func addSample(t *testing.T, st *Store, runID, nodeID int, seconds float64) {
	t.Helper()
	require.NoError(t, st.UpsertSamples([]Sample{{
		NodeID:       nodeID,
		RunID:        runID,
		Seconds:      seconds,
		MobilityPosX: f(1),
		MobilityPosY: f(2),
		ApplSpeed:    f(3),
	}}))
}

func TestTimeBounds(t *testing.T) {
	st := newTestStore(t)
	addSample(t, st, 1, 1, 10.5)
	addSample(t, st, 1, 1, 12.0)
	addSample(t, st, 1, 2, 11.0)
	addSample(t, st, 2, 1, 99.0)

	min, max, err := st.TimeBounds(1)
	require.NoError(t, err)
	assert.Equal(t, 10.5, min)
	assert.Equal(t, 12.0, max)
}

func TestTimeBoundsEmptyRun(t *testing.T) {
	st := newTestStore(t)
	_, _, err := st.TimeBounds(7)
	assert.Error(t, err)
}

func TestCollisionsOrdering(t *testing.T) {
	st := newTestStore(t)
	_, err := st.InsertCollisions([]Collision{
		{LeaderNodeID: 5, FollowerNodeID: 6, Seconds: 20.0, LaneID: "a_0"},
		{LeaderNodeID: 3, FollowerNodeID: 4, Seconds: 10.0, LaneID: "a_0"},
		{LeaderNodeID: 1, FollowerNodeID: 2, Seconds: 10.0, LaneID: "b_0"},
	})
	require.NoError(t, err)

	cs, err := st.Collisions()
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, 2, cs[0].FollowerNodeID)
	assert.Equal(t, 4, cs[1].FollowerNodeID)
	assert.Equal(t, 6, cs[2].FollowerNodeID)
}

func TestPruneIncomplete(t *testing.T) {
	st := newTestStore(t)
	addSample(t, st, 1, 1, 10.0)
	require.NoError(t, st.UpsertSamples([]Sample{{
		NodeID:                2,
		RunID:                 1,
		Seconds:               10.0,
		MobilityPosX:          f(1),
		MobilityPosY:          f(2),
		ApplSpeed:             f(3),
		ApplDistanceTravelled: f(50),
	}}))
	addSample(t, st, 2, 1, 10.0)

	n, err := st.PruneIncomplete(1)
	require.NoError(t, err)
	// Only run 1's incomplete row goes; the complete row and run 2 stay.
	assert.Equal(t, int64(1), n)

	var count int64
	require.NoError(t, st.DB().Model(&Sample{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSaveRunReplaces(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveRun(&Run{RunID: 1, Attrs: []byte(`{"a":"b"}`)}))
	require.NoError(t, st.SaveRun(&Run{RunID: 1, Attrs: []byte(`{"a":"c"}`)}))

	var runs []Run
	require.NoError(t, st.DB().Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.JSONEq(t, `{"a":"c"}`, string(runs[0].Attrs))
}
