package detector

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gargmohit24/ITSC-2021/internal/database"
	"github.com/gargmohit24/ITSC-2021/internal/geo"
	"github.com/gargmohit24/ITSC-2021/internal/network"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

// The fixture network is a single long straight lane plus a parallel lane
// on another edge. The transformer maps sim (x, y) to net (x, -y), so
// vehicles on sim y=0 drive net lane y=0 and vehicles on sim y=10 drive
// net lane y=-10.
const testNet = `<net>
    <edge id="main"><lane id="main_0" index="0" speed="13.89" length="200" shape="-50,0 200,0"/></edge>
    <edge id="side"><lane id="side_0" index="0" speed="13.89" length="200" shape="-50,-10 200,-10"/></edge>
</net>`

func newFixture(t *testing.T) (*store.Store, *network.Network) {
	t.Helper()
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	st := store.New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())

	xf := geo.NewTransformer(geo.NetPoint{X: 0, Y: 0}, geo.NetPoint{X: 0, Y: 0}, 0)
	net, err := network.Load(strings.NewReader(testNet), xf)
	require.NoError(t, err)
	return st, net
}

func f(v float64) *float64 { return &v }

func addSample(t *testing.T, st *store.Store, node int, secs, x, y, speed float64) {
	t.Helper()
	require.NoError(t, st.UpsertSamples([]store.Sample{{
		NodeID:       node,
		RunID:        0,
		Seconds:      secs,
		Controller:   "ACC",
		MobilityPosX: f(x),
		MobilityPosY: f(y),
		ApplSpeed:    f(speed),
	}}))
}

// Leader/follower pair satisfying both predicate clauses: the follower
// closes from 4 behind to 1 behind while the leader advances.
func addClosingPair(t *testing.T, st *store.Store, y float64) {
	t.Helper()
	// leader, node 1
	addSample(t, st, 1, 10, 9, y, 1.0)
	addSample(t, st, 1, 11, 11, y, 1.0)
	// follower, node 2
	addSample(t, st, 2, 10, 5, y, 2.0)
	addSample(t, st, 2, 11, 10, y, 2.0)
}

func TestRunDetectsRearEndCollision(t *testing.T) {
	st, net := newFixture(t)
	addClosingPair(t, st, 0)

	det := New(st, net, zerolog.Nop(), Options{TTC: 1.0, WholeSecondsOnly: true})
	summary, err := det.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Snapshots)
	assert.Equal(t, int64(1), summary.Collisions)

	cs, err := st.Collisions()
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, 1, cs[0].LeaderNodeID)
	assert.Equal(t, 2, cs[0].FollowerNodeID)
	assert.Equal(t, 11.0, cs[0].Seconds)
	assert.Equal(t, "main_0", cs[0].LaneID)
	assert.Nil(t, cs[0].Lon)
}

func TestRunIsIdempotent(t *testing.T) {
	st, net := newFixture(t)
	addClosingPair(t, st, 0)

	det := New(st, net, zerolog.Nop(), Options{TTC: 1.0, WholeSecondsOnly: true})
	_, err := det.Run()
	require.NoError(t, err)

	// Second run re-detects the same pair; the insert is a no-op.
	summary, err := det.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Collisions)

	cs, err := st.Collisions()
	require.NoError(t, err)
	assert.Len(t, cs, 1)
}

func TestRunSkipsDifferentLanes(t *testing.T) {
	st, net := newFixture(t)
	// Same closing kinematics but the leader drives the side lane.
	addSample(t, st, 1, 10, 9, 10, 1.0)
	addSample(t, st, 1, 11, 11, 10, 1.0)
	addSample(t, st, 2, 10, 5, 0, 2.0)
	addSample(t, st, 2, 11, 10, 0, 2.0)

	det := New(st, net, zerolog.Nop(), Options{TTC: 1.0, WholeSecondsOnly: true})
	summary, err := det.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Collisions)
}

func TestRunSkipsOpenGap(t *testing.T) {
	st, net := newFixture(t)
	// Leader pulls away; predicate's closing clause fails even though the
	// follower ends within the danger radius.
	addSample(t, st, 1, 10, 10, 0, 3.0)
	addSample(t, st, 1, 11, 13, 0, 3.0)
	addSample(t, st, 2, 10, 9, 0, 2.0)
	addSample(t, st, 2, 11, 11, 0, 2.0)

	det := New(st, net, zerolog.Nop(), Options{TTC: 1.0, WholeSecondsOnly: true})
	summary, err := det.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Collisions)
}

func TestRunWholeSecondFilter(t *testing.T) {
	st, net := newFixture(t)
	addClosingPair(t, st, 0)
	// A fractional instant between the whole seconds; ignored by default.
	addSample(t, st, 1, 10.5, 10, 0, 1.0)
	addSample(t, st, 2, 10.5, 7, 0, 2.0)

	var windows [][2]float64
	det := New(st, net, zerolog.Nop(), Options{
		TTC:              1.0,
		WholeSecondsOnly: true,
		OnSnapshot: func(s SnapshotStats) {
			windows = append(windows, [2]float64{s.Start, s.End})
		},
	})
	_, err := det.Run()
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{10, 11}}, windows)

	windows = nil
	det = New(st, net, zerolog.Nop(), Options{
		TTC:              1.0,
		WholeSecondsOnly: false,
		OnSnapshot: func(s SnapshotStats) {
			windows = append(windows, [2]float64{s.Start, s.End})
		},
	})
	_, err = det.Run()
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{10, 10.5}, {10.5, 11}}, windows)
}

func TestRunOutOfBoundsIsFatal(t *testing.T) {
	st, net := newFixture(t)
	// Vehicle far from every lane.
	addSample(t, st, 1, 10, 50, 70, 1.0)
	addSample(t, st, 1, 11, 51, 70, 1.0)

	det := New(st, net, zerolog.Nop(), Options{TTC: 1.0, WholeSecondsOnly: true})
	_, err := det.Run()
	require.Error(t, err)

	var oob *network.OutOfBoundsError
	assert.ErrorAs(t, err, &oob)
}

func TestRunGeolocatesWhenConfigured(t *testing.T) {
	st, net := newFixture(t)
	addClosingPair(t, st, 0)

	det := New(st, net, zerolog.Nop(), Options{
		TTC:              1.0,
		WholeSecondsOnly: true,
		GeoEPSG:          32633, // UTM zone 33N
	})
	_, err := det.Run()
	require.NoError(t, err)

	cs, err := st.Collisions()
	require.NoError(t, err)
	require.Len(t, cs, 1)
	require.NotNil(t, cs[0].Lon)
	require.NotNil(t, cs[0].Lat)
}

func TestRunExplicitTimeBounds(t *testing.T) {
	st, net := newFixture(t)
	addClosingPair(t, st, 0) // instants 10, 11
	// Later window with no conflicts.
	addSample(t, st, 1, 20, 100, 0, 1.0)
	addSample(t, st, 1, 21, 101, 0, 1.0)

	start, end := 20.0, 21.0
	det := New(st, net, zerolog.Nop(), Options{
		TTC:              1.0,
		WholeSecondsOnly: true,
		StartTime:        &start,
		EndTime:          &end,
	})
	summary, err := det.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Instants)
	assert.Equal(t, int64(0), summary.Collisions)
}
