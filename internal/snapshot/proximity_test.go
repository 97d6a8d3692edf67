package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gargmohit24/ITSC-2021/internal/geo"
)

func snapshotWith(vehicles ...Vehicle) *Snapshot {
	s := &Snapshot{vehicles: make(map[int]Vehicle)}
	for _, v := range vehicles {
		s.vehicles[v.NodeID] = v
	}
	return s
}

func TestQueryEmptyIndex(t *testing.T) {
	ix := NewProximityIndex(snapshotWith())
	assert.Empty(t, ix.Query(geo.SimPoint{X: 0, Y: 0}, 100))
}

func TestQuerySingleton(t *testing.T) {
	ix := NewProximityIndex(snapshotWith(
		Vehicle{NodeID: 1, CurrPos: geo.SimPoint{X: 3, Y: 4}},
	))

	// Inside.
	got := ix.Query(geo.SimPoint{X: 0, Y: 0}, 6)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].NodeID)
	assert.Equal(t, geo.SimPoint{X: 3, Y: 4}, got[0].Pos)

	// Exactly on the boundary: inclusive.
	got = ix.Query(geo.SimPoint{X: 0, Y: 0}, 5)
	assert.Len(t, got, 1)

	// Outside.
	assert.Empty(t, ix.Query(geo.SimPoint{X: 0, Y: 0}, 4.999))
}

func TestQueryExcludesBoxCorners(t *testing.T) {
	// A point inside the bounding box of the search radius but outside the
	// circle must not be returned.
	ix := NewProximityIndex(snapshotWith(
		Vehicle{NodeID: 1, CurrPos: geo.SimPoint{X: 9, Y: 9}},
	))
	assert.Empty(t, ix.Query(geo.SimPoint{X: 0, Y: 0}, 10))

	got := ix.Query(geo.SimPoint{X: 0, Y: 0}, 13)
	assert.Len(t, got, 1)
}

func TestQueryIncludesSelf(t *testing.T) {
	center := geo.SimPoint{X: 5, Y: 5}
	ix := NewProximityIndex(snapshotWith(
		Vehicle{NodeID: 7, CurrPos: center},
		Vehicle{NodeID: 8, CurrPos: geo.SimPoint{X: 6, Y: 5}},
	))

	// The probe vehicle's own point comes back; callers filter it.
	got := ix.Query(center, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 7, got[0].NodeID)
	assert.Equal(t, 8, got[1].NodeID)
}

func TestQueryZeroRadius(t *testing.T) {
	p := geo.SimPoint{X: 1, Y: 1}
	ix := NewProximityIndex(snapshotWith(
		Vehicle{NodeID: 1, CurrPos: p},
		Vehicle{NodeID: 2, CurrPos: geo.SimPoint{X: 1.001, Y: 1}},
	))

	got := ix.Query(p, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].NodeID)
}

func TestQueryOrderedByNodeID(t *testing.T) {
	ix := NewProximityIndex(snapshotWith(
		Vehicle{NodeID: 30, CurrPos: geo.SimPoint{X: 1, Y: 0}},
		Vehicle{NodeID: 10, CurrPos: geo.SimPoint{X: 2, Y: 0}},
		Vehicle{NodeID: 20, CurrPos: geo.SimPoint{X: 3, Y: 0}},
	))

	got := ix.Query(geo.SimPoint{X: 0, Y: 0}, 10)
	require.Len(t, got, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{got[0].NodeID, got[1].NodeID, got[2].NodeID})
}
