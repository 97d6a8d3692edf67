package snapshot

import (
	"sort"

	"github.com/peterstace/simplefeatures/rtree"

	"github.com/gargmohit24/ITSC-2021/internal/geo"
)

// Neighbor is one radius-query result: a vehicle and its current position.
type Neighbor struct {
	NodeID int
	Pos    geo.SimPoint
}

// ProximityIndex answers radius queries over the current-instant positions
// of one snapshot. It is rebuilt per snapshot and never shared across
// windows.
type ProximityIndex struct {
	entries []Neighbor
	index   *rtree.RTree
}

// NewProximityIndex builds the index over the snapshot's current positions.
func NewProximityIndex(s *Snapshot) *ProximityIndex {
	entries := make([]Neighbor, 0, s.Len())
	for _, v := range s.Vehicles() {
		entries = append(entries, Neighbor{NodeID: v.NodeID, Pos: v.CurrPos})
	}

	items := make([]rtree.BulkItem, len(entries))
	for i, e := range entries {
		items[i] = rtree.BulkItem{
			Box:      rtree.Box{MinX: e.Pos.X, MinY: e.Pos.Y, MaxX: e.Pos.X, MaxY: e.Pos.Y},
			RecordID: i,
		}
	}
	return &ProximityIndex{
		entries: entries,
		index:   rtree.BulkLoad(items),
	}
}

// Query returns every indexed vehicle within radius of center, boundary
// inclusive, ordered by node ID. The result may include the vehicle at the
// center itself; filtering self-matches is the caller's responsibility.
func (ix *ProximityIndex) Query(center geo.SimPoint, radius float64) []Neighbor {
	if radius < 0 {
		return nil
	}

	searchBox := rtree.Box{
		MinX: center.X - radius,
		MinY: center.Y - radius,
		MaxX: center.X + radius,
		MaxY: center.Y + radius,
	}

	var out []Neighbor
	ix.index.RangeSearch(searchBox, func(recordID int) error {
		e := ix.entries[recordID]
		if center.DistanceTo(e.Pos) <= radius {
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}
