// Package snapshot reconstructs per-vehicle state across two consecutive
// sampled instants and answers radius queries over the result.
package snapshot

import (
	"fmt"
	"sort"

	"github.com/gargmohit24/ITSC-2021/internal/geo"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

// Vehicle is the state of one vehicle across a snapshot window: position at
// the window start and end, plus speed and controller tag at the end. It is
// only meaningful for the window it was built for.
type Vehicle struct {
	NodeID     int
	PrevPos    geo.SimPoint
	CurrPos    geo.SimPoint
	Speed      float64
	Controller string
}

// Snapshot holds the vehicles fully observed at both instants of a window.
// Vehicles seen at only one instant carry no motion information and are
// excluded.
type Snapshot struct {
	Start    float64
	End      float64
	vehicles map[int]Vehicle
}

// Build fetches telemetry at the start and end instants and intersects the
// vehicle-id sets. An empty intersection yields a valid empty snapshot.
func Build(st *store.Store, runID int, start, end float64) (*Snapshot, error) {
	startRows, err := st.SamplesAt(runID, start)
	if err != nil {
		return nil, fmt.Errorf("building snapshot [%f, %f]: %w", start, end, err)
	}
	endRows, err := st.SamplesAt(runID, end)
	if err != nil {
		return nil, fmt.Errorf("building snapshot [%f, %f]: %w", start, end, err)
	}

	startPos := make(map[int]geo.SimPoint, len(startRows))
	for _, row := range startRows {
		startPos[row.NodeID] = geo.SimPoint{X: *row.MobilityPosX, Y: *row.MobilityPosY}
	}

	snap := &Snapshot{
		Start:    start,
		End:      end,
		vehicles: make(map[int]Vehicle),
	}
	for _, row := range endRows {
		prev, ok := startPos[row.NodeID]
		if !ok {
			continue
		}
		snap.vehicles[row.NodeID] = Vehicle{
			NodeID:     row.NodeID,
			PrevPos:    prev,
			CurrPos:    geo.SimPoint{X: *row.MobilityPosX, Y: *row.MobilityPosY},
			Speed:      *row.ApplSpeed,
			Controller: row.Controller,
		}
	}
	return snap, nil
}

// Len returns the number of vehicles in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.vehicles)
}

// Get returns the state of one vehicle.
func (s *Snapshot) Get(nodeID int) (Vehicle, bool) {
	v, ok := s.vehicles[nodeID]
	return v, ok
}

// Vehicles returns all vehicle states ordered by node ID, so iteration over
// a snapshot is deterministic.
func (s *Snapshot) Vehicles() []Vehicle {
	out := make([]Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}
