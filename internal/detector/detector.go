// Package detector finds probable rear-end collisions in a recorded
// vehicular trace by walking consecutive snapshot windows and testing
// same-lane vehicle pairs against a kinematic following predicate.
package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/gargmohit24/ITSC-2021/internal/geo"
	"github.com/gargmohit24/ITSC-2021/internal/network"
	"github.com/gargmohit24/ITSC-2021/internal/snapshot"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

// Options configures one detection run.
type Options struct {
	RunID int

	// StartTime and EndTime bound the processed instants, inclusive.
	// When nil, the run's observed range is used.
	StartTime *float64
	EndTime   *float64

	// TTC is the time-to-collision threshold in seconds; a vehicle's
	// danger radius is its current speed times TTC.
	TTC float64

	// WholeSecondsOnly restricts processing to whole-second instants.
	// Sub-second samples immediately after a whole second are frequently
	// incomplete in the source traces, so this defaults to on.
	WholeSecondsOnly bool

	// LaneTolerance is the maximum residual distance for point-to-lane
	// resolution.
	LaneTolerance float64

	// GeoEPSG, when non-zero, is the EPSG code of the road network's
	// projection; detected collisions are then geolocated to WGS84.
	GeoEPSG int

	// OnSnapshot, when set, receives per-window processing stats.
	OnSnapshot func(SnapshotStats)
}

// SnapshotStats describes the processing of one snapshot window.
type SnapshotStats struct {
	Start      float64
	End        float64
	Vehicles   int
	Candidates int
	Collisions int
	Inserted   int64
	Duration   time.Duration
}

// Summary aggregates a full detection run.
type Summary struct {
	Instants   int
	Snapshots  int
	Collisions int64
}

// Detector orchestrates snapshot construction, lane resolution, proximity
// queries and the following predicate into persisted collision records. It
// carries no state across windows besides the persisted output, so every
// window is independently reproducible.
type Detector struct {
	store *store.Store
	net   *network.Network
	log   zerolog.Logger
	opts  Options
}

// New creates a Detector.
func New(st *store.Store, net *network.Network, log zerolog.Logger, opts Options) *Detector {
	if opts.TTC <= 0 {
		opts.TTC = 1.0
	}
	if opts.LaneTolerance <= 0 {
		opts.LaneTolerance = network.DefaultTolerance
	}
	return &Detector{store: st, net: net, log: log, opts: opts}
}

// Run executes detection over the configured time range. Geometry lookup
// failures and persistence failures abort the run; re-runs are safe because
// collision inserts are idempotent.
func (d *Detector) Run() (Summary, error) {
	var summary Summary

	start, end, err := d.timeRange()
	if err != nil {
		return summary, err
	}

	instants, err := d.store.Instants(d.opts.RunID, start, end)
	if err != nil {
		return summary, err
	}
	if d.opts.WholeSecondsOnly {
		instants = wholeSeconds(instants)
	}
	summary.Instants = len(instants)

	d.log.Info().
		Int("run", d.opts.RunID).
		Float64("start", start).
		Float64("end", end).
		Int("instants", len(instants)).
		Msg("Starting collision detection")

	for i := 0; i+1 < len(instants); i++ {
		stats, err := d.processWindow(instants[i], instants[i+1])
		if err != nil {
			return summary, err
		}
		summary.Snapshots++
		summary.Collisions += stats.Inserted
		if d.opts.OnSnapshot != nil {
			d.opts.OnSnapshot(stats)
		}
	}

	d.log.Info().
		Int("snapshots", summary.Snapshots).
		Int64("collisions", summary.Collisions).
		Msg("Collision detection finished")
	return summary, nil
}

// processWindow runs detection over one consecutive instant pair and
// persists the emitted records before returning.
func (d *Detector) processWindow(start, end float64) (SnapshotStats, error) {
	began := time.Now()
	stats := SnapshotStats{Start: start, End: end}

	snap, err := snapshot.Build(d.store, d.opts.RunID, start, end)
	if err != nil {
		return stats, err
	}
	stats.Vehicles = snap.Len()

	prox := snapshot.NewProximityIndex(snap)
	lanes := make(map[int]*network.Lane, snap.Len())

	d.log.Debug().
		Float64("start", start).
		Float64("end", end).
		Int("vehicles", snap.Len()).
		Msg("Processing snapshot")

	var found []store.Collision
	for _, vehicle := range snap.Vehicles() {
		lane, err := d.laneOf(lanes, vehicle)
		if err != nil {
			return stats, err
		}

		dangerRadius := vehicle.Speed * d.opts.TTC
		nearby := prox.Query(vehicle.CurrPos, dangerRadius)

		for _, neighbor := range nearby {
			if neighbor.NodeID == vehicle.NodeID {
				continue
			}
			stats.Candidates++

			other, ok := snap.Get(neighbor.NodeID)
			if !ok {
				continue
			}
			otherLane, err := d.laneOf(lanes, other)
			if err != nil {
				return stats, err
			}
			if otherLane.ID != lane.ID {
				continue
			}
			// If vehicle is not following other, ignore; the pair is
			// revisited from other's side.
			if !IsFollowing(vehicle.PrevPos, vehicle.CurrPos, other.PrevPos, other.CurrPos) {
				continue
			}

			d.log.Debug().
				Int("leader", other.NodeID).
				Int("follower", vehicle.NodeID).
				Float64("seconds", end).
				Str("lane", lane.ID).
				Float64("speed", vehicle.Speed).
				Msg("Collision detected")
			found = append(found, d.record(other, vehicle, end, lane.ID))
		}
	}
	stats.Collisions = len(found)

	inserted, err := d.store.InsertCollisions(found)
	if err != nil {
		return stats, err
	}
	stats.Inserted = inserted
	stats.Duration = time.Since(began)
	return stats, nil
}

// laneOf resolves and memoizes a vehicle's lane for the current window.
func (d *Detector) laneOf(cache map[int]*network.Lane, v snapshot.Vehicle) (*network.Lane, error) {
	if lane, ok := cache[v.NodeID]; ok {
		return lane, nil
	}
	lane, err := d.net.FindLaneWithin(v.CurrPos, d.opts.LaneTolerance)
	if err != nil {
		return nil, fmt.Errorf("resolving lane for vehicle %d: %w", v.NodeID, err)
	}
	cache[v.NodeID] = lane
	return lane, nil
}

// record builds a collision row, geolocating the follower when configured.
func (d *Detector) record(leader, follower snapshot.Vehicle, seconds float64, laneID string) store.Collision {
	c := store.Collision{
		LeaderNodeID:   leader.NodeID,
		FollowerNodeID: follower.NodeID,
		Seconds:        seconds,
		LaneID:         laneID,
	}
	if d.opts.GeoEPSG != 0 {
		lon, lat := geo.LonLat(d.opts.GeoEPSG, d.net.Transformer().ToNetwork(follower.CurrPos))
		c.Lon = &lon
		c.Lat = &lat
	}
	return c
}

// timeRange resolves the configured bounds, defaulting to the run's
// observed range.
func (d *Detector) timeRange() (float64, float64, error) {
	if d.opts.StartTime != nil && d.opts.EndTime != nil {
		return *d.opts.StartTime, *d.opts.EndTime, nil
	}
	min, max, err := d.store.TimeBounds(d.opts.RunID)
	if err != nil {
		return 0, 0, err
	}
	start, end := min, max
	if d.opts.StartTime != nil {
		start = *d.opts.StartTime
	}
	if d.opts.EndTime != nil {
		end = *d.opts.EndTime
	}
	return start, end, nil
}

// wholeSeconds filters an instant list down to whole-second values.
func wholeSeconds(instants []float64) []float64 {
	out := instants[:0]
	for _, v := range instants {
		if v == math.Trunc(v) {
			out = append(out, v)
		}
	}
	return out
}
