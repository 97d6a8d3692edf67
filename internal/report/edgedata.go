// Package report aggregates per-edge traffic statistics from the telemetry
// store into a SUMO meandata document.
package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/gargmohit24/ITSC-2021/internal/geo"
	"github.com/gargmohit24/ITSC-2021/internal/network"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

// minutesPerKmFactor converts 1/(m/s) into minutes per kilometre.
const minutesPerKmFactor = 16.667

// EdgeStats aggregates the observed speeds on one edge over the reporting
// interval.
type EdgeStats struct {
	EdgeID     string
	SpeedLimit float64 // mean of the edge's lane speed limits
	Length     float64 // mean of the edge's lane lengths
	Samples    int
	AvgSpeed   float64
	MinSpeed   float64
	MaxSpeed   float64
	StdevSpeed float64 // only meaningful when HasStdev
	HasStdev   bool    // requires more than two samples

	// TravelRate is minutes per kilometre at the observed average speed.
	TravelRate float64
	// CongestionIndex compares observed to free-flow travel time:
	// (actual - expected) / expected.
	CongestionIndex float64
}

// Interval is a complete per-edge report over [Begin, End).
type Interval struct {
	Begin float64
	End   float64
	Edges []EdgeStats
}

// Options configures report generation.
type Options struct {
	RunID int
	// StartTime and EndTime bound the interval; when nil the run's
	// observed range is used. The interval is half-open: [start, end).
	StartTime *float64
	EndTime   *float64
	// LaneTolerance is the maximum residual for point-to-lane matching.
	LaneTolerance float64
}

// Build resolves every fully-observed sample in the interval to its edge
// and aggregates per-edge speed statistics. A sample farther than the lane
// tolerance from every lane aborts the report.
func Build(st *store.Store, net *network.Network, log zerolog.Logger, opts Options) (*Interval, error) {
	if opts.LaneTolerance <= 0 {
		opts.LaneTolerance = network.DefaultTolerance
	}

	start, end, err := resolveBounds(st, opts)
	if err != nil {
		return nil, err
	}

	rows, err := st.SpeedSamples(opts.RunID, start, end)
	if err != nil {
		return nil, err
	}

	speeds := make(map[string][]float64)
	for _, row := range rows {
		lane, err := net.FindLaneWithin(geo.SimPoint{X: row.PosX, Y: row.PosY}, opts.LaneTolerance)
		if err != nil {
			return nil, fmt.Errorf("resolving edge for vehicle %d at %f: %w", row.NodeID, row.Seconds, err)
		}
		speeds[lane.EdgeID] = append(speeds[lane.EdgeID], row.Speed)
	}

	limits, lengths := edgeAverages(net.Lanes())

	iv := &Interval{Begin: start, End: end}
	for edgeID, observed := range speeds {
		iv.Edges = append(iv.Edges, edgeStats(edgeID, observed, limits[edgeID], lengths[edgeID]))
	}
	sort.Slice(iv.Edges, func(i, j int) bool { return iv.Edges[i].EdgeID < iv.Edges[j].EdgeID })

	log.Info().
		Int("run", opts.RunID).
		Float64("begin", start).
		Float64("end", end).
		Int("samples", len(rows)).
		Int("edges", len(iv.Edges)).
		Msg("Built edge report")
	return iv, nil
}

func edgeStats(edgeID string, observed []float64, limit, length float64) EdgeStats {
	s := EdgeStats{
		EdgeID:     edgeID,
		SpeedLimit: limit,
		Length:     length,
		Samples:    len(observed),
		AvgSpeed:   stat.Mean(observed, nil),
		MinSpeed:   observed[0],
		MaxSpeed:   observed[0],
	}
	for _, v := range observed {
		if v < s.MinSpeed {
			s.MinSpeed = v
		}
		if v > s.MaxSpeed {
			s.MaxSpeed = v
		}
	}
	if len(observed) > 2 {
		s.StdevSpeed = stat.StdDev(observed, nil)
		s.HasStdev = true
	}

	s.TravelRate = 1 / s.AvgSpeed * minutesPerKmFactor
	expected := length / limit
	actual := length / s.AvgSpeed
	s.CongestionIndex = (actual - expected) / expected
	return s
}

// edgeAverages computes per-edge means of lane speed limits and lengths.
func edgeAverages(lanes []network.Lane) (limits, lengths map[string]float64) {
	limitSamples := make(map[string][]float64)
	lengthSamples := make(map[string][]float64)
	for _, lane := range lanes {
		limitSamples[lane.EdgeID] = append(limitSamples[lane.EdgeID], lane.SpeedLimit)
		lengthSamples[lane.EdgeID] = append(lengthSamples[lane.EdgeID], lane.Length)
	}

	limits = make(map[string]float64, len(limitSamples))
	lengths = make(map[string]float64, len(lengthSamples))
	for edgeID, vs := range limitSamples {
		limits[edgeID] = stat.Mean(vs, nil)
	}
	for edgeID, vs := range lengthSamples {
		lengths[edgeID] = stat.Mean(vs, nil)
	}
	return limits, lengths
}

func resolveBounds(st *store.Store, opts Options) (float64, float64, error) {
	if opts.StartTime != nil && opts.EndTime != nil {
		return *opts.StartTime, *opts.EndTime, nil
	}
	min, max, err := st.TimeBounds(opts.RunID)
	if err != nil {
		return 0, 0, err
	}
	start, end := min, max
	if opts.StartTime != nil {
		start = *opts.StartTime
	}
	if opts.EndTime != nil {
		end = *opts.EndTime
	}
	return start, end, nil
}

// xmlEdge is the meandata <edge> element.
type xmlEdge struct {
	XMLName         xml.Name `xml:"edge"`
	ID              string   `xml:"id,attr"`
	Speed           float64  `xml:"speed,attr"`
	Length          float64  `xml:"length,attr"`
	AvgSpeed        float64  `xml:"avg_speed,attr"`
	MinSpeed        float64  `xml:"min_speed,attr"`
	MaxSpeed        float64  `xml:"max_speed,attr"`
	StdevSpeed      string   `xml:"stdev_speed,attr"`
	TravelRate      float64  `xml:"travelrate,attr"`
	CongestionIndex float64  `xml:"congestion_index,attr"`
}

type xmlInterval struct {
	XMLName xml.Name  `xml:"interval"`
	Begin   float64   `xml:"begin,attr"`
	End     float64   `xml:"end,attr"`
	Edges   []xmlEdge `xml:"edge"`
}

type xmlMeandata struct {
	XMLName  xml.Name    `xml:"meandata"`
	Interval xmlInterval `xml:"interval"`
}

// WriteXML emits the report as a SUMO meandata document.
func (iv *Interval) WriteXML(w io.Writer) error {
	doc := xmlMeandata{
		Interval: xmlInterval{Begin: iv.Begin, End: iv.End},
	}
	for _, e := range iv.Edges {
		xe := xmlEdge{
			ID:              e.EdgeID,
			Speed:           e.SpeedLimit,
			Length:          e.Length,
			AvgSpeed:        e.AvgSpeed,
			MinSpeed:        e.MinSpeed,
			MaxSpeed:        e.MaxSpeed,
			TravelRate:      e.TravelRate,
			CongestionIndex: e.CongestionIndex,
		}
		if e.HasStdev {
			xe.StdevSpeed = strconv.FormatFloat(e.StdevSpeed, 'g', -1, 64)
		}
		doc.Interval.Edges = append(doc.Interval.Edges, xe)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding meandata: %w", err)
	}
	return enc.Close()
}
