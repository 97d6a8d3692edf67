// Package network loads a SUMO road-network description and resolves
// simulation-plane positions to lanes through a spatial index.
package network

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/peterstace/simplefeatures/rtree"

	"github.com/gargmohit24/ITSC-2021/internal/geo"
)

// DefaultTolerance is the maximum residual distance, in network length
// units, between a transformed vehicle position and its matched lane.
const DefaultTolerance = 0.1

// Lane is one traversable path within an edge. Shape is an ordered polyline
// in the network plane. Lanes are immutable after load.
type Lane struct {
	EdgeID     string
	ID         string
	Index      int
	SpeedLimit float64
	Length     float64
	Shape      geom.LineString
}

// Network holds the loaded lanes and a spatial index over their polylines.
// It is read-only after Load and safe for concurrent lookups.
type Network struct {
	lanes  []Lane
	bounds []rtree.Box
	index  *rtree.RTree
	xform  *geo.Transformer
}

// Load reads a SUMO network XML document and builds the lane index.
// Point-to-lane lookups use xform to move probe points into the network
// plane first.
func Load(r io.Reader, xform *geo.Transformer) (*Network, error) {
	lanes, err := readLanes(r)
	if err != nil {
		return nil, err
	}

	n := &Network{
		lanes:  lanes,
		bounds: make([]rtree.Box, len(lanes)),
		xform:  xform,
	}

	items := make([]rtree.BulkItem, len(lanes))
	for i := range lanes {
		box := polylineBox(lanes[i].Shape)
		n.bounds[i] = box
		items[i] = rtree.BulkItem{Box: box, RecordID: i}
	}
	n.index = rtree.BulkLoad(items)

	return n, nil
}

// LoadFile reads a SUMO network XML file and builds the lane index.
func LoadFile(path string, xform *geo.Transformer) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening network file: %w", err)
	}
	defer f.Close()

	n, err := Load(f, xform)
	if err != nil {
		return nil, fmt.Errorf("loading network file %s: %w", path, err)
	}
	return n, nil
}

// Lanes returns all loaded lanes in document order.
func (n *Network) Lanes() []Lane {
	return n.lanes
}

// Transformer returns the coordinate transformer the network resolves probe
// points with.
func (n *Network) Transformer() *geo.Transformer {
	return n.xform
}

// FindLane resolves a simulation-plane position to the nearest lane using
// the default tolerance.
func (n *Network) FindLane(p geo.SimPoint) (*Lane, error) {
	return n.FindLaneWithin(p, DefaultTolerance)
}

// FindLaneWithin resolves a simulation-plane position to the nearest lane.
// If the residual distance between the transformed point and the nearest
// polyline exceeds tolerance, an *OutOfBoundsError is returned; that
// signals a coordinate-mapping or data-quality fault and is fatal for the
// run. Among equidistant lanes the lowest lane ID wins.
func (n *Network) FindLaneWithin(p geo.SimPoint, tolerance float64) (*Lane, error) {
	np := n.xform.ToNetwork(p)
	probe := np.AsGeometry()
	probeBox := rtree.Box{MinX: np.X, MinY: np.Y, MaxX: np.X, MaxY: np.Y}

	best := -1
	bestDist := math.Inf(1)
	n.index.PrioritySearch(probeBox, func(recordID int) error {
		// Boxes arrive in ascending distance order, so once the box
		// itself is farther than the best exact match no better lane
		// can follow.
		if boxDistance(n.bounds[recordID], np) > bestDist {
			return rtree.Stop
		}
		d, ok := geom.Distance(probe, n.lanes[recordID].Shape.AsGeometry())
		if !ok {
			return nil
		}
		if d < bestDist || (d == bestDist && best >= 0 && n.lanes[recordID].ID < n.lanes[best].ID) {
			best = recordID
			bestDist = d
		}
		return nil
	})

	if best < 0 {
		return nil, &OutOfBoundsError{Point: np, Distance: math.Inf(1)}
	}
	if bestDist > tolerance {
		return nil, &OutOfBoundsError{
			Point:    np,
			LaneID:   n.lanes[best].ID,
			Distance: bestDist,
		}
	}
	return &n.lanes[best], nil
}

// boxDistance returns the distance from p to the closest point of box.
func boxDistance(box rtree.Box, p geo.NetPoint) float64 {
	dx := math.Max(math.Max(box.MinX-p.X, p.X-box.MaxX), 0)
	dy := math.Max(math.Max(box.MinY-p.Y, p.Y-box.MaxY), 0)
	return math.Hypot(dx, dy)
}

// polylineBox computes the bounding box of a lane polyline.
func polylineBox(ls geom.LineString) rtree.Box {
	seq := ls.Coordinates()
	box := rtree.Box{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		box.MinX = math.Min(box.MinX, xy.X)
		box.MinY = math.Min(box.MinY, xy.Y)
		box.MaxX = math.Max(box.MaxX, xy.X)
		box.MaxY = math.Max(box.MaxY, xy.Y)
	}
	return box
}

// xmlLane mirrors the attributes of a <lane> element.
type xmlLane struct {
	ID     string `xml:"id,attr"`
	Index  string `xml:"index,attr"`
	Speed  string `xml:"speed,attr"`
	Length string `xml:"length,attr"`
	Shape  string `xml:"shape,attr"`
}

// readLanes streams the network document, collecting lanes grouped under
// their owning edges.
func readLanes(r io.Reader) ([]Lane, error) {
	dec := xml.NewDecoder(r)

	var lanes []Lane
	var edgeID string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedNetwork, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "edge":
			edgeID = attr(start, "id")
		case "lane":
			var xl xmlLane
			if err := dec.DecodeElement(&xl, &start); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedNetwork, err)
			}
			lane, err := buildLane(edgeID, xl)
			if err != nil {
				return nil, err
			}
			lanes = append(lanes, lane)
		}
	}
	return lanes, nil
}

func buildLane(edgeID string, xl xmlLane) (Lane, error) {
	if xl.ID == "" {
		return Lane{}, fmt.Errorf("%w: lane without id on edge %q", ErrMalformedNetwork, edgeID)
	}

	shape, err := parseShape(xl.Shape)
	if err != nil {
		return Lane{}, fmt.Errorf("%w: lane %q: %v", ErrMalformedNetwork, xl.ID, err)
	}

	lane := Lane{
		EdgeID:     edgeID,
		ID:         xl.ID,
		Index:      -1,
		SpeedLimit: -1,
		Length:     -1,
		Shape:      shape,
	}
	if xl.Index != "" {
		idx, err := strconv.Atoi(xl.Index)
		if err != nil {
			return Lane{}, fmt.Errorf("%w: lane %q: bad index %q", ErrMalformedNetwork, xl.ID, xl.Index)
		}
		lane.Index = idx
	}
	if xl.Speed != "" {
		v, err := strconv.ParseFloat(xl.Speed, 64)
		if err != nil {
			return Lane{}, fmt.Errorf("%w: lane %q: bad speed %q", ErrMalformedNetwork, xl.ID, xl.Speed)
		}
		lane.SpeedLimit = v
	}
	if xl.Length != "" {
		v, err := strconv.ParseFloat(xl.Length, 64)
		if err != nil {
			return Lane{}, fmt.Errorf("%w: lane %q: bad length %q", ErrMalformedNetwork, xl.ID, xl.Length)
		}
		lane.Length = v
	}
	return lane, nil
}

// parseShape parses a space-separated list of "x,y" network-plane points
// into a LineString. At least two points are required.
func parseShape(shape string) (geom.LineString, error) {
	fields := strings.Fields(shape)
	if len(fields) < 2 {
		return geom.LineString{}, fmt.Errorf("shape must have at least 2 points, got %d", len(fields))
	}

	flat := make([]float64, 0, len(fields)*2)
	for _, field := range fields {
		p, err := geo.NetPointFromString(field)
		if err != nil {
			return geom.LineString{}, fmt.Errorf("bad shape point %q", field)
		}
		flat = append(flat, p.X, p.Y)
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq), nil
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
