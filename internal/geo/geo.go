package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Two coordinate planes are in play: the road network file uses the
// network (TraCI/SUMO) plane, while vehicle telemetry is recorded in the
// simulation (OMNeT++) plane. The planes differ by an offset and a vertical
// flip, so the two point types are kept distinct and only Transformer
// converts between them.

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// SimPoint is a point in the simulation (telemetry) plane.
type SimPoint struct {
	X float64
	Y float64
}

// NetPoint is a point in the network (road description) plane.
type NetPoint struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance to q.
func (p SimPoint) DistanceTo(q SimPoint) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// DistanceTo returns the Euclidean distance to q.
func (p NetPoint) DistanceTo(q NetPoint) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// AsGeometry returns the point as a simplefeatures geometry.
func (p NetPoint) AsGeometry() geom.Geometry {
	return geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: p.X, Y: p.Y},
	}).AsGeometry()
}

// NetPointFromString parses an "x,y" pair in the network plane.
func NetPointFromString(coords string) (NetPoint, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return NetPoint{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return NetPoint{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return NetPoint{}, ErrInvalidCoordinates
	}
	return NetPoint{X: x, Y: y}, nil
}

// Transformer converts between the network plane and the simulation plane.
// It is the affine mapping used by Veins' TraCICoordinateTransformation:
// an offset given by the network-plane top-left corner, a vertical flip
// across the network's height, and a fixed margin.
type Transformer struct {
	topLeft     NetPoint
	bottomRight NetPoint
	dimensions  NetPoint
	margin      float64
}

// NewTransformer builds a Transformer from the network-plane top-left and
// bottom-right corners and the margin.
func NewTransformer(topLeft, bottomRight NetPoint, margin float64) *Transformer {
	return &Transformer{
		topLeft:     topLeft,
		bottomRight: bottomRight,
		dimensions: NetPoint{
			X: bottomRight.X - topLeft.X,
			Y: bottomRight.Y - topLeft.Y,
		},
		margin: margin,
	}
}

// ToNetwork maps a simulation-plane point into the network plane.
func (t *Transformer) ToNetwork(p SimPoint) NetPoint {
	return NetPoint{
		X: p.X + t.topLeft.X - t.margin,
		Y: t.dimensions.Y - (p.Y - t.topLeft.Y) + t.margin,
	}
}

// ToSim maps a network-plane point into the simulation plane.
// ToSim and ToNetwork are mutual inverses.
func (t *Transformer) ToSim(p NetPoint) SimPoint {
	return SimPoint{
		X: p.X - t.topLeft.X + t.margin,
		Y: t.dimensions.Y - (p.Y - t.topLeft.Y) + t.margin,
	}
}
