package network

import (
	"errors"
	"fmt"

	"github.com/gargmohit24/ITSC-2021/internal/geo"
)

// ErrMalformedNetwork is returned when the network document is missing
// required lane attributes or cannot be parsed. It aborts the load.
var ErrMalformedNetwork = errors.New("malformed network input")

// OutOfBoundsError reports a probe point farther than the lookup tolerance
// from every known lane. It indicates a systemic coordinate-mapping or
// data-quality fault, so callers treat it as fatal for the run rather than
// skipping the vehicle.
type OutOfBoundsError struct {
	Point    geo.NetPoint // probe position, network plane
	LaneID   string       // nearest lane, if any
	Distance float64      // residual distance to that lane
}

func (e *OutOfBoundsError) Error() string {
	if e.LaneID == "" {
		return fmt.Sprintf("point (%f, %f) matches no lane", e.Point.X, e.Point.Y)
	}
	return fmt.Sprintf("point (%f, %f) is %f away from nearest lane %s",
		e.Point.X, e.Point.Y, e.Distance, e.LaneID)
}
