package detector

import (
	"github.com/gargmohit24/ITSC-2021/internal/geo"
)

// IsFollowing reports whether vehicle u trails and is closing on vehicle v,
// given both vehicles' positions at the start (uPrev, vPrev) and end
// (uCurr, vCurr) of a snapshot window.
//
// Two conditions must hold:
//   - v has moved away from u's starting point, so v is ahead of u and
//     travelling in the same direction;
//   - the gap between u and v has not grown over the window.
//
// The test is asymmetric: for a genuine closing rear-end approach exactly
// one of IsFollowing(u, v) / IsFollowing(v, u) holds, while diverging,
// crossing or oncoming motion satisfies neither. Lane membership is not
// considered here.
func IsFollowing(uPrev, uCurr, vPrev, vCurr geo.SimPoint) bool {
	return uPrev.DistanceTo(vCurr) > uPrev.DistanceTo(vPrev) &&
		uCurr.DistanceTo(vCurr) <= uPrev.DistanceTo(vPrev)
}
