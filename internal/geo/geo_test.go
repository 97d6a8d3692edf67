package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Corner and margin values from the reference scenario.
func newTestTransformer() *Transformer {
	return NewTransformer(
		NetPoint{X: 679.56, Y: 966.00},
		NetPoint{X: 4441.09, Y: 9242.02},
		25.0,
	)
}

func TestTransformerRoundTrip(t *testing.T) {
	xf := newTestTransformer()

	points := []SimPoint{
		{X: 0, Y: 0},
		{X: 100.5, Y: 200.25},
		{X: -50, Y: 8000},
		{X: 3761.53, Y: 8276.02},
		{X: 0.000001, Y: -0.000001},
	}
	for _, p := range points {
		got := xf.ToSim(xf.ToNetwork(p))
		assert.InDelta(t, p.X, got.X, 1e-9)
		assert.InDelta(t, p.Y, got.Y, 1e-9)
	}

	netPoints := []NetPoint{
		{X: 679.56, Y: 966.00},
		{X: 4441.09, Y: 9242.02},
		{X: 1000, Y: 2000},
	}
	for _, p := range netPoints {
		got := xf.ToNetwork(xf.ToSim(p))
		assert.InDelta(t, p.X, got.X, 1e-9)
		assert.InDelta(t, p.Y, got.Y, 1e-9)
	}
}

func TestTransformerFlipsVertically(t *testing.T) {
	xf := NewTransformer(NetPoint{X: 0, Y: 0}, NetPoint{X: 100, Y: 100}, 0)

	low := xf.ToNetwork(SimPoint{X: 10, Y: 10})
	high := xf.ToNetwork(SimPoint{X: 10, Y: 90})

	assert.Equal(t, 10.0, low.X)
	// Larger sim y means smaller network y.
	assert.Greater(t, low.Y, high.Y)
}

func TestNetPointFromString(t *testing.T) {
	p, err := NetPointFromString("1.5,-2.25")
	require.NoError(t, err)
	assert.Equal(t, NetPoint{X: 1.5, Y: -2.25}, p)

	_, err = NetPointFromString("1.5")
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	_, err = NetPointFromString("a,b")
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestDistanceTo(t *testing.T) {
	assert.Equal(t, 5.0, SimPoint{X: 0, Y: 0}.DistanceTo(SimPoint{X: 3, Y: 4}))
	assert.Equal(t, 5.0, NetPoint{X: 1, Y: 1}.DistanceTo(NetPoint{X: 4, Y: 5}))
}
