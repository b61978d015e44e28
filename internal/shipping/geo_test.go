package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKM(t *testing.T) {
	assert.InDelta(t, 0, DistanceKM(-33.87, 151.21, -33.87, 151.21), 1e-9)
	// one degree of latitude
	assert.InDelta(t, 111.32, DistanceKM(-33, 151, -34, 151), 1e-6)
	// longitude shrinks with latitude
	d := DistanceKM(-60, 151, -60, 152)
	assert.InDelta(t, 55.66, d, 0.01)
}

func TestWithinRadiusInclusive(t *testing.T) {
	inside, d := WithinRadius(-33, 151, 111.32, -34, 151)
	assert.True(t, inside)
	assert.InDelta(t, 111.32, d, 1e-6)

	inside, _ = WithinRadius(-33, 151, 50, -34, 151)
	assert.False(t, inside)
}
