package avalon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargo/pkg/alpaca"
	"stargo/pkg/stargo"
)

func TestSlewRateFor(t *testing.T) {
	tests := []struct {
		multiple float64
		want     stargo.SlewRate
	}{
		{0.5, stargo.SlewGuide},
		{2, stargo.SlewGuide},
		{8, stargo.SlewCentering},
		{16, stargo.SlewCentering},
		{64, stargo.SlewFind},
		{200, stargo.SlewMax},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slewRateFor(tt.multiple*siderealRate), "%vx sidereal", tt.multiple)
		assert.Equal(t, tt.want, slewRateFor(-tt.multiple*siderealRate), "%vx sidereal reversed", tt.multiple)
	}
}

func TestAxisDirection(t *testing.T) {
	tests := []struct {
		axis alpaca.TelescopeAxis
		rate float64
		want stargo.Direction
	}{
		{alpaca.AxisPrimary, 1, stargo.West},
		{alpaca.AxisPrimary, -1, stargo.East},
		{alpaca.AxisSecondary, 0.1, stargo.North},
		{alpaca.AxisSecondary, -0.1, stargo.South},
	}
	for _, tt := range tests {
		dir, err := axisDirection(tt.axis, tt.rate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, dir)
	}

	_, err := axisDirection(alpaca.AxisTertiary, 1)
	assert.ErrorIs(t, err, alpaca.ErrInvalidValue)
}
