package stargo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSexagesimal(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    float64
		expectError bool
	}{
		{name: "Latitude with star", input: "+48*07:30", expected: 48.125},
		{name: "Negative longitude", input: "-011:34:48", expected: -11.58},
		{name: "Degree sign", input: "12\xDF30", expected: 12.5},
		{name: "Hours minutes seconds", input: "05h30m00s", expected: 5.5},
		{name: "Decimal minutes", input: "12:30.5", expected: 12.0 + 30.5/60},
		{name: "Trailing terminator", input: "+010*00:00#", expected: 10},
		{name: "Empty", input: "", expectError: true},
		{name: "Letters", input: "abc", expectError: true},
		{name: "Too many fields", input: "1:2:3:4", expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseSexagesimal(tc.input)
			if tc.expectError {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, v, 1e-9)
		})
	}
}

func TestEncodeSiteLongitude(t *testing.T) {
	tests := []struct {
		longitude float64
		expected  string
	}{
		{11.5, ":Sg+011*30:00#"},
		{-8.5, ":Sg-008*30:00#"},
		{-0.25, ":Sg-000*15:00#"},
		{190, ":Sg-170*00:00#"},
		{-200, ":Sg+160*00:00#"},
		{180, ":Sg+180*00:00#"},
		{7.99999, ":Sg+008*00:00#"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, EncodeSiteLongitude(tc.longitude), "longitude %v", tc.longitude)
	}
}

func TestLongitudeRoundTrip(t *testing.T) {
	for lon := -179.9; lon <= 180.0; lon += 0.731 {
		cmd := EncodeSiteLongitude(lon)
		payload := strings.TrimSuffix(strings.TrimPrefix(cmd, ":Sg"), "#")

		v, err := ParseSexagesimal(payload)
		require.NoError(t, err, cmd)
		assert.InDelta(t, lon, v, 1.0/3600, cmd)
	}
}

func TestEncodeSiteLatitude(t *testing.T) {
	assert.Equal(t, ":St+48*07:30#", EncodeSiteLatitude(48.125))
	assert.Equal(t, ":St-33*52:00#", EncodeSiteLatitude(-33.8666667))
}

func TestEncodeTarget(t *testing.T) {
	assert.Equal(t, ":Sr05:30:00#", EncodeTargetRA(5.5))
	assert.Equal(t, ":Sr23:59:59#", EncodeTargetRA(23.99975))
	assert.Equal(t, ":Sd+22*00:00#", EncodeTargetDec(22))
	assert.Equal(t, ":Sd-00*30:00#", EncodeTargetDec(-0.5))
	assert.Equal(t, ":Sd-45*15:36#", EncodeTargetDec(-45.26))
}

func TestEncodeLST(t *testing.T) {
	assert.Equal(t, "133000", EncodeLST(13.5))
	assert.Equal(t, "000000", EncodeLST(23.99999))
	assert.Equal(t, "010000", EncodeLST(25))
	assert.Equal(t, "230000", EncodeLST(-1))
}

func TestDecodeRADec(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		ra, dec     float64
		expectError bool
	}{
		{name: "Valid", input: "RD0550000002200000", ra: 5.5, dec: 22.0},
		{name: "Zero", input: "RD0000000000000000", ra: 0, dec: 0},
		{name: "Signed dec", input: "RD00123450-0050000", expectError: true},
		{name: "Too short", input: "RD000123450005000", expectError: true},
		{name: "Wrong prefix", input: "XD0550000002200000", expectError: true},
		{name: "Empty", input: "", expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ra, dec, err := DecodeRADec(tc.input)
			if tc.expectError {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.ra, ra, 1e-9)
			assert.InDelta(t, tc.dec, dec, 1e-9)
		})
	}
}

func TestEncodeRADec(t *testing.T) {
	ra, dec, err := DecodeRADec(EncodeRADec(12.345678, 45.12345))
	require.NoError(t, err)
	assert.InDelta(t, 12.345678, ra, 1e-6)
	assert.InDelta(t, 45.12345, dec, 1e-5)
}

func TestGuideRatePercent(t *testing.T) {
	pct, err := GuideRateToPercent(0.5)
	require.NoError(t, err)
	assert.Equal(t, 50, pct)

	pct, err = GuideRateToPercent(1.0)
	require.NoError(t, err)
	assert.Equal(t, 100, pct)

	_, err = GuideRateToPercent(1.5)
	assert.ErrorIs(t, err, ErrRejected)
	_, err = GuideRateToPercent(-0.1)
	assert.ErrorIs(t, err, ErrRejected)

	assert.Equal(t, 0.75, PercentToGuideRate(75))
}

func TestEncodeTrackingAdjustment(t *testing.T) {
	tests := []struct {
		percent     float64
		expected    string
		expectError bool
	}{
		{percent: 5.0, expected: ":X41+500#"},
		{percent: -5.0, expected: ":X41-500#"},
		{percent: 1.25, expected: ":X41+125#"},
		{percent: 0.5, expected: ":X41+050#"},
		{percent: 0, expected: ":X41+000#"},
		{percent: 5.01, expectError: true},
		{percent: -5.01, expectError: true},
	}

	for _, tc := range tests {
		cmd, err := EncodeTrackingAdjustment(tc.percent)
		if tc.expectError {
			assert.ErrorIs(t, err, ErrRejected, "percent %v", tc.percent)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expected, cmd)
	}
}

func TestDecodeTrackingAdjustment(t *testing.T) {
	v, err := DecodeTrackingAdjustment("or+125")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, v, 1e-9)

	v, err = DecodeTrackingAdjustment("or-050#")
	require.NoError(t, err)
	assert.InDelta(t, -0.5, v, 1e-9)

	_, err = DecodeTrackingAdjustment("vh1")
	assert.ErrorIs(t, err, ErrParse)
	_, err = DecodeTrackingAdjustment("orabc")
	assert.ErrorIs(t, err, ErrParse)
}
