package stargo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	cmd, err := Command(OpPulseGuide, "n", 250)
	require.NoError(t, err)
	assert.Equal(t, ":Mgn0250#", cmd)

	cmd, err = Command(OpSetSlewSpeedMode, 12, 12)
	require.NoError(t, err)
	assert.Equal(t, ":TTMX1212#", cmd)

	cmd, err = Command(OpMotorStatus)
	require.NoError(t, err)
	assert.Equal(t, ":X34#", cmd)

	_, err = Command(Operation(-1))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestMotorStatusIgnoresLateReplies(t *testing.T) {
	tr := newScript().on(":X34#", "m10#")
	tr.queue("RD0550000000220000#pA#")
	m, _ := newTestMount(t, tr, nil)

	x, y, err := m.MotorStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, x)
	assert.Equal(t, 0, y)
}

func TestOperationNames(t *testing.T) {
	for op := range catalog {
		assert.NotContains(t, op.String(), "Operation(", "operation %d has no name", int(op))
	}
}

func TestHandshake(t *testing.T) {
	m, _ := newTestMount(t, newScript().on(":GW#", "GT1#"), nil)

	st, err := m.Handshake()
	require.NoError(t, err)
	assert.Equal(t, AlignmentStatus{MountType: 'G', Tracking: true, Points: 1}, st)
}

func TestHandshakeTimeout(t *testing.T) {
	m, _ := newTestMount(t, newScript(), nil)

	_, err := m.Handshake()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDecodeSlewSpeedMode(t *testing.T) {
	tests := []struct {
		input       string
		expected    SlewSpeedMode
		expectError bool
	}{
		{input: "06a06", expected: SlewSpeedLow},
		{input: "08a08", expected: SlewSpeedMedium},
		{input: "09a09", expected: SlewSpeedFast},
		{input: "12a12", expected: SlewSpeedHigh},
		{input: "07a07", expectError: true},
		{input: "0909", expectError: true},
	}

	for _, tc := range tests {
		mode, err := DecodeSlewSpeedMode(tc.input)
		if tc.expectError {
			assert.ErrorIs(t, err, ErrParse, tc.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expected, mode, tc.input)
	}
}

func TestSlewSpeedMode(t *testing.T) {
	tr := newScript().on(":TTGMX#", "09a09#")
	m, _ := newTestMount(t, tr, nil)

	mode, err := m.SlewSpeedMode()
	require.NoError(t, err)
	assert.Equal(t, SlewSpeedFast, mode)
	assert.Equal(t, "fast", mode.String())

	require.NoError(t, m.SetSlewSpeedMode(SlewSpeedLow))
	assert.Equal(t, ":TTMX0606#", tr.written[1])
	assert.ErrorIs(t, m.SetSlewSpeedMode(SlewSpeedMode(4)), ErrRejected)
	assert.Len(t, tr.written, 2)
}

func TestKeypadInverted(t *testing.T) {
	tr := newScript().on(":TTGFr#", "vr0#", "vr1#")
	m, _ := newTestMount(t, tr, nil)

	enabled, err := m.KeypadEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = m.KeypadEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, m.SetKeypadEnabled(true))
	require.NoError(t, m.SetKeypadEnabled(false))
	assert.Equal(t, []string{":TTGFr#", ":TTGFr#", ":TTRFr#", ":TTSFr#"}, tr.written)
}

func TestST4(t *testing.T) {
	tr := newScript().on(":TTGFh#", "vh1#")
	m, _ := newTestMount(t, tr, nil)

	enabled, err := m.ST4Enabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, m.SetST4Enabled(false))
	assert.Equal(t, ":TTRFh#", tr.written[1])
}

func TestMeridianFlipMode(t *testing.T) {
	tests := []struct {
		disabled, forced string
		expected         MeridianFlipMode
	}{
		{"vs0#", "vd0#", MeridianFlipAuto},
		{"vs1#", "vd0#", MeridianFlipDisabled},
		{"vs1#", "vd1#", MeridianFlipDisabled},
		{"vs0#", "vd1#", MeridianFlipForced},
	}

	for _, tc := range tests {
		tr := newScript().on(":TTGFs#", tc.disabled).on(":TTGFd#", tc.forced)
		m, _ := newTestMount(t, tr, nil)

		mode, err := m.MeridianFlipMode()
		require.NoError(t, err)
		assert.Equal(t, tc.expected, mode)
	}
}

func TestSetMeridianFlipMode(t *testing.T) {
	tests := []struct {
		mode     MeridianFlipMode
		expected []string
	}{
		{MeridianFlipAuto, []string{":TTRFs#", ":TTRFd#"}},
		{MeridianFlipDisabled, []string{":TTSFs#", ":TTRFd#"}},
		{MeridianFlipForced, []string{":TTRFs#", ":TTSFd#"}},
	}

	for _, tc := range tests {
		tr := newScript()
		m, _ := newTestMount(t, tr, nil)

		require.NoError(t, m.SetMeridianFlipMode(tc.mode))
		assert.Equal(t, tc.expected, tr.written)
	}

	m, _ := newTestMount(t, newScript(), nil)
	assert.ErrorIs(t, m.SetMeridianFlipMode(MeridianFlipMode(3)), ErrRejected)
}

func TestFirmwareInfo(t *testing.T) {
	tr := newScript().
		on(":GVP#", "Avalon#").
		on(":GVN#", "7.4.2#").
		on(":GVD#", " 2021-05-14#")
	m, _ := newTestMount(t, tr, nil)

	info, err := m.FirmwareInfo()
	require.NoError(t, err)
	assert.Equal(t, "Avalon - 7.4.2 - 2021-05-14", info)
}

func TestTrackingAdjustmentRange(t *testing.T) {
	tr := newScript()
	m, _ := newTestMount(t, tr, nil)

	assert.ErrorIs(t, m.SetTrackingAdjustment(5.01), ErrRejected)
	assert.ErrorIs(t, m.SetTrackingAdjustment(-5.01), ErrRejected)
	assert.Empty(t, tr.written)

	require.NoError(t, m.SetTrackingAdjustment(5.0))
	require.NoError(t, m.SetTrackingAdjustment(-5.0))
	assert.Equal(t, []string{":X41+500#", ":X41-500#"}, tr.written)
}

func TestGuideSpeeds(t *testing.T) {
	tr := newScript().on(":X22#", "50b75#")
	m, _ := newTestMount(t, tr, nil)
	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }

	ra, dec, err := m.GuideSpeeds()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ra, 1e-9)
	assert.InDelta(t, 0.75, dec, 1e-9)

	require.NoError(t, m.SetGuideSpeeds(0.3, 0.9))
	assert.Equal(t, []string{":X22#", ":X2030#", ":X2190#"}, tr.written)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, slept)

	assert.ErrorIs(t, m.SetGuideSpeeds(1.2, 0.5), ErrRejected)
	assert.Len(t, tr.written, 3)
}

func TestPierSide(t *testing.T) {
	tests := []struct {
		reply    string
		expected PierSide
	}{
		{"PW#", PierEast},
		{"PE#", PierWest},
		{"PX#", PierUnknown},
	}

	for _, tc := range tests {
		m, _ := newTestMount(t, newScript().on(":X39#", tc.reply), nil)
		side, err := m.PierSide()
		require.NoError(t, err)
		assert.Equal(t, tc.expected, side, tc.reply)
	}

	m, _ := newTestMount(t, newScript().on(":X39#", "Q#"), nil)
	_, err := m.PierSide()
	assert.ErrorIs(t, err, ErrParse)
}

func TestParkUnpark(t *testing.T) {
	lst := EncodeLST(LocalSiderealTime(testNow, 11.5))
	tr := newScript().
		on(":X362#", "pB#").
		on(":Gg#", "+011*30:00#").
		on(":X32"+lst+"#", "0#").
		on(":X370#", "p0#")
	m, _ := newTestMount(t, tr, nil)

	require.NoError(t, m.Park())
	assert.Equal(t, ScopeParking, m.Status().State)

	require.NoError(t, m.Unpark())
	assert.Equal(t, []string{":X362#", ":Gg#", ":X32" + lst + "#", ":X370#"}, tr.written)
}

func TestParkUnexpectedReply(t *testing.T) {
	m, _ := newTestMount(t, newScript().on(":X362#", "p0#"), nil)

	assert.ErrorIs(t, m.Park(), ErrParse)
	assert.Equal(t, ScopeIdle, m.Status().State)
}

func TestSetParkPosition(t *testing.T) {
	m, _ := newTestMount(t, newScript().on(":X352#", "0#", "1#"), nil)

	assert.NoError(t, m.SetParkPosition())
	assert.ErrorIs(t, m.SetParkPosition(), ErrParse)
}

func TestSyncHome(t *testing.T) {
	lst := EncodeLST(LocalSiderealTime(testNow, -8.25))
	tr := newScript().
		on(":Gg#", "-008*15:00#").
		on(":X31"+lst+"#", "0#")
	m, _ := newTestMount(t, tr, nil)

	require.NoError(t, m.SyncHome())
	assert.True(t, m.HomeSynced())
}

func TestSyncHomeNoReply(t *testing.T) {
	m, _ := newTestMount(t, newScript().on(":Gg#", "-008*15:00#"), nil)

	assert.ErrorIs(t, m.SyncHome(), ErrTimeout)
	assert.False(t, m.HomeSynced())
}

func TestUpdateLocation(t *testing.T) {
	tr := newScript()
	m, _ := newTestMount(t, tr, nil)

	require.NoError(t, m.UpdateLocation(48.125, 371.5))
	lst := EncodeLST(LocalSiderealTime(testNow, 11.5))
	assert.Equal(t, []string{":Sg+011*30:00#", ":St+48*07:30#", ":X32" + lst + "#"}, tr.written)

	assert.ErrorIs(t, m.UpdateLocation(91, 0), ErrRejected)
}

func TestSendScopeLocation(t *testing.T) {
	tr := newScript().on(":Gt#", "+48*07:30#").on(":Gg#", "-011:30:00#")
	m, _ := newTestMount(t, tr, nil)

	lat, long, err := m.SendScopeLocation()
	require.NoError(t, err)
	assert.InDelta(t, 48.125, lat, 1e-9)
	assert.InDelta(t, -11.5, long, 1e-9)
	assert.Len(t, tr.written, 3)
}

func TestGotoAbortsRunningSlew(t *testing.T) {
	tr := newScript().on(":MS#", "0#")
	m, _ := newTestMount(t, tr, nil)

	require.NoError(t, m.Goto(5.5, -0.5))
	require.NoError(t, m.Goto(6, 10))
	assert.Equal(t, []string{
		":Sr05:30:00#", ":Sd-00*30:00#", ":MS#",
		":Q#", ":Sr06:00:00#", ":Sd+10*00:00#", ":MS#",
	}, tr.written)
	assert.Equal(t, ScopeSlewing, m.Status().State)

	assert.ErrorIs(t, m.Goto(24, 0), ErrRejected)
}

func TestSync(t *testing.T) {
	tr := newScript().on(":Sr01:00:00#", "1").on(":Sd+02*00:00#", "1").on(":CM#", "M31#")
	m, _ := newTestMount(t, tr, nil)

	require.NoError(t, m.Sync(1, 2))
	assert.InDelta(t, 1.0, m.Status().RA, 1e-9)
	assert.InDelta(t, 2.0, m.Status().Dec, 1e-9)
}

func TestTrackModeAndTracking(t *testing.T) {
	tr := newScript()
	m, _ := newTestMount(t, tr, nil)

	require.NoError(t, m.SetTrackMode(TrackLunar))
	require.NoError(t, m.SetTracking(true))
	require.NoError(t, m.SetTracking(false))
	require.NoError(t, m.SetSlewRate(SlewCentering))
	assert.Equal(t, []string{":TL#", ":X122#", ":X120#", ":RC#"}, tr.written)
	assert.Equal(t, TrackLunar, m.Motion().TrackMode)
	assert.Equal(t, SlewCentering, m.Motion().SlewRate)

	assert.ErrorIs(t, m.SetTrackMode(TrackMode(5)), ErrRejected)
}

func TestCheckEquatorialFormat(t *testing.T) {
	tests := []struct {
		name     string
		replies  []string
		expected CoordinateFormat
		written  int
	}{
		{"Long", []string{"05:30:00#"}, FormatLong, 1},
		{"Longer", []string{"05:30:00.0#"}, FormatLonger, 1},
		{"Switched", []string{"05:30.0#", "05:30:00#"}, FormatLong, 3},
		{"Stays short", []string{"05:30.0#"}, FormatShort, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := newScript().on(":GR#", tc.replies...)
			m, _ := newTestMount(t, tr, nil)

			f, err := m.CheckEquatorialFormat()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f)
			assert.Len(t, tr.written, tc.written)
		})
	}
}

func TestSendTime(t *testing.T) {
	tr := newScript().on(":SC 032024#", "1#")
	m, _ := newTestMount(t, tr, nil)

	local := time.Date(2024, time.March, 20, 22, 15, 5, 0, time.FixedZone("CET", 3600))
	require.NoError(t, m.SendTime(local))
	assert.Equal(t, []string{":SG -01#", ":SC 032024#", ":SL 22:15:05#"}, tr.written)
}

func TestSetLocalDateRefused(t *testing.T) {
	m, _ := newTestMount(t, newScript().on(":SC 010125#", "0#"), nil)

	err := m.SetLocalDate(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestReadSettings(t *testing.T) {
	tr := newScript().
		on(":GVP#", "Avalon#").
		on(":GVN#", "7.4#").
		on(":GVD#", " 2021#").
		on(":X38#", "p2#").
		on(":TTGFh#", "vh1#").
		on(":X42#", "or-025#").
		on(":TTGFr#", "vr0#").
		on(":TTGFs#", "vs0#").
		on(":TTGFd#", "vd1#").
		on(":TTGMX#", "12a12#")
	l := &recordingListener{}
	m, _ := newTestMount(t, tr, l)

	s, err := m.ReadSettings()
	// guide speeds do not answer
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Avalon - 7.4 - 2021", s.Firmware)
	assert.Equal(t, Parked, s.ParkHome)
	assert.False(t, s.HomeSynced)
	assert.True(t, s.ST4)
	assert.True(t, s.Keypad)
	assert.InDelta(t, -0.25, s.TrackingAdjustment, 1e-9)
	assert.Equal(t, MeridianFlipForced, s.MeridianFlip)
	assert.Equal(t, SlewSpeedHigh, s.SlewSpeed)
	assert.Equal(t, ScopeParked, m.Status().State)
	assert.Equal(t, []bool{true}, l.parked)
}
