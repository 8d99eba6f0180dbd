package stargo

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Operation is a logical mount operation. Every wire exchange belongs to
// exactly one operation.
type Operation int

const (
	OpAlignmentStatus Operation = iota
	OpEqCoordinates
	OpMotorStatus
	OpParkHomeStatus
	OpGotoHome
	OpSetParkPosition
	OpPark
	OpUnpark
	OpSyncHome
	OpSetLST
	OpPierSide
	OpGuideSpeeds
	OpSetGuideSpeedRA
	OpSetGuideSpeedDec
	OpTrackingAdjustment
	OpSetTrackingAdjustment
	OpST4Status
	OpSetST4
	OpKeypadStatus
	OpSetKeypad
	OpSlewSpeedMode
	OpSetSlewSpeedMode
	OpMeridianFlipDisabled
	OpMeridianFlipForced
	OpSetMeridianFlipDisabled
	OpSetMeridianFlipForced
	OpManufacturer
	OpFirmwareVersion
	OpFirmwareDate
	OpSiteLatitude
	OpSiteLongitude
	OpSetSiteLatitude
	OpSetSiteLongitude
	OpSetTargetRA
	OpSetTargetDec
	OpGoto
	OpSync
	OpMoveStart
	OpMoveStop
	OpPulseGuide
	OpAbort
	OpSetTrackMode
	OpSetTracking
	OpSetSlewRate
	OpGetRA
	OpTogglePrecision
	OpSetLocalDate
	OpSetLocalTime
	OpSetUTCOffset
)

var operationNames = map[Operation]string{
	OpAlignmentStatus:         "alignment_status",
	OpEqCoordinates:           "eq_coordinates",
	OpMotorStatus:             "motor_status",
	OpParkHomeStatus:          "park_home_status",
	OpGotoHome:                "goto_home",
	OpSetParkPosition:         "set_park_position",
	OpPark:                    "park",
	OpUnpark:                  "unpark",
	OpSyncHome:                "sync_home",
	OpSetLST:                  "set_lst",
	OpPierSide:                "pier_side",
	OpGuideSpeeds:             "guide_speeds",
	OpSetGuideSpeedRA:         "set_guide_speed_ra",
	OpSetGuideSpeedDec:        "set_guide_speed_dec",
	OpTrackingAdjustment:      "tracking_adjustment",
	OpSetTrackingAdjustment:   "set_tracking_adjustment",
	OpST4Status:               "st4_status",
	OpSetST4:                  "set_st4",
	OpKeypadStatus:            "keypad_status",
	OpSetKeypad:               "set_keypad",
	OpSlewSpeedMode:           "slew_speed_mode",
	OpSetSlewSpeedMode:        "set_slew_speed_mode",
	OpMeridianFlipDisabled:    "meridian_flip_disabled",
	OpMeridianFlipForced:      "meridian_flip_forced",
	OpSetMeridianFlipDisabled: "set_meridian_flip_disabled",
	OpSetMeridianFlipForced:   "set_meridian_flip_forced",
	OpManufacturer:            "manufacturer",
	OpFirmwareVersion:         "firmware_version",
	OpFirmwareDate:            "firmware_date",
	OpSiteLatitude:            "site_latitude",
	OpSiteLongitude:           "site_longitude",
	OpSetSiteLatitude:         "set_site_latitude",
	OpSetSiteLongitude:        "set_site_longitude",
	OpSetTargetRA:             "set_target_ra",
	OpSetTargetDec:            "set_target_dec",
	OpGoto:                    "goto",
	OpSync:                    "sync",
	OpMoveStart:               "move_start",
	OpMoveStop:                "move_stop",
	OpPulseGuide:              "pulse_guide",
	OpAbort:                   "abort",
	OpSetTrackMode:            "set_track_mode",
	OpSetTracking:             "set_tracking",
	OpSetSlewRate:             "set_slew_rate",
	OpGetRA:                   "get_ra",
	OpTogglePrecision:         "toggle_precision",
	OpSetLocalDate:            "set_local_date",
	OpSetLocalTime:            "set_local_time",
	OpSetUTCOffset:            "set_utc_offset",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

type replyShape int

const (
	replyNone     replyShape = iota // nothing is read back
	replyOptional                   // an acknowledgement may arrive; its absence is not an error
	replyRequired                   // the reply carries data
)

// entry describes one wire exchange. A format without verbs is sent as is.
type entry struct {
	format string
	term   byte
	wait   time.Duration
	shape  replyShape
}

func required(format string) entry {
	return entry{format: format, term: '#', wait: DefaultWait, shape: replyRequired}
}

func optional(format string) entry {
	return entry{format: format, term: '#', wait: DefaultWait, shape: replyOptional}
}

func noReply(format string) entry {
	return entry{format: format, term: '#', wait: NoReply, shape: replyNone}
}

var catalog = map[Operation]entry{
	OpAlignmentStatus:         required(":GW#"),
	OpEqCoordinates:           required(":X590#"),
	OpMotorStatus:             required(":X34#"),
	OpParkHomeStatus:          required(":X38#"),
	OpGotoHome:                required(":X361#"),
	OpSetParkPosition:         required(":X352#"),
	OpPark:                    required(":X362#"),
	OpUnpark:                  required(":X370#"),
	OpSyncHome:                required(":X31%s#"),
	OpSetLST:                  optional(":X32%s#"),
	OpPierSide:                required(":X39#"),
	OpGuideSpeeds:             required(":X22#"),
	OpSetGuideSpeedRA:         noReply(":X20%02d#"),
	OpSetGuideSpeedDec:        noReply(":X21%02d#"),
	OpTrackingAdjustment:      required(":X42#"),
	OpSetTrackingAdjustment:   noReply("%s"),
	OpST4Status:               required(":TTGFh#"),
	OpSetST4:                  optional("%s"),
	OpKeypadStatus:            required(":TTGFr#"),
	OpSetKeypad:               optional("%s"),
	OpSlewSpeedMode:           required(":TTGMX#"),
	OpSetSlewSpeedMode:        optional(":TTMX%02d%02d#"),
	OpMeridianFlipDisabled:    required(":TTGFs#"),
	OpMeridianFlipForced:      required(":TTGFd#"),
	OpSetMeridianFlipDisabled: optional("%s"),
	OpSetMeridianFlipForced:   optional("%s"),
	OpManufacturer:            required(":GVP#"),
	OpFirmwareVersion:         required(":GVN#"),
	OpFirmwareDate:            required(":GVD#"),
	OpSiteLatitude:            required(":Gt#"),
	OpSiteLongitude:           required(":Gg#"),
	OpSetSiteLatitude:         optional("%s"),
	OpSetSiteLongitude:        optional("%s"),
	OpSetTargetRA:             {format: "%s", term: '1', wait: DefaultWait, shape: replyOptional},
	OpSetTargetDec:            {format: "%s", term: '1', wait: DefaultWait, shape: replyOptional},
	OpGoto:                    optional(":MS#"),
	OpSync:                    optional(":CM#"),
	OpMoveStart:               noReply(":M%s#"),
	OpMoveStop:                noReply(":Q%s#"),
	OpPulseGuide:              noReply(":Mg%s%04d#"),
	OpAbort:                   noReply(":Q#"),
	OpSetTrackMode:            noReply("%s"),
	OpSetTracking:             noReply("%s"),
	OpSetSlewRate:             noReply("%s"),
	OpGetRA:                   required(":GR#"),
	OpTogglePrecision:         noReply(":U#"),
	OpSetLocalDate:            optional(":SC %02d%02d%02d#"),
	OpSetLocalTime:            noReply(":SL %02d:%02d:%02d#"),
	OpSetUTCOffset:            noReply(":SG %+03d#"),
}

// Command returns the wire command of op for the given arguments.
func Command(op Operation, args ...any) (string, error) {
	e, ok := catalog[op]
	if !ok {
		return "", fmt.Errorf("%w: unknown operation %v", ErrRejected, op)
	}
	if len(args) == 0 {
		return e.format, nil
	}
	return fmt.Sprintf(e.format, args...), nil
}

// query runs one catalog exchange. Callers hold m.mu.
func (m *Mount) query(op Operation, args ...any) (string, error) {
	cmd, err := Command(op, args...)
	if err != nil {
		return "", err
	}
	e := catalog[op]

	start := time.Now()
	reply, err := m.engine.Send(cmd, e.term, e.wait)
	if errors.Is(err, ErrTimeout) && e.shape == replyOptional {
		m.logger.Debugf("No acknowledgement for %s", op)
		err = nil
	}
	m.metrics.command(op, start, err)
	if err != nil {
		m.logger.Errorf("Operation %s failed: %v", op, err)
		return "", err
	}
	return reply, nil
}

func (m *Mount) parseFailed(op Operation, reply string) error {
	m.metrics.parseFailure(op)
	m.logger.Errorf("Unexpected %s response %q", op, reply)
	return fmt.Errorf("%w: %s response %q", ErrParse, op, reply)
}

// AlignmentStatus is the reply of the standard LX200 :GW# query.
type AlignmentStatus struct {
	MountType byte // A alt-az, P equatorial, G german equatorial
	Tracking  bool
	Points    int
}

// Handshake verifies that a StarGo answers on the line.
func (m *Mount) Handshake() (AlignmentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alignmentStatus()
}

func (m *Mount) alignmentStatus() (AlignmentStatus, error) {
	reply, err := m.query(OpAlignmentStatus)
	if err != nil {
		return AlignmentStatus{}, err
	}
	if len(reply) < 3 || reply[2] < '0' || reply[2] > '9' {
		return AlignmentStatus{}, m.parseFailed(OpAlignmentStatus, reply)
	}
	return AlignmentStatus{
		MountType: reply[0],
		Tracking:  reply[1] == 'T',
		Points:    int(reply[2] - '0'),
	}, nil
}

// EqCoordinates reads the current RA (hours) and Dec (degrees).
func (m *Mount) EqCoordinates() (ra, dec float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eqCoordinates()
}

func (m *Mount) eqCoordinates() (ra, dec float64, err error) {
	reply, err := m.query(OpEqCoordinates)
	if err != nil {
		return 0, 0, err
	}
	ra, dec, err = DecodeRADec(reply)
	if err != nil {
		return 0, 0, m.parseFailed(OpEqCoordinates, reply)
	}
	return ra, dec, nil
}

// MotorStatus returns the RA and Dec motor codes of :X34#. 0 is stopped,
// 1 tracking, 2-5 accelerating, decelerating or approaching a target.
func (m *Mount) MotorStatus() (x, y int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.motorStatus()
}

func (m *Mount) motorStatus() (x, y int, err error) {
	reply, err := m.query(OpMotorStatus)
	if err != nil {
		return 0, 0, err
	}
	if len(reply) < 3 || reply[0] != 'm' || !isDigit(reply[1]) || !isDigit(reply[2]) {
		return 0, 0, m.parseFailed(OpMotorStatus, reply)
	}
	return int(reply[1] - '0'), int(reply[2] - '0'), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// ParkHomeStatus queries the park/home phase.
func (m *Mount) ParkHomeStatus() (ParkHomeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parkHomeStatus()
}

func (m *Mount) parkHomeStatus() (ParkHomeState, error) {
	reply, err := m.query(OpParkHomeStatus)
	if err != nil {
		return 0, err
	}
	if len(reply) < 2 || reply[0] != 'p' {
		return 0, m.parseFailed(OpParkHomeStatus, reply)
	}
	switch reply[1] {
	case '0':
		return Unparked, nil
	case '1':
		return AtHome, nil
	case '2':
		return Parked, nil
	case 'A':
		return SlewingHome, nil
	case 'B':
		return SlewingPark, nil
	}
	return 0, m.parseFailed(OpParkHomeStatus, reply)
}

// expect runs op and requires the reply to equal want.
func (m *Mount) expect(op Operation, want string) error {
	reply, err := m.query(op)
	if err != nil {
		return err
	}
	if reply != want {
		return m.parseFailed(op, reply)
	}
	return nil
}

// GotoHome slews to the home position. Completion is detected by the poll
// cycle once both motors stop.
func (m *Mount) GotoHome() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expect(OpGotoHome, "pA"); err != nil {
		return err
	}
	m.status.State = ScopeSlewing
	m.gotoHomePending = true
	m.status.GotoHomePending = true
	m.logger.Info("Slewing to home position...")
	return nil
}

// SetParkPosition stores the current position as park position.
func (m *Mount) SetParkPosition() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply, err := m.query(OpSetParkPosition)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(reply, "0") {
		return m.parseFailed(OpSetParkPosition, reply)
	}
	return nil
}

// Park starts the slew to the park position.
func (m *Mount) Park() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expect(OpPark, "pB"); err != nil {
		return err
	}
	m.status.State = ScopeParking
	m.logger.Info("Parking mount...")
	return nil
}

// Unpark sets the local sidereal time from the mount's site longitude and
// releases the park state.
func (m *Mount) Unpark() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	longitude, err := m.siteLongitude()
	if err != nil {
		return err
	}
	if err := m.setLocalSiderealTime(longitude); err != nil {
		return err
	}
	if err := m.expect(OpUnpark, "p0"); err != nil {
		return err
	}
	m.logger.Info("Unparking mount...")
	return nil
}

// SyncHome declares the current position to be the home position.
func (m *Mount) SyncHome() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	longitude, err := m.siteLongitude()
	if err != nil {
		return err
	}
	lst := EncodeLST(LocalSiderealTime(m.now(), longitude))
	reply, err := m.query(OpSyncHome, lst)
	if err != nil {
		return err
	}
	if reply == "" {
		return m.parseFailed(OpSyncHome, reply)
	}
	m.homeSynced = true
	m.logger.Info("Synching home position succeeded.")
	return nil
}

// SetLocalSiderealTime sends the sidereal time for longitude at the current instant.
func (m *Mount) SetLocalSiderealTime(longitude float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocalSiderealTime(longitude)
}

func (m *Mount) setLocalSiderealTime(longitude float64) error {
	lst := LocalSiderealTime(m.now(), longitude)
	m.logger.Debugf("Current local sidereal time = %f", lst)
	_, err := m.query(OpSetLST, EncodeLST(lst))
	return err
}

// PierSide queries the side of pier. The mount reports the side the
// telescope points to, so 'W' maps to east and 'E' to west.
func (m *Mount) PierSide() (PierSide, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pierSide()
}

func (m *Mount) pierSide() (PierSide, error) {
	reply, err := m.query(OpPierSide)
	if err != nil {
		return PierUnknown, err
	}
	if len(reply) < 2 || reply[0] != 'P' {
		return PierUnknown, m.parseFailed(OpPierSide, reply)
	}
	switch reply[1] {
	case 'W':
		return PierEast, nil
	case 'E':
		return PierWest, nil
	}
	return PierUnknown, nil
}

// GuideSpeeds returns the RA and Dec guide rates as fractions of sidereal.
func (m *Mount) GuideSpeeds() (ra, dec float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guideSpeeds()
}

func (m *Mount) guideSpeeds() (ra, dec float64, err error) {
	reply, err := m.query(OpGuideSpeeds)
	if err != nil {
		return 0, 0, err
	}
	raField, decField, ok := strings.Cut(reply, "b")
	if !ok {
		return 0, 0, m.parseFailed(OpGuideSpeeds, reply)
	}
	r, err := parseDigits(strings.TrimSpace(raField))
	if err != nil {
		return 0, 0, m.parseFailed(OpGuideSpeeds, reply)
	}
	if len(decField) > 2 {
		decField = decField[:2]
	}
	d, err := parseDigits(strings.TrimSpace(decField))
	if err != nil {
		return 0, 0, m.parseFailed(OpGuideSpeeds, reply)
	}
	return PercentToGuideRate(r), PercentToGuideRate(d), nil
}

// SetGuideSpeeds sets the RA and Dec guide rates, given as fractions of sidereal.
func (m *Mount) SetGuideSpeeds(ra, dec float64) error {
	raPct, err := GuideRateToPercent(ra)
	if err != nil {
		return err
	}
	decPct, err := GuideRateToPercent(dec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.query(OpSetGuideSpeedRA, raPct); err != nil {
		return err
	}
	m.logger.Infof("Setting RA speed to %d%%.", raPct)
	m.sleep(100 * time.Millisecond)
	if _, err := m.query(OpSetGuideSpeedDec, decPct); err != nil {
		return err
	}
	m.logger.Infof("Setting DEC speed to %d%%.", decPct)
	return nil
}

// TrackingAdjustment returns the RA tracking correction in percent.
func (m *Mount) TrackingAdjustment() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trackingAdjustment()
}

func (m *Mount) trackingAdjustment() (float64, error) {
	reply, err := m.query(OpTrackingAdjustment)
	if err != nil {
		return 0, err
	}
	v, err := DecodeTrackingAdjustment(reply)
	if err != nil {
		return 0, m.parseFailed(OpTrackingAdjustment, reply)
	}
	return v, nil
}

// SetTrackingAdjustment corrects the RA tracking speed by percent, within [-5, 5].
// Out of range values are rejected before anything is sent.
func (m *Mount) SetTrackingAdjustment(percent float64) error {
	cmd, err := EncodeTrackingAdjustment(percent)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.query(OpSetTrackingAdjustment, cmd); err != nil {
		return err
	}
	m.status.TrackingAdjustment = percent
	if percent == 0 {
		m.logger.Info("RA tracking adjustment cleared.")
	} else {
		m.logger.Infof("RA tracking adjustment to %+0.2f%% succeeded.", percent)
	}
	return nil
}

// flag reads a "v<c><digit>" switch status.
func (m *Mount) flag(op Operation, prefix string) (int, error) {
	reply, err := m.query(op)
	if err != nil {
		return 0, err
	}
	if len(reply) < len(prefix)+1 || !strings.HasPrefix(reply, prefix) || !isDigit(reply[len(prefix)]) {
		return 0, m.parseFailed(op, reply)
	}
	return int(reply[len(prefix)] - '0'), nil
}

// ST4Enabled reports whether the ST4 guide port is enabled.
func (m *Mount) ST4Enabled() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.flag(OpST4Status, "vh")
	return v == 1, err
}

// SetST4Enabled enables or disables the ST4 guide port.
func (m *Mount) SetST4Enabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := ":TTRFh#"
	if enabled {
		cmd = ":TTSFh#"
	}
	if _, err := m.query(OpSetST4, cmd); err != nil {
		return err
	}
	m.logger.Infof("ST4 port enabled: %v", enabled)
	return nil
}

// KeypadEnabled reports whether the hand controller is enabled. The firmware
// reports 0 when it is.
func (m *Mount) KeypadEnabled() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.flag(OpKeypadStatus, "vr")
	return v == 0, err
}

// SetKeypadEnabled enables or disables the hand controller. Enabling resets
// the firmware flag.
func (m *Mount) SetKeypadEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := ":TTSFr#"
	if enabled {
		cmd = ":TTRFr#"
	}
	if _, err := m.query(OpSetKeypad, cmd); err != nil {
		return err
	}
	m.logger.Infof("Keypad port enabled: %v", enabled)
	return nil
}

// SlewSpeedMode is the system slew speed preset.
type SlewSpeedMode int

const (
	SlewSpeedLow SlewSpeedMode = iota
	SlewSpeedMedium
	SlewSpeedFast
	SlewSpeedHigh // only with 15V or 18V supply
)

var slewSpeedCodes = [...]int{6, 8, 9, 12}

func (s SlewSpeedMode) String() string {
	switch s {
	case SlewSpeedLow:
		return "low"
	case SlewSpeedMedium:
		return "medium"
	case SlewSpeedFast:
		return "fast"
	case SlewSpeedHigh:
		return "high"
	}
	return fmt.Sprintf("SlewSpeedMode(%d)", int(s))
}

// DecodeSlewSpeedMode decodes the :TTGMX# reply "xxayy". Only the RA code
// selects the preset.
func DecodeSlewSpeedMode(reply string) (SlewSpeedMode, error) {
	xx, _, ok := strings.Cut(reply, "a")
	if !ok {
		return 0, fmt.Errorf("%w: slew speed response %q", ErrParse, reply)
	}
	code, err := parseDigits(xx)
	if err != nil {
		return 0, fmt.Errorf("%w: slew speed response %q", ErrParse, reply)
	}
	for i, c := range slewSpeedCodes {
		if c == code {
			return SlewSpeedMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: slew speed response %q", ErrParse, reply)
}

// SlewSpeedMode queries the system slew speed preset.
func (m *Mount) SlewSpeedMode() (SlewSpeedMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply, err := m.query(OpSlewSpeedMode)
	if err != nil {
		return 0, err
	}
	mode, err := DecodeSlewSpeedMode(reply)
	if err != nil {
		return 0, m.parseFailed(OpSlewSpeedMode, reply)
	}
	return mode, nil
}

// SetSlewSpeedMode selects the system slew speed preset.
func (m *Mount) SetSlewSpeedMode(mode SlewSpeedMode) error {
	if mode < SlewSpeedLow || mode > SlewSpeedHigh {
		return fmt.Errorf("%w: slew speed mode %d", ErrRejected, int(mode))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	code := slewSpeedCodes[mode]
	if _, err := m.query(OpSetSlewSpeedMode, code, code); err != nil {
		return err
	}
	if mode == SlewSpeedHigh {
		m.logger.Warn("System slew rate set to high. ONLY AVAILABLE FOR 15V or 18V!")
	} else {
		m.logger.Infof("System slew rate set to %s.", mode)
	}
	return nil
}

// MeridianFlipMode is the meridian flip policy.
type MeridianFlipMode int

const (
	MeridianFlipAuto MeridianFlipMode = iota
	MeridianFlipDisabled
	MeridianFlipForced
)

func (f MeridianFlipMode) String() string {
	switch f {
	case MeridianFlipAuto:
		return "auto"
	case MeridianFlipDisabled:
		return "disabled"
	case MeridianFlipForced:
		return "forced"
	}
	return fmt.Sprintf("MeridianFlipMode(%d)", int(f))
}

// MeridianFlipMode queries the meridian flip policy.
func (m *Mount) MeridianFlipMode() (MeridianFlipMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	disabled, err := m.flag(OpMeridianFlipDisabled, "vs")
	if err != nil {
		return 0, err
	}
	forced, err := m.flag(OpMeridianFlipForced, "vd")
	if err != nil {
		return 0, err
	}
	switch {
	case disabled == 1:
		return MeridianFlipDisabled, nil
	case forced == 0:
		return MeridianFlipAuto, nil
	default:
		return MeridianFlipForced, nil
	}
}

// SetMeridianFlipMode sets the meridian flip policy.
func (m *Mount) SetMeridianFlipMode(mode MeridianFlipMode) error {
	if mode < MeridianFlipAuto || mode > MeridianFlipForced {
		return fmt.Errorf("%w: meridian flip mode %d", ErrRejected, int(mode))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	disable := ":TTRFs#"
	if mode == MeridianFlipDisabled {
		disable = ":TTSFs#"
	}
	force := ":TTRFd#"
	if mode == MeridianFlipForced {
		force = ":TTSFd#"
	}
	if _, err := m.query(OpSetMeridianFlipDisabled, disable); err != nil {
		return err
	}
	if _, err := m.query(OpSetMeridianFlipForced, force); err != nil {
		return err
	}

	if mode == MeridianFlipAuto {
		m.logger.Info("Meridian flip enabled.")
	} else {
		m.logger.Warnf("Meridian flip %s. BE CAREFUL, THIS MAY CAUSE DAMAGE TO YOUR MOUNT!", strings.ToUpper(mode.String()))
	}
	return nil
}

// FirmwareInfo returns "<manufacturer> - <version> - <date>".
func (m *Mount) FirmwareInfo() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	manufacturer, err := m.query(OpManufacturer)
	if err != nil {
		return "", err
	}
	version, err := m.query(OpFirmwareVersion)
	if err != nil {
		return "", err
	}
	date, err := m.query(OpFirmwareDate)
	if err != nil {
		return "", err
	}
	// the date comes with a leading separator
	if len(date) > 0 {
		date = date[1:]
	}
	return manufacturer + " - " + version + " - " + date, nil
}

// SiteLatitude reads the site latitude in degrees.
func (m *Mount) SiteLatitude() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.siteLatitude()
}

func (m *Mount) siteLatitude() (float64, error) {
	reply, err := m.query(OpSiteLatitude)
	if err != nil {
		return 0, err
	}
	v, err := ParseSexagesimal(reply)
	if err != nil {
		return 0, m.parseFailed(OpSiteLatitude, reply)
	}
	return v, nil
}

// SiteLongitude reads the site longitude in degrees, east positive.
func (m *Mount) SiteLongitude() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.siteLongitude()
}

func (m *Mount) siteLongitude() (float64, error) {
	reply, err := m.query(OpSiteLongitude)
	if err != nil {
		return 0, err
	}
	v, err := ParseSexagesimal(reply)
	if err != nil {
		return 0, m.parseFailed(OpSiteLongitude, reply)
	}
	return v, nil
}

// SetSiteLatitude sends the site latitude in degrees.
func (m *Mount) SetSiteLatitude(latitude float64) error {
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("%w: latitude %f", ErrRejected, latitude)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.query(OpSetSiteLatitude, EncodeSiteLatitude(latitude))
	return err
}

// SetSiteLongitude sends the site longitude in degrees.
func (m *Mount) SetSiteLongitude(longitude float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.query(OpSetSiteLongitude, EncodeSiteLongitude(longitude))
	return err
}

// UpdateLocation sends longitude and latitude, then the matching local
// sidereal time.
func (m *Mount) UpdateLocation(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("%w: latitude %f", ErrRejected, latitude)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.query(OpSetSiteLongitude, EncodeSiteLongitude(longitude)); err != nil {
		return err
	}
	if _, err := m.query(OpSetSiteLatitude, EncodeSiteLatitude(latitude)); err != nil {
		return err
	}
	if err := m.setLocalSiderealTime(NormalizeLongitude(longitude)); err != nil {
		return err
	}
	m.logger.Infof("Site location updated to lat %.4f long %.4f", latitude, longitude)
	return nil
}

// SendScopeLocation reads the site stored in the controller and sets the
// sidereal time for its longitude. It returns the site.
func (m *Mount) SendScopeLocation() (latitude, longitude float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latitude, err = m.siteLatitude()
	if err != nil {
		return 0, 0, err
	}
	longitude, err = m.siteLongitude()
	if err != nil {
		return 0, 0, err
	}
	m.logger.Debugf("Mount controller latitude %f longitude %f", latitude, longitude)
	if err := m.setLocalSiderealTime(longitude); err != nil {
		return 0, 0, err
	}
	return latitude, longitude, nil
}

func validCoords(ra, dec float64) error {
	if ra < 0 || ra >= 24 || dec < -90 || dec > 90 {
		return fmt.Errorf("%w: coordinates ra %f dec %f", ErrRejected, ra, dec)
	}
	return nil
}

func (m *Mount) setObjectCoords(ra, dec float64) error {
	if _, err := m.query(OpSetTargetRA, EncodeTargetRA(ra)); err != nil {
		return err
	}
	_, err := m.query(OpSetTargetDec, EncodeTargetDec(dec))
	return err
}

// Goto slews to ra (hours) and dec (degrees). A running slew is aborted first.
func (m *Mount) Goto(ra, dec float64) error {
	if err := validCoords(ra, dec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State == ScopeSlewing {
		if err := m.abort(); err != nil {
			return err
		}
		m.sleep(100 * time.Millisecond)
	}
	if err := m.setObjectCoords(ra, dec); err != nil {
		return err
	}
	if _, err := m.query(OpGoto); err != nil {
		return err
	}
	m.status.State = ScopeSlewing
	m.logger.Infof("Slewing to RA %s Dec %s", EncodeTargetRA(ra), EncodeTargetDec(dec))
	return nil
}

// Sync declares the current position to be ra/dec.
func (m *Mount) Sync(ra, dec float64) error {
	if err := validCoords(ra, dec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setObjectCoords(ra, dec); err != nil {
		return err
	}
	if _, err := m.query(OpSync); err != nil {
		return err
	}
	m.status.RA, m.status.Dec = ra, dec
	m.logger.Info("Synchronization successful.")
	return nil
}

// Abort stops any motion and cancels pending guide pulses.
func (m *Mount) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abort()
}

func (m *Mount) abort() error {
	if _, err := m.query(OpAbort); err != nil {
		return err
	}
	if m.guider.busy() {
		m.logger.Info("Guide aborted.")
	}
	m.guider.cancel(AxisNS)
	m.guider.cancel(AxisWE)
	m.guider.moving[AxisNS] = false
	m.guider.moving[AxisWE] = false
	return nil
}

// SetTrackMode selects the tracking rate.
func (m *Mount) SetTrackMode(mode TrackMode) error {
	var cmd string
	switch mode {
	case TrackSidereal:
		cmd = ":TQ#"
	case TrackSolar:
		cmd = ":TS#"
	case TrackLunar:
		cmd = ":TL#"
	default:
		return fmt.Errorf("%w: track mode %d", ErrRejected, int(mode))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.query(OpSetTrackMode, cmd); err != nil {
		return err
	}
	m.motion.TrackMode = mode
	m.logger.Infof("Tracking mode set to %s.", mode)
	return nil
}

// SetTracking switches tracking on or off.
func (m *Mount) SetTracking(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := ":X120#"
	if enabled {
		cmd = ":X122#"
	}
	if _, err := m.query(OpSetTracking, cmd); err != nil {
		return err
	}
	m.logger.Infof("Tracking enabled: %v", enabled)
	return nil
}

// SetSlewRate selects the slew speed class for manual motion.
func (m *Mount) SetSlewRate(rate SlewRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setSlewRate(rate)
}

func (m *Mount) setSlewRate(rate SlewRate) error {
	var cmd string
	switch rate {
	case SlewMax:
		cmd = ":RS#"
	case SlewFind:
		cmd = ":RM#"
	case SlewCentering:
		cmd = ":RC#"
	case SlewGuide:
		cmd = ":RG#"
	default:
		return fmt.Errorf("%w: slew rate %d", ErrRejected, int(rate))
	}
	if _, err := m.query(OpSetSlewRate, cmd); err != nil {
		return err
	}
	m.motion.SlewRate = rate
	return nil
}

// CoordinateFormat is the precision of the standard LX200 coordinate replies.
type CoordinateFormat int

const (
	FormatShort CoordinateFormat = iota
	FormatLong
	FormatLonger
)

func (f CoordinateFormat) String() string {
	switch f {
	case FormatShort:
		return "short"
	case FormatLong:
		return "long"
	case FormatLonger:
		return "longer"
	}
	return fmt.Sprintf("CoordinateFormat(%d)", int(f))
}

func lowPrecision(reply string) bool {
	return len(reply) <= 5 || reply[5] == '.'
}

// CheckEquatorialFormat probes the :GR# precision and switches a low
// precision controller to high precision.
func (m *Mount) CheckEquatorialFormat() (CoordinateFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply, err := m.query(OpGetRA)
	if err != nil {
		return FormatLong, err
	}
	if lowPrecision(reply) {
		m.logger.Info("Detected low precision format, attempting to switch to high precision.")
		if _, err := m.query(OpTogglePrecision); err != nil {
			return FormatShort, err
		}
		if reply, err = m.query(OpGetRA); err != nil {
			return FormatShort, err
		}
	}

	switch {
	case lowPrecision(reply):
		return FormatShort, nil
	case len(reply) > 8 && reply[8] == '.':
		return FormatLonger, nil
	default:
		return FormatLong, nil
	}
}

// SetLocalDate sends the local calendar date. The controller answers '0'
// when it refuses the date.
func (m *Mount) SetLocalDate(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply, err := m.query(OpSetLocalDate, int(t.Month()), t.Day(), t.Year()%100)
	if err != nil {
		return err
	}
	if strings.HasPrefix(reply, "0") {
		return fmt.Errorf("%w: local date %s", ErrRejected, t.Format("2006-01-02"))
	}
	return nil
}

// SetLocalTime sends the local time of day.
func (m *Mount) SetLocalTime(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.query(OpSetLocalTime, t.Hour(), t.Minute(), t.Second())
	return err
}

// SetUTCOffset sends the offset of local time to UTC in hours. The
// controller expects the LX200 sign convention, i.e. hours to add to local
// time to get UTC.
func (m *Mount) SetUTCOffset(hours float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.query(OpSetUTCOffset, int(-hours))
	return err
}

// SendTime sends the UTC offset, local date and local time of t.
func (m *Mount) SendTime(t time.Time) error {
	_, offset := t.Zone()
	if err := m.SetUTCOffset(float64(offset) / 3600.0); err != nil {
		return err
	}
	if err := m.SetLocalDate(t); err != nil {
		return err
	}
	return m.SetLocalTime(t)
}
