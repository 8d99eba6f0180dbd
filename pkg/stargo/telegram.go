package stargo

import "fmt"

// MotorState is the power state of the RA and Dec motors.
type MotorState int

const (
	MotorsOff     MotorState = iota // both motors unpowered
	MotorsDecOnly                   // RA off, Dec on
	MotorsRAOnly                    // RA on, Dec off
	MotorsOn                        // both motors powered
)

func (m MotorState) String() string {
	switch m {
	case MotorsOff:
		return "off"
	case MotorsDecOnly:
		return "dec-only"
	case MotorsRAOnly:
		return "ra-only"
	case MotorsOn:
		return "on"
	}
	return fmt.Sprintf("MotorState(%d)", int(m))
}

// TrackMode is the active tracking rate.
type TrackMode int

const (
	TrackSidereal TrackMode = iota
	TrackSolar
	TrackLunar
)

func (t TrackMode) String() string {
	switch t {
	case TrackSidereal:
		return "sidereal"
	case TrackSolar:
		return "solar"
	case TrackLunar:
		return "lunar"
	}
	return fmt.Sprintf("TrackMode(%d)", int(t))
}

// SlewRate is the current slew speed class.
type SlewRate int

const (
	SlewGuide SlewRate = iota
	SlewCentering
	SlewFind
	SlewMax
)

func (s SlewRate) String() string {
	switch s {
	case SlewGuide:
		return "guide"
	case SlewCentering:
		return "centering"
	case SlewFind:
		return "find"
	case SlewMax:
		return "max"
	}
	return fmt.Sprintf("SlewRate(%d)", int(s))
}

// Telegram is a decoded unsolicited motion state frame ":Z1<m><t><s>".
// Each digit is kept raw; Apply decides which ones carry information.
type Telegram struct {
	Motor int // 0 off, 1 Dec only, 2 RA only, 3 both on
	Mode  int // 0 no tracking, 1 lunar, 2 solar, 3 sidereal
	Slew  int // 0 guide, 1 centering, 2 find, 3 max
}

// MotionState holds the three fields that telegrams update.
type MotionState struct {
	Motors    MotorState
	TrackMode TrackMode
	SlewRate  SlewRate
}

// ParseTelegram recognizes a motion state telegram. Frames that do not
// match are command replies.
func ParseTelegram(frame string) (Telegram, bool) {
	if len(frame) < 6 || frame[:3] != ":Z1" {
		return Telegram{}, false
	}
	var digits [3]int
	for i := range digits {
		c := frame[3+i]
		if c < '0' || c > '9' {
			return Telegram{}, false
		}
		digits[i] = int(c - '0')
	}
	return Telegram{Motor: digits[0], Mode: digits[1], Slew: digits[2]}, true
}

// Apply updates the motion state from the telegram. Mode 0 does not clear
// the track mode since there is no "none" tracking rate. Unknown digits
// leave the corresponding field unchanged.
func (t Telegram) Apply(st *MotionState) {
	switch t.Motor {
	case 0:
		st.Motors = MotorsOff
	case 1:
		st.Motors = MotorsDecOnly
	case 2:
		st.Motors = MotorsRAOnly
	case 3:
		st.Motors = MotorsOn
	}

	switch t.Mode {
	case 1:
		st.TrackMode = TrackLunar
	case 2:
		st.TrackMode = TrackSolar
	case 3:
		st.TrackMode = TrackSidereal
	}

	switch t.Slew {
	case 0:
		st.SlewRate = SlewGuide
	case 1:
		st.SlewRate = SlewCentering
	case 2:
		st.SlewRate = SlewFind
	case 3:
		st.SlewRate = SlewMax
	}
}
