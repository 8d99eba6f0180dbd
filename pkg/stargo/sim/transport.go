// Package sim provides a StarGo stand-in that answers commands with basic
// canned replies. Motion completes instantly.
package sim

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stargo/pkg/stargo"
)

// Transport implements stargo.Transport without hardware.
type Transport struct {
	mu     sync.Mutex
	logger log.FieldLogger
	out    []byte
	closed bool

	ra, dec             float64
	targetRA, targetDec float64
	latitude, longitude float64
	parkHome            byte
	motorRA, motorDec   int
	trackMode           int // telegram digit, 3 sidereal
	slewRate            int // telegram digit
	guideRA, guideDec   int
	adjustment          int
	st4, keypadOff      int
	flipOff, flipForced int
	slewCode            int
	pier                byte
}

// New returns a simulated mount that is unparked and tracking.
func New(logger log.FieldLogger) *Transport {
	return &Transport{
		logger:    logger.WithField("component", "sim"),
		ra:        5.5,
		dec:       22.0,
		latitude:  48.0,
		longitude: 11.5,
		parkHome:  '0',
		motorRA:   1,
		trackMode: 3,
		slewRate:  3,
		guideRA:   50,
		guideDec:  50,
		st4:       1,
		slewCode:  9,
		pier:      'W',
	}
}

func (t *Transport) ReadFrame(term byte, wait time.Duration) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", fmt.Errorf("%w: simulator closed", stargo.ErrCommunication)
	}
	i := bytes.IndexByte(t.out, term)
	if i < 0 {
		return "", stargo.ErrNoFrame
	}
	frame := string(t.out[:i+1])
	t.out = t.out[i+1:]
	return frame, nil
}

func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("%w: simulator closed", stargo.ErrCommunication)
	}
	cmd := string(data)
	t.logger.Debugf("Simulating %s", cmd)
	t.handle(cmd)
	return nil
}

func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out = t.out[:0]
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) reply(format string, args ...any) {
	t.out = append(t.out, fmt.Sprintf(format, args...)...)
}

func (t *Transport) telegram() {
	motors := 0
	if t.motorRA != 0 {
		motors = 3
	}
	t.reply(":Z1%d%d%d#", motors, t.trackMode, t.slewRate)
}

func (t *Transport) handle(cmd string) {
	body := strings.TrimSuffix(strings.TrimPrefix(cmd, ":"), "#")
	switch {
	case body == "GW":
		tracking := 'N'
		if t.motorRA == 1 {
			tracking = 'T'
		}
		t.reply("G%c1#", tracking)
	case body == "X590":
		// a southern declination does not fit the unsigned field and comes
		// out with a sign, which the decoder refuses like it does on hardware
		t.reply("%s#", stargo.EncodeRADec(t.ra, t.dec))
	case body == "X34":
		t.reply("m%d%d#", t.motorRA, t.motorDec)
	case body == "X38":
		t.reply("p%c#", t.parkHome)
	case body == "X39":
		t.reply("P%c#", t.pier)
	case body == "X361":
		t.parkHome = '1'
		t.motorRA, t.motorDec = 0, 0
		t.reply("pA#")
		t.telegram()
	case body == "X352":
		t.reply("0#")
	case body == "X362":
		t.parkHome = '2'
		t.motorRA, t.motorDec = 0, 0
		t.reply("pB#")
		t.telegram()
	case body == "X370":
		t.parkHome = '0'
		t.motorRA = 1
		t.reply("p0#")
		t.telegram()
	case strings.HasPrefix(body, "X31"):
		t.parkHome = '1'
		t.reply("0#")
	case strings.HasPrefix(body, "X32"):
		t.reply("0#")
	case body == "X22":
		t.reply("%02db%02d#", t.guideRA, t.guideDec)
	case strings.HasPrefix(body, "X20"):
		t.guideRA = atoi(body[3:])
	case strings.HasPrefix(body, "X21"):
		t.guideDec = atoi(body[3:])
	case body == "X42":
		t.reply("or%+04d#", t.adjustment)
	case strings.HasPrefix(body, "X41"):
		t.adjustment = atoi(body[3:])
	case body == "X122":
		t.motorRA = 1
		t.telegram()
	case body == "X120":
		t.motorRA = 0
		t.telegram()
	case body == "TTGFh":
		t.reply("vh%d#", t.st4)
	case body == "TTGFr":
		t.reply("vr%d#", t.keypadOff)
	case body == "TTGFs":
		t.reply("vs%d#", t.flipOff)
	case body == "TTGFd":
		t.reply("vd%d#", t.flipForced)
	case strings.HasPrefix(body, "TTSF") || strings.HasPrefix(body, "TTRF"):
		t.setFlag(body[4:], body[2] == 'S')
		t.reply("0#")
	case body == "TTGMX":
		t.reply("%02da%02d#", t.slewCode, t.slewCode)
	case strings.HasPrefix(body, "TTMX") && len(body) >= 6:
		t.slewCode = atoi(body[4:6])
		t.reply("0#")
	case body == "GVP":
		t.reply("Avalon#")
	case body == "GVN":
		t.reply("Simulator#")
	case body == "GVD":
		t.reply(" 2024-01-01#")
	case body == "Gt":
		t.reply("%s#", sexagesimal(t.latitude, 2))
	case body == "Gg":
		t.reply("%s#", sexagesimal(t.longitude, 3))
	case strings.HasPrefix(body, "St"):
		t.latitude = parse(body[2:], t.latitude)
		t.reply("1#")
	case strings.HasPrefix(body, "Sg"):
		t.longitude = parse(body[2:], t.longitude)
		t.reply("1#")
	case strings.HasPrefix(body, "Sr"):
		t.targetRA = parse(body[2:], t.targetRA)
		t.reply("1")
	case strings.HasPrefix(body, "Sd"):
		t.targetDec = parse(body[2:], t.targetDec)
		t.reply("1")
	case body == "MS":
		t.ra, t.dec = t.targetRA, t.targetDec
		t.motorRA, t.motorDec = 1, 0
		t.reply("0#")
		t.telegram()
	case body == "CM":
		t.ra, t.dec = t.targetRA, t.targetDec
		t.reply("Coordinates matched#")
	case body == "GR":
		h, m, s := split(t.ra)
		t.reply("%02d:%02d:%02d#", h, m, s)
	case strings.HasPrefix(body, "SC"):
		t.reply("1#")
	case body == "TQ":
		t.trackMode = 3
		t.telegram()
	case body == "TS":
		t.trackMode = 2
		t.telegram()
	case body == "TL":
		t.trackMode = 1
		t.telegram()
	case body == "RS", body == "RM", body == "RC", body == "RG":
		t.slewRate = strings.Index("GCMS", body[1:])
	case body == "Q":
		t.motorDec = 0
		t.telegram()
	default:
		// motion, pulse, time and precision commands have no reply
	}
}

func (t *Transport) setFlag(name string, set bool) {
	v := 0
	if set {
		v = 1
	}
	switch name {
	case "h":
		t.st4 = v
	case "r":
		t.keypadOff = v
	case "s":
		t.flipOff = v
	case "d":
		t.flipForced = v
	}
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func parse(s string, fallback float64) float64 {
	v, err := stargo.ParseSexagesimal(s)
	if err != nil {
		return fallback
	}
	return v
}

func split(v float64) (d, m, s int) {
	total := int(math.Round(math.Abs(v) * 3600))
	return total / 3600, total / 60 % 60, total % 60
}

func sexagesimal(v float64, width int) string {
	d, m, s := split(v)
	sign := '+'
	if v < 0 {
		sign = '-'
	}
	return fmt.Sprintf("%c%0*d*%02d:%02d", sign, width, d, m, s)
}
