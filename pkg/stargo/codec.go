package stargo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	maxTrackingAdjustment = 5.0 // percent, both directions
	maxGuidePercent       = 100
)

// sexComponents splits an absolute value into degree (or hour), minute and
// second parts. Seconds are rounded and carried into minutes and degrees.
func sexComponents(value float64) (d, m, s int, negative bool) {
	negative = value < 0
	abs := math.Abs(value)
	d = int(abs)
	m = int((abs - float64(d)) * 60.0)
	s = int(math.Round(((abs-float64(d))*60.0 - float64(m)) * 60.0))
	if s == 60 {
		s = 0
		m++
	}
	if m == 60 {
		m = 0
		d++
	}
	return d, m, s, negative
}

// ParseSexagesimal decodes strings like "+48*07:32", "-011:34:50", "12:30.5"
// or "05h30m10s" into a decimal value. Missing trailing fields count as zero.
func ParseSexagesimal(text string) (float64, error) {
	str := strings.TrimSpace(strings.TrimSuffix(text, "#"))
	if str == "" {
		return 0, fmt.Errorf("%w: empty sexagesimal value", ErrParse)
	}

	negative := false
	switch str[0] {
	case '-':
		negative = true
		str = str[1:]
	case '+':
		str = str[1:]
	}

	// LX200 controllers send the degree sign as the single byte 0xDF
	str = strings.ReplaceAll(str, "\xdf", ":")

	fields := strings.FieldsFunc(str, func(r rune) bool {
		switch r {
		case ':', '*', '\'', '"', ' ', 'h', 'm', 's', '°':
			return true
		}
		return false
	})
	if len(fields) == 0 || len(fields) > 3 {
		return 0, fmt.Errorf("%w: bad sexagesimal value %q", ErrParse, text)
	}

	value := 0.0
	scale := 1.0
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: bad sexagesimal value %q", ErrParse, text)
		}
		value += v / scale
		scale *= 60
	}

	if negative {
		value = -value
	}
	return value, nil
}

// NormalizeLongitude maps a longitude into (-180, 180].
func NormalizeLongitude(longitude float64) float64 {
	if longitude > 180 {
		longitude -= 360
	}
	if longitude < -180 {
		longitude += 360
	}
	return longitude
}

// EncodeSiteLongitude builds the :Sg command. Western (negative) longitudes
// use a 4 character signed degree field, eastern ones an explicit '+'.
func EncodeSiteLongitude(longitude float64) string {
	d, m, s, negative := sexComponents(NormalizeLongitude(longitude))
	if negative {
		return fmt.Sprintf(":Sg-%03d*%02d:%02d#", d, m, s)
	}
	return fmt.Sprintf(":Sg+%03d*%02d:%02d#", d, m, s)
}

// EncodeSiteLatitude builds the :St command.
func EncodeSiteLatitude(latitude float64) string {
	d, m, s, negative := sexComponents(latitude)
	sign := '+'
	if negative {
		sign = '-'
	}
	return fmt.Sprintf(":St%c%02d*%02d:%02d#", sign, d, m, s)
}

// EncodeTargetRA builds the :Sr command for a right ascension in hours.
func EncodeTargetRA(ra float64) string {
	h, m, s, _ := sexComponents(ra)
	return fmt.Sprintf(":Sr%02d:%02d:%02d#", h, m, s)
}

// EncodeTargetDec builds the :Sd command for a declination in degrees.
// The sign is always written so that -0*30' keeps its sign.
func EncodeTargetDec(dec float64) string {
	d, m, s, negative := sexComponents(dec)
	sign := '+'
	if negative {
		sign = '-'
	}
	return fmt.Sprintf(":Sd%c%02d*%02d:%02d#", sign, d, m, s)
}

// EncodeLST formats a local sidereal time in hours as HHMMSS.
func EncodeLST(lst float64) string {
	lst = math.Mod(lst, 24)
	if lst < 0 {
		lst += 24
	}
	h, m, s, _ := sexComponents(lst)
	if h == 24 {
		h = 0
	}
	return fmt.Sprintf("%02d%02d%02d", h, m, s)
}

// DecodeRADec decodes the :X590# reply "RD<8 digits RA><8 digits Dec>".
// RA is in micro-hours, Dec in 1e-5 degrees.
func DecodeRADec(reply string) (ra, dec float64, err error) {
	if !strings.HasPrefix(reply, "RD") || len(reply) != 2+16 {
		return 0, 0, fmt.Errorf("%w: RA/Dec reply %q", ErrParse, reply)
	}

	r, err := parseDigits(reply[2:10])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: RA/Dec reply %q", ErrParse, reply)
	}
	d, err := parseDigits(reply[10:18])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: RA/Dec reply %q", ErrParse, reply)
	}

	return float64(r) / 1.0e6, float64(d) / 1.0e5, nil
}

// EncodeRADec is the inverse of DecodeRADec, used by the mock transport.
func EncodeRADec(ra, dec float64) string {
	return fmt.Sprintf("RD%08d%08d", int(math.Round(ra*1.0e6)), int(math.Round(dec*1.0e5)))
}

// parseDigits accepts only ASCII digits.
func parseDigits(field string) (int, error) {
	if field == "" {
		return 0, fmt.Errorf("empty field")
	}
	for _, c := range field {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit %q in %q", c, field)
		}
	}
	return strconv.Atoi(field)
}

// GuideRateToPercent converts a guide rate fraction of sidereal into the
// percentage sent on the wire.
func GuideRateToPercent(rate float64) (int, error) {
	pct := int(math.Round(rate * 100.0))
	if pct < 0 || pct > maxGuidePercent {
		return 0, fmt.Errorf("%w: guide rate %.2f out of range", ErrRejected, rate)
	}
	return pct, nil
}

// PercentToGuideRate converts a wire percentage into a fraction of sidereal.
func PercentToGuideRate(pct int) float64 {
	return float64(pct) / 100.0
}

// EncodeTrackingAdjustment builds the :X41 command. The value is a percentage
// in [-5, 5] sent in parts per 10000.
func EncodeTrackingAdjustment(percent float64) (string, error) {
	if math.IsNaN(percent) || percent > maxTrackingAdjustment || percent < -maxTrackingAdjustment {
		return "", fmt.Errorf("%w: tracking adjustment %.2f%% outside [-5, 5]", ErrRejected, percent)
	}
	return fmt.Sprintf(":X41%+04d#", int(math.Round(percent*100))), nil
}

// DecodeTrackingAdjustment decodes the :X42# reply "or<sign><3 digits>".
func DecodeTrackingAdjustment(reply string) (float64, error) {
	if !strings.HasPrefix(reply, "or") {
		return 0, fmt.Errorf("%w: tracking adjustment reply %q", ErrParse, reply)
	}
	field := strings.TrimSuffix(reply[2:], "#")
	if len(field) > 4 {
		field = field[:4]
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%w: tracking adjustment reply %q", ErrParse, reply)
	}
	return float64(v) / 100.0, nil
}
