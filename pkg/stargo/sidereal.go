package stargo

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// LocalSiderealTime returns the local sidereal time in hours for the given
// instant and east-positive longitude in degrees.
func LocalSiderealTime(t time.Time, longitude float64) float64 {
	t = t.UTC()
	jd := satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	gmst := satellite.ThetaG_JD(jd) * 180.0 / math.Pi // degrees

	lst := math.Mod((gmst+longitude)/15.0, 24.0)
	if lst < 0 {
		lst += 24.0
	}
	return lst
}
