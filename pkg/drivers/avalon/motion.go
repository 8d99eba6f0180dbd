package avalon

import (
	"fmt"
	"math"

	"stargo/pkg/alpaca"
	"stargo/pkg/stargo"
)

// maxAxisRate is the fastest manual rate offered, in degrees per second.
const maxAxisRate = 4.0

// slewRateFor picks the controller speed class for an axis rate given in
// degrees per second.
func slewRateFor(rate float64) stargo.SlewRate {
	switch x := math.Abs(rate) / siderealRate; {
	case x <= 2:
		return stargo.SlewGuide
	case x <= 16:
		return stargo.SlewCentering
	case x <= 128:
		return stargo.SlewFind
	}
	return stargo.SlewMax
}

// axisDirection maps a signed axis rate to a motion direction. Positive
// rates move the primary axis west and the secondary axis north.
func axisDirection(axis alpaca.TelescopeAxis, rate float64) (stargo.Direction, error) {
	switch axis {
	case alpaca.AxisPrimary:
		if rate < 0 {
			return stargo.East, nil
		}
		return stargo.West, nil
	case alpaca.AxisSecondary:
		if rate < 0 {
			return stargo.South, nil
		}
		return stargo.North, nil
	}
	return 0, fmt.Errorf("%w: axis %d cannot be moved", alpaca.ErrInvalidValue, axis)
}

// MoveAxis starts manual motion at the speed class closest to rate, or
// stops it when rate is zero. Nonzero rates must lie within the advertised
// axis rates.
func (d *Driver) MoveAxis(axis alpaca.TelescopeAxis, rate float64) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	dir, err := axisDirection(axis, rate)
	if err != nil {
		return err
	}
	if r := math.Abs(rate); r != 0 && (r < siderealRate || r > maxAxisRate) {
		return fmt.Errorf("%w: rate %g outside %g to %g deg/s", alpaca.ErrInvalidValue, rate, siderealRate, maxAxisRate)
	}

	d.moveMu.Lock()
	defer d.moveMu.Unlock()

	i := dir.Axis()
	if d.moving[i] && (rate == 0 || d.moveDir[i] != dir) {
		if err := mount.Move(d.moveDir[i], false); err != nil {
			return err
		}
		d.moving[i] = false
	}
	if rate == 0 {
		return nil
	}

	if err := mount.SetSlewRate(slewRateFor(rate)); err != nil {
		return err
	}
	if err := mount.Move(dir, true); err != nil {
		return ascomError(err)
	}
	d.moveDir[i], d.moving[i] = dir, true
	d.logger.Debugf("Moving %s at %.4f deg/s", dir, math.Abs(rate))
	return nil
}
