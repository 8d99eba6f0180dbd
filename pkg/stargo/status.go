package stargo

import "errors"

// Poll runs one status cycle: motor state, park/home phase, tracking
// adjustment, coordinates and pier side. A failed cycle publishes nothing
// and leaves the previous status untouched.
func (m *Mount) Poll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.poll(); err != nil {
		m.metrics.pollFailed()
		return err
	}
	return nil
}

func (m *Mount) poll() error {
	x, y, err := m.motorStatus()
	if errors.Is(err, ErrParse) {
		m.logger.Info("Failed to parse motor state. Retrying...")
		x, y, err = m.motorStatus()
	}
	if err != nil {
		m.logger.Error("Cannot determine scope status, failed to parse motor state.")
		return err
	}

	code, err := m.parkHomeStatus()
	if err != nil {
		m.logger.Error("Cannot determine scope status, failed to determine park/sync state.")
		return err
	}

	prev := m.status.State
	next, parked, unparked, homeReached := m.transition(prev, code, x, y)

	adjustment := m.status.TrackingAdjustment
	if v, err := m.trackingAdjustment(); err == nil {
		adjustment = v
	} else {
		m.logger.Warnf("Tracking adjustment not refreshed: %v", err)
	}

	ra, dec, err := m.eqCoordinates()
	if err != nil {
		m.logger.Error("Retrieving equatorial coordinates failed.")
		return err
	}

	side, err := m.pierSide()
	if err != nil {
		m.logger.Error("Cannot determine scope status, failed to determine pier side.")
		return err
	}

	if homeReached {
		m.gotoHomePending = false
	}
	m.status = Status{
		State:              next,
		ParkHome:           code,
		Motion:             m.motion,
		RA:                 ra,
		Dec:                dec,
		PierSide:           side,
		TrackingAdjustment: adjustment,
		GotoHomePending:    m.gotoHomePending,
		Updated:            m.now(),
	}
	m.logTransition(prev, next)

	if m.listener != nil {
		if parked {
			m.listener.Parked(true)
		}
		if unparked {
			m.listener.Parked(false)
		}
		m.listener.StatusUpdated(m.status)
	}

	if m.aux.dev != nil && next != ScopeSlewing {
		return m.aux.dev.ReadStatus()
	}
	return nil
}

// transition derives the next scope state. Motor pairs other than (0,0)
// and (1,0) are transitional and keep the current state.
func (m *Mount) transition(prev ScopeState, code ParkHomeState, x, y int) (next ScopeState, parked, unparked, homeReached bool) {
	if code == Parked {
		return ScopeParked, prev != ScopeParked, false, false
	}

	next = prev
	if prev == ScopeParked {
		unparked = true
		next = ScopeIdle
	}

	switch {
	case x == 0 && y == 0:
		next = ScopeIdle
		homeReached = m.gotoHomePending
	case x == 1 && y == 0:
		next = ScopeTracking
	}
	return next, false, unparked, homeReached
}

func (m *Mount) logTransition(prev, next ScopeState) {
	if prev == next {
		return
	}
	switch next {
	case ScopeIdle:
		if prev == ScopeParking {
			m.logger.Info("Scope parked. Tracking is off.")
		} else {
			m.logger.Info("Tracking is off.")
		}
	case ScopeTracking:
		if prev == ScopeSlewing {
			m.logger.Info("Slewing completed. Tracking...")
		} else {
			m.logger.Info("Tracking...")
		}
	case ScopeParked:
		m.logger.Info("Mount parked.")
	default:
		m.logger.Infof("Scope state %s => %s", prev, next)
	}
}
