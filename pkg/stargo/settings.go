package stargo

import "errors"

// Settings are the controller settings read once after connecting.
type Settings struct {
	Firmware           string           `json:"firmware"`
	ParkHome           ParkHomeState    `json:"park_home"`
	HomeSynced         bool             `json:"home_synced"`
	ST4                bool             `json:"st4"`
	Keypad             bool             `json:"keypad"`
	TrackingAdjustment float64          `json:"tracking_adjustment"`
	MeridianFlip       MeridianFlipMode `json:"meridian_flip"`
	SlewSpeed          SlewSpeedMode    `json:"slew_speed"`
	GuideRateRA        float64          `json:"guide_rate_ra"`
	GuideRateDec       float64          `json:"guide_rate_dec"`
}

// ReadSettings reads the controller settings. A failing item is logged and
// skipped; the returned error joins all failures.
func (m *Mount) ReadSettings() (Settings, error) {
	var (
		s    Settings
		errs []error
		err  error
	)
	collect := func(what string, err error) {
		if err != nil {
			m.logger.Errorf("Failed to get %s from device: %v", what, err)
			errs = append(errs, err)
		}
	}

	s.Firmware, err = m.FirmwareInfo()
	collect("firmware", err)

	s.ParkHome, err = m.ParkHomeStatus()
	collect("park status", err)
	if err == nil {
		m.applyParkHome(s.ParkHome)
		s.HomeSynced = s.ParkHome == AtHome
	}

	s.ST4, err = m.ST4Enabled()
	collect("ST4 status", err)
	s.TrackingAdjustment, err = m.TrackingAdjustment()
	collect("tracking adjustment", err)
	s.Keypad, err = m.KeypadEnabled()
	collect("keypad status", err)
	s.MeridianFlip, err = m.MeridianFlipMode()
	collect("meridian flip mode", err)
	s.SlewSpeed, err = m.SlewSpeedMode()
	collect("slew speed mode", err)
	s.GuideRateRA, s.GuideRateDec, err = m.GuideSpeeds()
	collect("guiding speeds", err)

	return s, errors.Join(errs...)
}

func (m *Mount) applyParkHome(code ParkHomeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parked := code == Parked
	if parked {
		m.status.State = ScopeParked
	}
	m.status.ParkHome = code
	if code == AtHome {
		m.homeSynced = true
	}
	if m.listener != nil {
		m.listener.Parked(parked)
	}
}
