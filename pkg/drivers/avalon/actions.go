package avalon

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"stargo/pkg/alpaca"
	"stargo/pkg/stargo"
)

// action is a vendor operation reachable through the Alpaca action
// endpoint. An empty parameter reads the value, anything else sets it.
type action struct {
	get func(m *stargo.Mount) (string, error)
	set func(d *Driver, m *stargo.Mount, param string) error
}

var actions = map[string]action{
	"synchome": {
		set: func(_ *Driver, m *stargo.Mount, _ string) error {
			return m.SyncHome()
		},
	},
	"st4": {
		get: func(m *stargo.Mount) (string, error) {
			return formatBool(m.ST4Enabled())
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			enabled, err := parseBool(param)
			if err != nil {
				return err
			}
			return m.SetST4Enabled(enabled)
		},
	},
	"keypad": {
		get: func(m *stargo.Mount) (string, error) {
			return formatBool(m.KeypadEnabled())
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			enabled, err := parseBool(param)
			if err != nil {
				return err
			}
			return m.SetKeypadEnabled(enabled)
		},
	},
	"slewspeedmode": {
		get: func(m *stargo.Mount) (string, error) {
			mode, err := m.SlewSpeedMode()
			return mode.String(), err
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			mode, err := parseName(param, stargo.SlewSpeedLow, stargo.SlewSpeedHigh)
			if err != nil {
				return err
			}
			return m.SetSlewSpeedMode(mode)
		},
	},
	"meridianflip": {
		get: func(m *stargo.Mount) (string, error) {
			mode, err := m.MeridianFlipMode()
			return mode.String(), err
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			mode, err := parseName(param, stargo.MeridianFlipAuto, stargo.MeridianFlipForced)
			if err != nil {
				return err
			}
			return m.SetMeridianFlipMode(mode)
		},
	},
	"trackingadjustment": {
		get: func(m *stargo.Mount) (string, error) {
			v, err := m.TrackingAdjustment()
			return strconv.FormatFloat(v, 'f', 2, 64), err
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			v, err := strconv.ParseFloat(param, 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", alpaca.ErrInvalidValue, param)
			}
			return m.SetTrackingAdjustment(v)
		},
	},
	"requestdelay": {
		get: func(m *stargo.Mount) (string, error) {
			return strconv.FormatInt(m.RequestDelay().Milliseconds(), 10), nil
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			ms, err := strconv.Atoi(param)
			if err != nil {
				return fmt.Errorf("%w: %q is not an integer", alpaca.ErrInvalidValue, param)
			}
			return m.SetRequestDelay(time.Duration(ms) * time.Millisecond)
		},
	},
	"pulseguiding": {
		get: func(m *stargo.Mount) (string, error) {
			return strconv.FormatBool(m.PulseGuiding()), nil
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			enabled, err := parseBool(param)
			if err != nil {
				return err
			}
			m.SetPulseGuiding(enabled)
			return nil
		},
	},
	"firmware": {
		get: (*stargo.Mount).FirmwareInfo,
	},
	"coordinateformat": {
		get: func(m *stargo.Mount) (string, error) {
			f, err := m.CheckEquatorialFormat()
			return f.String(), err
		},
	},
	"aux": {
		get: func(m *stargo.Mount) (string, error) {
			return strconv.FormatBool(m.AuxActive()), nil
		},
		set: func(_ *Driver, m *stargo.Mount, param string) error {
			on, err := parseBool(param)
			if err != nil {
				return err
			}
			return m.ActivateAux(on)
		},
	},
	"sendtime": {
		set: func(_ *Driver, m *stargo.Mount, _ string) error {
			return m.SendTime(time.Now())
		},
	},
	"sendlocation": {
		set: func(d *Driver, m *stargo.Mount, _ string) error {
			latitude, longitude, err := m.SendScopeLocation()
			if err != nil {
				return err
			}
			d.mu.Lock()
			defer d.mu.Unlock()
			d.latitude, d.longitude = latitude, longitude
			return nil
		},
	},
	"status": {
		get: func(m *stargo.Mount) (string, error) {
			return toJSON(m.Status(), nil)
		},
	},
	"settings": {
		get: func(m *stargo.Mount) (string, error) {
			return toJSON(m.ReadSettings())
		},
	},
}

func (d *Driver) SupportedActions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (d *Driver) Action(name, parameters string) (string, error) {
	a, ok := actions[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", alpaca.ErrActionNotImplemented, name)
	}
	mount, err := d.connectedMount()
	if err != nil {
		return "", err
	}

	param := strings.TrimSpace(parameters)
	d.logger.Debugf("Action %s %q", name, param)

	if param == "" && a.get != nil {
		value, err := a.get(mount)
		return value, ascomError(err)
	}
	if a.set == nil {
		return "", fmt.Errorf("%w: %s is read-only", alpaca.ErrInvalidValue, name)
	}
	if err := a.set(d, mount, param); err != nil {
		return "", ascomError(err)
	}
	return "ok", nil
}

func parseBool(param string) (bool, error) {
	switch strings.ToLower(param) {
	case "true", "on", "1", "enabled":
		return true, nil
	case "false", "off", "0", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a boolean", alpaca.ErrInvalidValue, param)
}

func formatBool(v bool, err error) (string, error) {
	return strconv.FormatBool(v), err
}

// parseName finds the value in [first, last] whose name is param.
func parseName[T interface {
	~int
	String() string
}](param string, first, last T) (T, error) {
	for v := first; v <= last; v++ {
		if strings.EqualFold(v.String(), param) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", alpaca.ErrInvalidValue, param)
}

func toJSON(v any, err error) (string, error) {
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
