package stargo

import "fmt"

// AuxDevice is a sub-device hosted by the mount controller, such as the
// AUX1 focuser port.
type AuxDevice interface {
	Activate(on bool) error
	ReadStatus() error
}

// AuxSlot owns at most one auxiliary device. The device only exists while
// activated.
type AuxSlot struct {
	factory func() AuxDevice
	dev     AuxDevice
}

func (s *AuxSlot) activate() error {
	if s.dev != nil {
		return nil
	}
	if s.factory == nil {
		return fmt.Errorf("%w: no auxiliary device configured", ErrRejected)
	}
	dev := s.factory()
	if err := dev.Activate(true); err != nil {
		return err
	}
	s.dev = dev
	return nil
}

func (s *AuxSlot) deactivate() error {
	if s.dev == nil {
		return nil
	}
	err := s.dev.Activate(false)
	s.dev = nil
	return err
}

// SetAuxFactory configures how the auxiliary device is created on activation.
func (m *Mount) SetAuxFactory(factory func() AuxDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aux.factory = factory
}

// ActivateAux creates and activates the auxiliary device, or deactivates
// and releases it.
func (m *Mount) ActivateAux(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		return m.aux.activate()
	}
	return m.aux.deactivate()
}

// AuxActive reports whether the auxiliary device is activated.
func (m *Mount) AuxActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aux.dev != nil
}
