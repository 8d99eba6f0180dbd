package stargo

// Enumerations marshal by name so published snapshots stay readable.

func (s ScopeState) MarshalText() ([]byte, error)       { return []byte(s.String()), nil }
func (p ParkHomeState) MarshalText() ([]byte, error)    { return []byte(p.String()), nil }
func (p PierSide) MarshalText() ([]byte, error)         { return []byte(p.String()), nil }
func (m MotorState) MarshalText() ([]byte, error)       { return []byte(m.String()), nil }
func (t TrackMode) MarshalText() ([]byte, error)        { return []byte(t.String()), nil }
func (s SlewRate) MarshalText() ([]byte, error)         { return []byte(s.String()), nil }
func (s SlewSpeedMode) MarshalText() ([]byte, error)    { return []byte(s.String()), nil }
func (f MeridianFlipMode) MarshalText() ([]byte, error) { return []byte(f.String()), nil }
