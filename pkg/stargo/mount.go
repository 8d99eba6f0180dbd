package stargo

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ScopeState is the mount status derived by the poll cycle.
type ScopeState int

const (
	ScopeIdle ScopeState = iota
	ScopeTracking
	ScopeSlewing
	ScopeParking
	ScopeParked
)

func (s ScopeState) String() string {
	switch s {
	case ScopeIdle:
		return "idle"
	case ScopeTracking:
		return "tracking"
	case ScopeSlewing:
		return "slewing"
	case ScopeParking:
		return "parking"
	case ScopeParked:
		return "parked"
	}
	return fmt.Sprintf("ScopeState(%d)", int(s))
}

// ParkHomeState is the park/home phase reported by :X38#.
type ParkHomeState int

const (
	Unparked    ParkHomeState = iota // p0
	AtHome                           // p1
	Parked                           // p2
	SlewingHome                      // pA
	SlewingPark                      // pB
)

func (p ParkHomeState) String() string {
	switch p {
	case Unparked:
		return "unparked"
	case AtHome:
		return "at-home"
	case Parked:
		return "parked"
	case SlewingHome:
		return "slewing-home"
	case SlewingPark:
		return "slewing-park"
	}
	return fmt.Sprintf("ParkHomeState(%d)", int(p))
}

// PierSide is the meridian side of the pier.
type PierSide int

const (
	PierUnknown PierSide = iota
	PierEast
	PierWest
)

func (p PierSide) String() string {
	switch p {
	case PierEast:
		return "east"
	case PierWest:
		return "west"
	}
	return "unknown"
}

// Status is the published mount status snapshot.
type Status struct {
	State              ScopeState    `json:"state"`
	ParkHome           ParkHomeState `json:"park_home"`
	Motion             MotionState   `json:"motion"`
	RA                 float64       `json:"ra"`  // hours
	Dec                float64       `json:"dec"` // degrees
	PierSide           PierSide      `json:"pier_side"`
	TrackingAdjustment float64       `json:"tracking_adjustment"` // percent
	GotoHomePending    bool          `json:"goto_home_pending"`
	Updated            time.Time     `json:"updated"`
}

// Listener receives status notifications. Callbacks run with the mount
// lock held and must not call back into the Mount.
type Listener interface {
	Parked(parked bool)
	StatusUpdated(st Status)
}

// Config holds the runtime options of a Mount.
type Config struct {
	RequestDelay time.Duration
	PulseGuiding bool // use :Mg pulse commands instead of timed start/stop motion
}

// Mount drives a StarGo controller. All exported methods are safe for
// concurrent use; they serialize on one lock so that exactly one command
// is in flight at a time.
type Mount struct {
	mu       sync.Mutex
	engine   *QueryEngine
	metrics  *Collector
	listener Listener
	logger   log.FieldLogger

	motion          MotionState
	status          Status
	gotoHomePending bool
	homeSynced      bool

	guider guider
	aux    AuxSlot

	now       func() time.Time
	afterFunc func(time.Duration, func()) timer
	sleep     func(time.Duration)
}

// NewMount creates a mount on top of transport. metrics and listener may be nil.
func NewMount(transport Transport, cfg Config, metrics *Collector, listener Listener, logger log.FieldLogger) (*Mount, error) {
	m := &Mount{
		metrics:  metrics,
		listener: listener,
		logger:   logger.WithField("component", "mount"),
		now:      time.Now,
		sleep:    time.Sleep,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
	m.engine = NewQueryEngine(transport, m.applyTelegram, metrics, logger)
	m.guider.pulse = cfg.PulseGuiding

	if err := m.engine.SetRequestDelay(cfg.RequestDelay); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mount) applyTelegram(t Telegram) {
	t.Apply(&m.motion)
}

// Status returns the last published status snapshot.
func (m *Mount) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Motion returns the motion state as last reported by telegrams.
func (m *Mount) Motion() MotionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.motion
}

// HomeSynced reports whether the mount was found at its home position when
// the settings were read.
func (m *Mount) HomeSynced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.homeSynced
}

// SetRequestDelay changes the quiet period applied after every command.
func (m *Mount) SetRequestDelay(delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.SetRequestDelay(delay); err != nil {
		return err
	}
	m.logger.Infof("Mount request delay set to %v", delay)
	return nil
}

// RequestDelay returns the quiet period applied after every command.
func (m *Mount) RequestDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.RequestDelay()
}

// SetPulseGuiding selects pulse commands or timed start/stop motion for guiding.
func (m *Mount) SetPulseGuiding(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guider.pulse = enabled
}

// PulseGuiding reports whether pulse commands are used for guiding.
func (m *Mount) PulseGuiding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guider.pulse
}

// Close cancels any pending guide timers.
func (m *Mount) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guider.cancel(AxisNS)
	m.guider.cancel(AxisWE)
}
