package stargo

import (
	"fmt"
	"time"
)

// MaxGuideDuration is the longest pulse the 4 digit duration field can carry.
const MaxGuideDuration = 9999 * time.Millisecond

// Axis is a guide axis.
type Axis int

const (
	AxisNS Axis = iota
	AxisWE
)

func (a Axis) String() string {
	if a == AxisNS {
		return "ns"
	}
	return "we"
}

// Direction is a guide or motion direction.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Axis returns the axis moved by d.
func (d Direction) Axis() Axis {
	if d == North || d == South {
		return AxisNS
	}
	return AxisWE
}

func (d Direction) code() string {
	return [...]string{"n", "s", "e", "w"}[d]
}

func (d Direction) valid() bool {
	return d >= North && d <= West
}

type timer interface {
	Stop() bool
}

// guideTask is the outstanding guide command of one axis. The id tells a
// late timer callback apart from the task that replaced it.
type guideTask struct {
	id       uint64
	dir      Direction
	discrete bool // motion has to be stopped on expiry
	timer    timer
}

type guider struct {
	pulse     bool
	nextID    uint64
	tasks     [2]*guideTask
	moving    [2]bool // manual motion per axis
	movingDir [2]Direction
}

func (g *guider) cancel(axis Axis) {
	if t := g.tasks[axis]; t != nil {
		t.timer.Stop()
		g.tasks[axis] = nil
	}
}

func (g *guider) busy() bool {
	return g.tasks[AxisNS] != nil || g.tasks[AxisWE] != nil
}

// Guide moves the mount in dir for duration, either with a single pulse
// command timed by the mount or with start/stop motion timed locally.
// A guide command replaces any pending one on the same axis.
func (m *Mount) Guide(dir Direction, duration time.Duration) error {
	if !dir.valid() {
		return fmt.Errorf("%w: guide direction %d", ErrRejected, int(dir))
	}
	if duration < 0 || duration > MaxGuideDuration {
		return fmt.Errorf("%w: guide duration %v outside [0, %v]", ErrRejected, duration, MaxGuideDuration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	axis := dir.Axis()
	other := AxisWE
	if axis == AxisWE {
		other = AxisNS
	}
	g := &m.guider

	if g.pulse && (g.moving[AxisNS] || g.moving[AxisWE]) {
		m.logger.Error("Cannot guide while moving.")
		return fmt.Errorf("%w: cannot guide while moving", ErrRejected)
	}
	if !g.pulse && g.moving[other] {
		m.logger.Errorf("Cannot guide %s while moving on the %s axis.", dir, other)
		return fmt.Errorf("%w: cannot guide while moving", ErrRejected)
	}
	if st := m.status.State; st == ScopeSlewing || st == ScopeParking {
		m.logger.Infof("Guide command (%s %v) ignored due to scope state %s.", dir, duration, st)
		return fmt.Errorf("%w: guiding while %s", ErrRejected, st)
	}

	if g.moving[axis] {
		if _, err := m.query(OpMoveStop, g.movingDir[axis].code()); err != nil {
			return err
		}
		g.moving[axis] = false
	}
	g.cancel(axis)

	if g.pulse {
		if _, err := m.query(OpPulseGuide, dir.code(), duration.Milliseconds()); err != nil {
			return err
		}
	} else {
		if err := m.setSlewRate(SlewGuide); err != nil {
			return err
		}
		if _, err := m.query(OpMoveStart, dir.code()); err != nil {
			return err
		}
	}
	m.motion.SlewRate = SlewGuide

	g.nextID++
	task := &guideTask{id: g.nextID, dir: dir, discrete: !g.pulse}
	task.timer = m.afterFunc(duration, func() { m.guideExpired(axis, task.id) })
	g.tasks[axis] = task
	m.metrics.guidePulse(dir)
	return nil
}

func (m *Mount) guideExpired(axis Axis, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := m.guider.tasks[axis]
	if task == nil || task.id != id {
		return
	}
	m.guider.tasks[axis] = nil

	if task.discrete {
		if _, err := m.query(OpMoveStop, task.dir.code()); err != nil {
			m.logger.Errorf("Failed to stop guiding %s: %v", task.dir, err)
		}
	}
	m.logger.Debugf("Guiding %s done", task.dir)
}

// IsPulseGuiding reports whether a guide command is outstanding.
func (m *Mount) IsPulseGuiding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guider.busy()
}

// Move starts or stops manual motion in dir at the current slew rate.
func (m *Mount) Move(dir Direction, start bool) error {
	if !dir.valid() {
		return fmt.Errorf("%w: direction %d", ErrRejected, int(dir))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	axis := dir.Axis()
	if start {
		if _, err := m.query(OpMoveStart, dir.code()); err != nil {
			return err
		}
		m.guider.moving[axis] = true
		m.guider.movingDir[axis] = dir
		return nil
	}

	if _, err := m.query(OpMoveStop, dir.code()); err != nil {
		return err
	}
	m.guider.moving[axis] = false
	return nil
}

// Moving reports whether manual motion is active on axis.
func (m *Mount) Moving(axis Axis) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guider.moving[axis]
}
