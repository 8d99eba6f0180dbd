package stargo

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// scriptTransport answers written commands with scripted byte strings.
// Each write consumes the next scripted answer; the last one repeats.
type scriptTransport struct {
	buf      []byte
	replies  map[string][]string
	written  []string
	writeErr error
	flushErr error
	flushes  int
}

func newScript() *scriptTransport {
	return &scriptTransport{replies: map[string][]string{}}
}

func (s *scriptTransport) on(cmd string, answers ...string) *scriptTransport {
	s.replies[cmd] = append(s.replies[cmd], answers...)
	return s
}

func (s *scriptTransport) queue(data string) {
	s.buf = append(s.buf, data...)
}

func (s *scriptTransport) ReadFrame(term byte, wait time.Duration) (string, error) {
	i := bytes.IndexByte(s.buf, term)
	if i < 0 {
		return "", ErrNoFrame
	}
	frame := string(s.buf[:i+1])
	s.buf = s.buf[i+1:]
	return frame, nil
}

func (s *scriptTransport) Write(data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	cmd := string(data)
	s.written = append(s.written, cmd)
	answers := s.replies[cmd]
	if len(answers) == 0 {
		return nil
	}
	s.queue(answers[0])
	if len(answers) > 1 {
		s.replies[cmd] = answers[1:]
	}
	return nil
}

func (s *scriptTransport) Flush() error {
	s.flushes++
	s.buf = s.buf[:0]
	return s.flushErr
}

func (s *scriptTransport) Close() error {
	return nil
}

var errWire = errors.New("wire unplugged")

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) timer {
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs timer i unless it was stopped.
func (c *fakeClock) fire(i int) {
	t := c.timers[i]
	if t.stopped || t.fired {
		return
	}
	t.fired = true
	t.f()
}

type recordingListener struct {
	parked  []bool
	updates []Status
}

func (l *recordingListener) Parked(parked bool) {
	l.parked = append(l.parked, parked)
}

func (l *recordingListener) StatusUpdated(st Status) {
	l.updates = append(l.updates, st)
}

var testNow = time.Date(2024, time.March, 20, 21, 30, 0, 0, time.UTC)

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestMount(t *testing.T, tr Transport, listener Listener) (*Mount, *fakeClock) {
	t.Helper()
	m, err := NewMount(tr, Config{RequestDelay: DefaultRequestDelay}, nil, listener, testLogger())
	require.NoError(t, err)

	clock := &fakeClock{}
	m.engine.sleep = func(time.Duration) {}
	m.sleep = func(time.Duration) {}
	m.now = func() time.Time { return testNow }
	m.afterFunc = clock.afterFunc
	return m, clock
}
