package stargo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultWait is the read budget for commands that answer.
	DefaultWait = 2 * time.Second
	// NoReply is the read budget for commands known to produce no reply.
	NoReply time.Duration = 0

	// DefaultRequestDelay is the quiet period applied after every exchange.
	DefaultRequestDelay = 50 * time.Millisecond
	// MaxRequestDelay bounds the configurable quiet period.
	MaxRequestDelay = time.Second
)

// QueryEngine performs one command/reply exchange at a time and separates
// unsolicited telegrams from genuine replies. It is not safe for concurrent
// use; the Mount serializes all calls.
type QueryEngine struct {
	transport  Transport
	delay      time.Duration
	sleep      func(time.Duration)
	onTelegram func(Telegram)
	metrics    *Collector
	logger     log.FieldLogger
}

// NewQueryEngine creates an engine. onTelegram is invoked for every telegram
// found in the stream, before and after the command is sent.
func NewQueryEngine(transport Transport, onTelegram func(Telegram), metrics *Collector, logger log.FieldLogger) *QueryEngine {
	return &QueryEngine{
		transport:  transport,
		delay:      DefaultRequestDelay,
		sleep:      time.Sleep,
		onTelegram: onTelegram,
		metrics:    metrics,
		logger:     logger.WithField("component", "query"),
	}
}

// SetRequestDelay changes the quiet period applied after every exchange.
func (q *QueryEngine) SetRequestDelay(delay time.Duration) error {
	if delay < 0 || delay > MaxRequestDelay {
		return fmt.Errorf("%w: request delay %v outside [0, %v]", ErrRejected, delay, MaxRequestDelay)
	}
	q.delay = delay
	return nil
}

// RequestDelay returns the current quiet period.
func (q *QueryEngine) RequestDelay() time.Duration {
	return q.delay
}

// Send transmits cmd and returns the first reply frame that is not a
// telegram, with a trailing '#' removed. With a zero wait the call returns
// as soon as the command is written. A positive wait that elapses without a
// genuine reply yields ErrTimeout.
func (q *QueryEngine) Send(cmd string, term byte, wait time.Duration) (string, error) {
	q.logger.Debugf("Sending %s (end %q, wait %v)", cmd, term, wait)
	defer q.sleep(q.delay)

	if err := q.drain(); err != nil {
		return "", err
	}
	if err := q.transport.Flush(); err != nil {
		return "", fmt.Errorf("%w: flushing before %s: %v", ErrCommunication, cmd, err)
	}

	if err := q.transport.Write([]byte(cmd)); err != nil {
		q.logger.Errorf("Command %s failed: %v", cmd, err)
		return "", fmt.Errorf("%w: command %s: %v", ErrCommunication, cmd, err)
	}

	var reply string
	found := false
	lwait := wait
	for {
		frame, err := q.transport.ReadFrame(term, lwait)
		if errors.Is(err, ErrNoFrame) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: reading reply to %s: %v", ErrCommunication, cmd, err)
		}

		frame = trimFrame(frame)
		if q.applyTelegram(frame) {
			continue
		}
		if found {
			q.logger.Debugf("Discarding extra frame %q after reply to %s", frame, cmd)
			continue
		}
		reply = frame
		found = true
		lwait = 0
	}
	if err := q.transport.Flush(); err != nil {
		return "", fmt.Errorf("%w: flushing after %s: %v", ErrCommunication, cmd, err)
	}

	if !found && wait > 0 {
		return "", fmt.Errorf("%w: %s", ErrTimeout, cmd)
	}

	q.logger.Debugf("Reply to %s: %q", cmd, reply)
	return reply, nil
}

// drain consumes buffered telegrams before a command is sent. It stops at
// the first frame that is not a telegram, which is stale and dropped; Send
// flushes whatever follows it.
func (q *QueryEngine) drain() error {
	for {
		frame, err := q.transport.ReadFrame('#', 0)
		if errors.Is(err, ErrNoFrame) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: draining: %v", ErrCommunication, err)
		}

		frame = trimFrame(frame)
		if !q.applyTelegram(frame) {
			q.logger.Warnf("Dropping stale frame %q", frame)
			return nil
		}
	}
}

func (q *QueryEngine) applyTelegram(frame string) bool {
	t, ok := ParseTelegram(frame)
	if !ok {
		return false
	}
	q.logger.Debugf("Motion state %s => motors %d, track %d, slew %d", frame, t.Motor, t.Mode, t.Slew)
	q.metrics.telegram()
	if q.onTelegram != nil {
		q.onTelegram(t)
	}
	return true
}

func trimFrame(frame string) string {
	return strings.TrimSuffix(frame, "#")
}
