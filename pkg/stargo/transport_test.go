package stargo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort hands out one chunk per Read. With no chunks left a Read
// behaves like an expired read timeout.
type fakePort struct {
	serial.Port

	chunks   []string
	reads    int
	timeouts []time.Duration
	written  []byte
	short    int // bytes accepted by Write when positive
	readErr  error
	writeErr error
	resetErr error
	resets   int
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.reads++
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	n := len(b)
	if p.short > 0 {
		n = p.short
	}
	p.written = append(p.written, b[:n]...)
	return n, nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.resets++
	return p.resetErr
}

func (p *fakePort) Close() error {
	return nil
}

func TestReadFrameAcrossReads(t *testing.T) {
	port := &fakePort{chunks: []string{":Z1", "303#m", "10#"}}
	tr := newSerialTransport(port)

	frame, err := tr.ReadFrame('#', DefaultWait)
	require.NoError(t, err)
	assert.Equal(t, ":Z1303#", frame)

	frame, err = tr.ReadFrame('#', DefaultWait)
	require.NoError(t, err)
	assert.Equal(t, "m10#", frame)
	assert.Equal(t, 3, port.reads)
}

func TestReadFrameBuffered(t *testing.T) {
	port := &fakePort{chunks: []string{"m10#p0#"}}
	tr := newSerialTransport(port)

	frame, err := tr.ReadFrame('#', DefaultWait)
	require.NoError(t, err)
	assert.Equal(t, "m10#", frame)

	// served from the pending buffer without touching the port
	frame, err = tr.ReadFrame('#', 0)
	require.NoError(t, err)
	assert.Equal(t, "p0#", frame)
	assert.Equal(t, 1, port.reads)
}

func TestReadFrameNothingBuffered(t *testing.T) {
	port := &fakePort{}
	tr := newSerialTransport(port)

	_, err := tr.ReadFrame('#', 0)
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Equal(t, []time.Duration{0}, port.timeouts)
}

func TestReadFrameDeadline(t *testing.T) {
	port := &fakePort{chunks: []string{"p"}}
	tr := newSerialTransport(port)

	_, err := tr.ReadFrame('#', 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoFrame)
	require.Len(t, port.timeouts, 2)
	for _, timeout := range port.timeouts {
		assert.GreaterOrEqual(t, timeout, time.Duration(0))
		assert.LessOrEqual(t, timeout, 50*time.Millisecond)
	}
	assert.GreaterOrEqual(t, port.timeouts[0], port.timeouts[1])

	// the partial frame is kept for the next read
	port.chunks = []string{"0#"}
	frame, err := tr.ReadFrame('#', 0)
	require.NoError(t, err)
	assert.Equal(t, "p0#", frame)
}

func TestReadFrameCustomTerminator(t *testing.T) {
	port := &fakePort{chunks: []string{"1p0#"}}
	tr := newSerialTransport(port)

	frame, err := tr.ReadFrame('1', DefaultWait)
	require.NoError(t, err)
	assert.Equal(t, "1", frame)

	frame, err = tr.ReadFrame('#', 0)
	require.NoError(t, err)
	assert.Equal(t, "p0#", frame)
}

func TestReadFrameError(t *testing.T) {
	port := &fakePort{readErr: errWire}
	tr := newSerialTransport(port)

	_, err := tr.ReadFrame('#', DefaultWait)
	assert.ErrorIs(t, err, ErrCommunication)
	assert.Contains(t, err.Error(), "wire unplugged")
}

func TestSerialWrite(t *testing.T) {
	port := &fakePort{}
	tr := newSerialTransport(port)
	require.NoError(t, tr.Write([]byte(":GW#")))
	assert.Equal(t, ":GW#", string(port.written))

	port = &fakePort{short: 2}
	err := newSerialTransport(port).Write([]byte(":GW#"))
	assert.ErrorIs(t, err, ErrCommunication)
	assert.Contains(t, err.Error(), "short write 2 of 4")

	port = &fakePort{writeErr: errWire}
	err = newSerialTransport(port).Write([]byte(":GW#"))
	assert.ErrorIs(t, err, ErrCommunication)
}

func TestSerialFlush(t *testing.T) {
	port := &fakePort{chunks: []string{"p0#p1"}}
	tr := newSerialTransport(port)

	_, err := tr.ReadFrame('#', 0)
	require.NoError(t, err)

	require.NoError(t, tr.Flush())
	assert.Equal(t, 1, port.resets)
	_, err = tr.ReadFrame('#', 0)
	assert.ErrorIs(t, err, ErrNoFrame)

	port.resetErr = errWire
	assert.ErrorIs(t, tr.Flush(), ErrCommunication)
}
