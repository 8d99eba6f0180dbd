package stargo

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ErrNoFrame is returned by a Transport when no complete frame arrived
// within the wait budget. It is not a failure by itself.
var ErrNoFrame = errors.New("no frame available")

// Transport is the half-duplex byte channel to the mount.
type Transport interface {
	// ReadFrame returns the next frame up to and including term, waiting
	// at most wait. A zero wait only returns data that is already buffered.
	ReadFrame(term byte, wait time.Duration) (string, error)
	// Write transmits data.
	Write(data []byte) error
	// Flush discards everything received but not yet read.
	Flush() error
	Close() error
}

// SerialTransport implements Transport over a serial port.
type SerialTransport struct {
	port    serial.Port
	pending []byte // bytes read but not yet returned as a frame
	buf     []byte
}

// OpenSerial opens the serial port with the 8N1 framing used by the StarGo.
func OpenSerial(path string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to reset input buffer: %w", err)
	}

	return newSerialTransport(port), nil
}

func newSerialTransport(port serial.Port) *SerialTransport {
	return &SerialTransport{
		port: port,
		buf:  make([]byte, 256),
	}
}

func (t *SerialTransport) ReadFrame(term byte, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	for {
		if i := bytes.IndexByte(t.pending, term); i >= 0 {
			frame := string(t.pending[:i+1])
			t.pending = t.pending[i+1:]
			return frame, nil
		}

		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCommunication, err)
		}

		n, err := t.port.Read(t.buf)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCommunication, err)
		}
		if n == 0 {
			return "", ErrNoFrame
		}
		t.pending = append(t.pending, t.buf[:n]...)
	}
}

func (t *SerialTransport) Write(data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("%w: wrote %d of %d bytes: %v", ErrCommunication, n, len(data), err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: short write %d of %d bytes", ErrCommunication, n, len(data))
	}
	return nil
}

func (t *SerialTransport) Flush() error {
	t.pending = t.pending[:0]
	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	return nil
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}
