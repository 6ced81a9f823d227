// Package firelink sends fire commands to the range's fire-control board.
//
// The board speaks a line protocol over a serial port: one
// "FIRE <track id> <x> <y>" line per engagement, coordinates in whole
// pixels of the aim point.
package firelink

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/target.range/internal/monitoring"
)

// ErrClosed is returned by Fire after Close.
var ErrClosed = fmt.Errorf("fire link closed")

// Link delivers fire commands.
type Link interface {
	Fire(trackID int, x, y float64) error
	Close() error
}

// Command formats the line sent for one engagement.
func Command(trackID int, x, y float64) string {
	return fmt.Sprintf("FIRE %d %d %d\n", trackID, int(math.Round(x)), int(math.Round(y)))
}

// SerialLink writes commands to a port. Writes are serialised.
type SerialLink struct {
	mu     sync.Mutex
	port   io.WriteCloser
	closed bool
}

// NewSerialLink wraps an already open port.
func NewSerialLink(port io.WriteCloser) *SerialLink {
	return &SerialLink{port: port}
}

// Open opens the serial device at path.
func Open(path string, opts PortOptions) (*SerialLink, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open fire port %s: %w", path, err)
	}
	monitoring.Logf("[firelink] opened %s at %d baud", path, mode.BaudRate)
	return NewSerialLink(port), nil
}

// Fire implements Link.
func (l *SerialLink) Fire(trackID int, x, y float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if _, err := io.WriteString(l.port, Command(trackID, x, y)); err != nil {
		return fmt.Errorf("failed to send fire command for track %d: %w", trackID, err)
	}
	return nil
}

// Close closes the port. It is safe to call more than once.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}

// NopLink is used for dry runs; it only logs.
type NopLink struct{}

// Fire implements Link.
func (NopLink) Fire(trackID int, x, y float64) error {
	monitoring.Logf("[firelink] dry run: %s", strings.TrimSpace(Command(trackID, x, y)))
	return nil
}

// Close implements Link.
func (NopLink) Close() error { return nil }

// Shot is one command captured by a CaptureLink.
type Shot struct {
	TrackID int
	X, Y    float64
}

// CaptureLink records commands in memory. Err, when set, is returned by
// every Fire call after recording.
type CaptureLink struct {
	mu    sync.Mutex
	shots []Shot
	Err   error
}

// Fire implements Link.
func (c *CaptureLink) Fire(trackID int, x, y float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shots = append(c.shots, Shot{TrackID: trackID, X: x, Y: y})
	return c.Err
}

// Close implements Link.
func (c *CaptureLink) Close() error { return nil }

// Shots returns the recorded commands.
func (c *CaptureLink) Shots() []Shot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Shot, len(c.shots))
	copy(out, c.shots)
	return out
}
