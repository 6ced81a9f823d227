package detection

import (
	"context"
	"io"

	"github.com/banshee-data/target.range/internal/tracking"
)

// Frame is the set of detections for one video frame.
type Frame struct {
	Index int            // Zero-based frame number
	Time  float64        // Seconds since the start of the stream
	Boxes []tracking.Box // Detections in detector order
}

// Source yields frames in order. Next returns io.EOF once the stream is
// exhausted and ctx.Err() when cancelled.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// SliceSource serves frames from memory.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource returns a Source over frames.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error { return nil }
