// Package monitor keeps per-session tracking statistics and renders them
// as charts for the HTTP API and the CLI.
package monitor

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/target.range/internal/tracking"
)

// DefaultMaxSamples bounds the per-frame history (20 minutes at 30 fps).
const DefaultMaxSamples = 36000

// FrameSample is the per-frame activity recorded for the counts chart.
type FrameSample struct {
	Frame      int `json:"frame"`
	LiveTracks int `json:"live_tracks"`
	Fires      int `json:"fires"`
	Vetoes     int `json:"vetoes"`
}

// TrailPoint is a box centre observed for a track.
type TrailPoint struct {
	Frame int     `json:"frame"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type trackStats struct {
	first, last int
	hits        int
	trail       []TrailPoint
}

// Recorder accumulates tracking activity. It is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	maxSamples int
	samples    []FrameSample
	tracks     map[int]*trackStats
	order      []int // track ids in first-seen order
}

// NewRecorder returns a recorder keeping at most maxSamples frames of
// history; zero or less uses DefaultMaxSamples.
func NewRecorder(maxSamples int) *Recorder {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Recorder{
		maxSamples: maxSamples,
		tracks:     make(map[int]*trackStats),
	}
}

// Observe records the tracks reported for one frame along with the number
// of fire and veto decisions taken on it.
func (r *Recorder) Observe(frame int, snaps []tracking.Snapshot, fires, vetoes int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples = append(r.samples, FrameSample{
		Frame:      frame,
		LiveTracks: len(snaps),
		Fires:      fires,
		Vetoes:     vetoes,
	})
	if over := len(r.samples) - r.maxSamples; over > 0 {
		r.samples = append(r.samples[:0], r.samples[over:]...)
	}

	for _, s := range snaps {
		ts, ok := r.tracks[s.ID]
		if !ok {
			ts = &trackStats{first: frame, hits: -1}
			r.tracks[s.ID] = ts
			r.order = append(r.order, s.ID)
		}
		// Trails follow detections only, not coasting predictions.
		if s.StableHits > ts.hits {
			cx, cy := s.Box.Center()
			ts.trail = append(ts.trail, TrailPoint{Frame: frame, X: cx, Y: cy})
		}
		ts.last = frame
		ts.hits = s.StableHits
	}
}

// Samples returns the retained per-frame history.
func (r *Recorder) Samples() []FrameSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FrameSample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Trails returns the recorded centre trail of every track seen, keyed by
// track id.
func (r *Recorder) Trails() map[int][]TrailPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int][]TrailPoint, len(r.tracks))
	for id, ts := range r.tracks {
		out[id] = append([]TrailPoint(nil), ts.trail...)
	}
	return out
}

// Stats summarises a session.
type Stats struct {
	Frames         int     `json:"frames"`
	Tracks         int     `json:"tracks"`
	PeakLiveTracks int     `json:"peak_live_tracks"`
	Fires          int     `json:"fires"`
	Vetoes         int     `json:"vetoes"`
	MeanLifetime   float64 `json:"mean_lifetime_frames"`
	StdLifetime    float64 `json:"std_lifetime_frames"`
	MeanHits       float64 `json:"mean_stable_hits"`
	StdHits        float64 `json:"std_stable_hits"`
}

// Summary computes session statistics. Lifetime is the number of frames
// between a track's first and last report, inclusive.
func (r *Recorder) Summary() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Frames: len(r.samples), Tracks: len(r.tracks)}
	for _, fs := range r.samples {
		s.PeakLiveTracks = max(s.PeakLiveTracks, fs.LiveTracks)
		s.Fires += fs.Fires
		s.Vetoes += fs.Vetoes
	}

	if len(r.order) == 0 {
		return s
	}
	lifetimes := make([]float64, 0, len(r.order))
	hits := make([]float64, 0, len(r.order))
	for _, id := range r.order {
		ts := r.tracks[id]
		lifetimes = append(lifetimes, float64(ts.last-ts.first+1))
		hits = append(hits, float64(ts.hits))
	}
	s.MeanLifetime, s.StdLifetime = stat.MeanStdDev(lifetimes, nil)
	s.MeanHits, s.StdHits = stat.MeanStdDev(hits, nil)
	if len(r.order) == 1 {
		// MeanStdDev reports NaN spread for a single sample.
		s.StdLifetime, s.StdHits = 0, 0
	}
	return s
}

// Reset clears all recorded history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
	r.tracks = make(map[int]*trackStats)
	r.order = nil
}
