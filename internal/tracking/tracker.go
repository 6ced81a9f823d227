package tracking

import (
	"sync"

	"github.com/banshee-data/target.range/internal/config"
)

// Default tracker parameters.
const (
	DefaultIoUThreshold = 0.3
	DefaultMaxAge       = 30
)

// velocityDecay is the weight kept from the previous velocity estimate on
// every match; the remaining weight goes to the newest corner displacement.
const velocityDecay = 0.5

// Config holds the tracker parameters. They are fixed at construction.
type Config struct {
	IoUThreshold float64 // Minimum IoU to accept a detection-track match; must be in (0, 1]
	MaxAge       int     // Frames a track survives unmatched; TTL of new tracks
}

// DefaultConfig returns the production-default tracker parameters.
func DefaultConfig() Config {
	return Config{
		IoUThreshold: DefaultIoUThreshold,
		MaxAge:       DefaultMaxAge,
	}
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		IoUThreshold: cfg.GetIoUThreshold(),
		MaxAge:       cfg.GetMaxAge(),
	}
}

// normalized fills zero or negative fields with defaults.
func (c Config) normalized() Config {
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = DefaultIoUThreshold
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	return c
}

// track is one target hypothesis. Only the Tracker mutates it.
type track struct {
	id         int
	box        Box
	velocity   Velocity
	timeToLive int
	age        int
	stableHits int
}

// predict advances the box by its velocity and ages the track by one frame.
func (tr *track) predict() {
	tr.box = tr.box.advance(tr.velocity)
	tr.age++
	tr.timeToLive--
}

// match folds a detection into the track.
func (tr *track) match(det Box, maxAge int) {
	d := det.delta(tr.box)
	tr.velocity = Velocity{
		VX1: velocityDecay*tr.velocity.VX1 + (1-velocityDecay)*d.VX1,
		VY1: velocityDecay*tr.velocity.VY1 + (1-velocityDecay)*d.VY1,
		VX2: velocityDecay*tr.velocity.VX2 + (1-velocityDecay)*d.VX2,
		VY2: velocityDecay*tr.velocity.VY2 + (1-velocityDecay)*d.VY2,
	}
	tr.box = det
	tr.timeToLive = maxAge
	tr.stableHits++
}

func (tr *track) snapshot() Snapshot {
	return Snapshot{
		ID:         tr.id,
		Box:        tr.box,
		StableHits: tr.stableHits,
		Age:        tr.age,
		TimeToLive: tr.timeToLive,
		Velocity:   tr.velocity,
	}
}

// Snapshot is a read-only copy of a live track as reported by Update.
// ID, Box and StableHits are the tracker's output contract; the other
// fields are informational.
type Snapshot struct {
	ID         int      `json:"id"`
	Box        Box      `json:"box"`
	StableHits int      `json:"stable_hits"`
	Age        int      `json:"age"`
	TimeToLive int      `json:"time_to_live"`
	Velocity   Velocity `json:"velocity"`
}

// Metrics holds counters accumulated since construction or the last Reset.
type Metrics struct {
	FramesProcessed int `json:"frames_processed"`
	Detections      int `json:"detections"`
	Matches         int `json:"matches"`
	TracksCreated   int `json:"tracks_created"`
	TracksRetired   int `json:"tracks_retired"`
	LiveTracks      int `json:"live_tracks"`
}

// Tracker is the SORT-style multi-object tracker. It owns every track
// exclusively and hands out Snapshot copies only.
//
// Update must be called once per frame, in frame order. The mutex only
// keeps the read accessors safe to call from other goroutines (an HTTP
// handler, for example); it does not make out-of-order updates valid.
type Tracker struct {
	config Config

	// tracks is kept in creation order, which is also the report order.
	tracks []*track
	nextID int

	metrics Metrics

	// last holds the snapshots produced by the latest Update.
	last []Snapshot

	mu sync.RWMutex
}

// NewTracker creates a tracker with the given configuration. Fields that
// are zero or negative fall back to DefaultConfig, so an IoUThreshold of 0
// means 0.3, not "match anything that overlaps". Pass a small positive
// threshold for that.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		config: cfg.normalized(),
		nextID: 1,
	}
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.config
}

// Update processes one frame of detections and returns a snapshot of
// every live track. Detections must already be validated (positive width
// and height); the tracker does not check them. An empty slice is valid
// and simply ages every track.
func (t *Tracker) Update(detections []Box) []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Step 1: Predict every live track before association so matching
	// uses predicted rather than stale boxes.
	for _, tr := range t.tracks {
		tr.predict()
	}

	// Step 2: Associate detections greedily, in input order.
	assigned := make(map[int]bool, len(t.tracks)+len(detections))
	for _, det := range detections {
		best := t.bestUnassigned(det, assigned)
		if best != nil {
			best.match(det, t.config.MaxAge)
			assigned[best.id] = true
			t.metrics.Matches++
			continue
		}

		// A track spawned here is a candidate for later detections in
		// the same frame until one of them matches it.
		t.spawn(det)
	}

	// Step 3: Prune tracks whose time to live ran out.
	alive := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.timeToLive > 0 {
			alive = append(alive, tr)
		} else {
			t.metrics.TracksRetired++
		}
	}
	for i := len(alive); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = alive

	t.metrics.FramesProcessed++
	t.metrics.Detections += len(detections)
	t.metrics.LiveTracks = len(t.tracks)

	// Step 4: Report.
	out := make([]Snapshot, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = tr.snapshot()
	}
	t.last = out

	result := make([]Snapshot, len(out))
	copy(result, out)
	return result
}

// bestUnassigned returns the unassigned track with the strictly greatest
// IoU against det, or nil when no track reaches the threshold. Ties go to
// the earliest-created track.
func (t *Tracker) bestUnassigned(det Box, assigned map[int]bool) *track {
	var best *track
	bestIoU := 0.0
	for _, tr := range t.tracks {
		if assigned[tr.id] {
			continue
		}
		if iou := IoU(det, tr.box); iou > bestIoU {
			bestIoU = iou
			best = tr
		}
	}
	if best == nil || bestIoU < t.config.IoUThreshold {
		return nil
	}
	return best
}

// spawn creates a track for an unmatched detection.
func (t *Tracker) spawn(det Box) {
	tr := &track{
		id:         t.nextID,
		box:        det,
		timeToLive: t.config.MaxAge,
	}
	t.nextID++
	t.tracks = append(t.tracks, tr)
	t.metrics.TracksCreated++
}

// Snapshots returns the tracks reported by the most recent Update.
func (t *Tracker) Snapshots() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Snapshot, len(t.last))
	copy(out, t.last)
	return out
}

// Metrics returns a copy of the tracker counters.
func (t *Tracker) Metrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

// Reset clears all tracks, counters and the id sequence. Used between
// replay runs so each run starts from id 1.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
	t.nextID = 1
	t.metrics = Metrics{}
	t.last = nil
}
