// Package engagement runs the per-frame range pipeline: detections go
// through the tracker, stable tracks are identified as friend or foe,
// checked against the no-fire zone and engaged at most once each.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/banshee-data/target.range/internal/classify"
	"github.com/banshee-data/target.range/internal/detection"
	"github.com/banshee-data/target.range/internal/events"
	"github.com/banshee-data/target.range/internal/firelink"
	"github.com/banshee-data/target.range/internal/monitor"
	"github.com/banshee-data/target.range/internal/monitoring"
	"github.com/banshee-data/target.range/internal/safety"
	"github.com/banshee-data/target.range/internal/tracking"
)

var logf = monitoring.Prefixed("engage")

// Veto reasons recorded on veto events.
const (
	ReasonFriend       = "friend"
	ReasonUnidentified = "unidentified"
	ReasonNoFireZone   = "no_fire_zone"
	ReasonLinkError    = "link_error"
	ReasonWrongTarget  = "wrong_target"
)

// ColorClassifier labels the colour of a track's box on the current frame.
type ColorClassifier interface {
	CropColor(box tracking.Box) classify.Color
}

// ColorClassifierFunc adapts a function to ColorClassifier.
type ColorClassifierFunc func(box tracking.Box) classify.Color

// CropColor implements ColorClassifier.
func (f ColorClassifierFunc) CropColor(box tracking.Box) classify.Color { return f(box) }

// FixedColor reports the same colour for every box. Used when replaying
// detections recorded without imagery.
func FixedColor(c classify.Color) ColorClassifier {
	return ColorClassifierFunc(func(tracking.Box) classify.Color { return c })
}

// ShapeClassifier labels the silhouette inside a track's box on the
// current frame.
type ShapeClassifier interface {
	CropShape(box tracking.Box) classify.Shape
}

// ShapeClassifierFunc adapts a function to ShapeClassifier.
type ShapeClassifierFunc func(box tracking.Box) classify.Shape

// CropShape implements ShapeClassifier.
func (f ShapeClassifierFunc) CropShape(box tracking.Box) classify.Shape { return f(box) }

// FixedShape reports the same shape for every box.
func FixedShape(s classify.Shape) ShapeClassifier {
	return ShapeClassifierFunc(func(tracking.Box) classify.Shape { return s })
}

// Config holds the pipeline dependencies. Tracker is required; the rest
// are optional.
type Config struct {
	Tracker       *tracking.Tracker
	Classifier    ColorClassifier    // nil leaves every target unidentified
	FriendFoe     classify.FriendFoe // zero value uses DefaultFriendFoe
	Gate          safety.Gate
	Link          firelink.Link     // nil is a dry run
	Recorder      events.Recorder   // nil discards events
	Monitor       *monitor.Recorder // nil disables chart sampling
	MinStableHits int

	// TargetShape turns on the shape+colour double check: only targets of
	// this shape and TargetColor (default the foe colour) are engaged.
	TargetShape classify.Shape
	TargetColor classify.Color
	Shapes      ShapeClassifier // nil leaves every shape unknown

	// SmallArea splits targets into small and big by box area.
	SmallArea float64
	// RecordTracks writes one track event per live track per frame.
	RecordTracks bool
}

// Summary counts what a run did.
type Summary struct {
	Frames        int     `json:"frames"`
	Detections    int     `json:"detections"`
	Rejected      int     `json:"rejected_boxes"`
	TracksCreated int     `json:"tracks_created"`
	Fires         int     `json:"fires"`
	Vetoes        int     `json:"vetoes"`
	LastTime      float64 `json:"last_time"`
}

// Pipeline processes frames in order. ProcessFrame and Run must not be
// called concurrently; Summary and Tracks may be read from any goroutine.
type Pipeline struct {
	cfg     Config
	engaged map[int]bool

	mu      sync.Mutex
	summary Summary
}

// New builds a pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("engagement: tracker is required")
	}
	if cfg.FriendFoe == (classify.FriendFoe{}) {
		cfg.FriendFoe = classify.DefaultFriendFoe()
	}
	if cfg.Link == nil {
		cfg.Link = firelink.NopLink{}
	}
	if cfg.MinStableHits < 0 {
		cfg.MinStableHits = 0
	}
	if cfg.TargetColor == "" {
		cfg.TargetColor = cfg.FriendFoe.Foe
	}
	if cfg.SmallArea <= 0 {
		cfg.SmallArea = classify.DefaultSmallArea
	}
	return &Pipeline{cfg: cfg, engaged: make(map[int]bool)}, nil
}

// ProcessFrame runs one frame through the pipeline and returns the tracks
// the tracker reported for it.
func (p *Pipeline) ProcessFrame(f detection.Frame) ([]tracking.Snapshot, error) {
	// Step 1: Reject boxes the tracker must never see.
	boxes, rejected := detection.Sanitize(f.Boxes)
	if rejected > 0 {
		logf("frame %d: dropped %d degenerate boxes", f.Index, rejected)
	}

	// Step 2: Track.
	before := p.cfg.Tracker.Metrics().TracksCreated
	snaps := p.cfg.Tracker.Update(boxes)
	created := p.cfg.Tracker.Metrics().TracksCreated - before

	var errs []error
	if p.cfg.RecordTracks {
		for _, s := range snaps {
			errs = append(errs, p.record(events.Event{T: f.Time, Kind: events.KindTrack, TrackID: s.ID, Box: s.Box}))
		}
	}

	// Step 3: Engage tracks that just became stable.
	fires, vetoes := 0, 0
	for _, s := range snaps {
		if p.engaged[s.ID] || s.StableHits < p.cfg.MinStableHits {
			continue
		}
		p.engaged[s.ID] = true

		fired, err := p.engage(f.Time, s)
		errs = append(errs, err)
		if fired {
			fires++
		} else {
			vetoes++
		}
	}

	// Step 4: Bookkeeping.
	p.pruneEngaged(snaps)
	if p.cfg.Monitor != nil {
		p.cfg.Monitor.Observe(f.Index, snaps, fires, vetoes)
	}

	p.mu.Lock()
	p.summary.Frames++
	p.summary.Detections += len(f.Boxes)
	p.summary.Rejected += rejected
	p.summary.TracksCreated += created
	p.summary.Fires += fires
	p.summary.Vetoes += vetoes
	p.summary.LastTime = f.Time
	p.mu.Unlock()

	return snaps, errors.Join(errs...)
}

// engage decides on one stable track and records the outcome.
func (p *Pipeline) engage(t float64, s tracking.Snapshot) (bool, error) {
	color := classify.ColorUnknown
	if p.cfg.Classifier != nil {
		color = p.cfg.Classifier.CropColor(s.Box)
	}
	label := p.cfg.FriendFoe.Label(color)
	fields := map[string]string{
		events.FieldColor: string(color),
		events.FieldLabel: string(label),
		events.FieldType:  string(classify.SizeFromArea(s.Box.Area(), p.cfg.SmallArea)),
	}

	veto := func(reason string) (bool, error) {
		fields[events.FieldReason] = reason
		logf("track %d vetoed: %s (%s)", s.ID, reason, color)
		return false, p.record(events.Event{T: t, Kind: events.KindVeto, TrackID: s.ID, Box: s.Box, Fields: fields})
	}

	if label == classify.LabelFriend {
		return veto(ReasonFriend)
	}
	if p.cfg.TargetShape != "" {
		shape := classify.ShapeUnknown
		if p.cfg.Shapes != nil {
			shape = p.cfg.Shapes.CropShape(s.Box)
		}
		ok := classify.ShapeColorMatch(shape, color, p.cfg.TargetShape, p.cfg.TargetColor)
		fields[events.FieldShape] = string(shape)
		fields[events.FieldCorrect] = strconv.FormatBool(ok)
		if !ok {
			if color == classify.ColorUnknown {
				return veto(ReasonUnidentified)
			}
			return veto(ReasonWrongTarget)
		}
	} else if !p.cfg.FriendFoe.FireAllowed(color) {
		return veto(ReasonUnidentified)
	}
	if !p.cfg.Gate.Allows(s.Box) {
		return veto(ReasonNoFireZone)
	}

	cx, cy := s.Box.Center()
	if err := p.cfg.Link.Fire(s.ID, cx, cy); err != nil {
		logf("track %d: fire link error: %v", s.ID, err)
		return veto(ReasonLinkError)
	}

	logf("track %d engaged at (%.0f, %.0f)", s.ID, cx, cy)
	return true, p.record(events.Event{T: t, Kind: events.KindFire, TrackID: s.ID, Box: s.Box, Fields: fields})
}

// pruneEngaged forgets tracks that are no longer live. Ids are never
// reused, so this only bounds memory.
func (p *Pipeline) pruneEngaged(snaps []tracking.Snapshot) {
	if len(p.engaged) <= len(snaps) {
		return
	}
	live := make(map[int]bool, len(snaps))
	for _, s := range snaps {
		live[s.ID] = true
	}
	for id := range p.engaged {
		if !live[id] {
			delete(p.engaged, id)
		}
	}
}

func (p *Pipeline) record(e events.Event) error {
	if p.cfg.Recorder == nil {
		return nil
	}
	if err := p.cfg.Recorder.Record(e); err != nil {
		return fmt.Errorf("record %s event for track %d: %w", e.Kind, e.TrackID, err)
	}
	return nil
}

// Run pulls frames from src until it is exhausted or ctx is cancelled.
// Reaching the end of the source is not an error.
func (p *Pipeline) Run(ctx context.Context, src detection.Source) (Summary, error) {
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			s := p.Summary()
			logf("source exhausted after %d frames: %d fires, %d vetoes", s.Frames, s.Fires, s.Vetoes)
			return s, nil
		}
		if err != nil {
			return p.Summary(), err
		}
		if _, err := p.ProcessFrame(f); err != nil {
			return p.Summary(), fmt.Errorf("frame %d: %w", f.Index, err)
		}
	}
}

// Summary returns the counters so far.
func (p *Pipeline) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// Tracks returns the tracks reported for the latest frame.
func (p *Pipeline) Tracks() []tracking.Snapshot {
	return p.cfg.Tracker.Snapshots()
}
