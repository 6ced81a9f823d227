package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/target.range/internal/api"
	"github.com/banshee-data/target.range/internal/classify"
	"github.com/banshee-data/target.range/internal/config"
	"github.com/banshee-data/target.range/internal/db"
	"github.com/banshee-data/target.range/internal/detection"
	"github.com/banshee-data/target.range/internal/engagement"
	"github.com/banshee-data/target.range/internal/events"
	"github.com/banshee-data/target.range/internal/firelink"
	"github.com/banshee-data/target.range/internal/monitor"
	"github.com/banshee-data/target.range/internal/safety"
	"github.com/banshee-data/target.range/internal/security"
	"github.com/banshee-data/target.range/internal/timeutil"
	"github.com/banshee-data/target.range/internal/tracking"
	"github.com/banshee-data/target.range/internal/vision"
)

// Detector backends for --det.
const (
	detFile = "file"
	detCV   = "cv"
)

type trackOptions struct {
	source        string
	det           string
	logPath       string
	dbPath        string
	session       string
	outDir        string
	maskPath      string
	firePort      string
	assumeColor   string
	assumeShape   string
	targetShape   string
	minStableHits int
	recordTracks  bool
	listen        string
	chartHTML     string
	trailsPNG     string
}

func newTrackCmd(root *rootOptions) *cobra.Command {
	o := &trackOptions{}
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track targets and engage stable foes",
		Long: `track reads detections frame by frame, keeps a track per target and
engages each track once it has been matched --min-stable-hits times: foe
coloured targets outside the no-fire zone are fired on, everything else
is vetoed. Every decision is written to the event log.

With --target-shape (or target_shape in the tuning file) only targets of
that shape and the target colour are engaged, and each decision records
whether the target was the correct one.

With --det file the source is a CSV (frame,t,x1,y1,x2,y2) or JSONL
detection log. Recorded detections carry no imagery, so colours come from
--assume-color and shapes from --assume-shape; without them every target
is unidentified and vetoed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.tuning()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("min-stable-hits") {
				o.minStableHits = cfg.GetMinStableHitsToFire()
			}
			if !cmd.Flags().Changed("target-shape") {
				o.targetShape = cfg.GetTargetShape()
			}
			return o.run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.source, "source", "", "Detection log, video file, stream URL or camera index")
	f.StringVar(&o.det, "det", detFile, "Detector backend: file or cv")
	f.StringVar(&o.logPath, "log", "", "Write the event log CSV here")
	f.StringVar(&o.dbPath, "db", "", "Record the session into this database")
	f.StringVar(&o.session, "session", "", "Session name (defaults to the source file name)")
	f.StringVar(&o.outDir, "out-dir", "", "Write the event log and charts not named explicitly into this directory")
	f.StringVar(&o.maskPath, "mask", "", "No-fire polygon JSON (overrides no_fire_mask)")
	f.StringVar(&o.firePort, "fire-port", "", "Fire-control serial port (overrides fire_port; empty is a dry run)")
	f.StringVar(&o.assumeColor, "assume-color", "", "Colour of every target when replaying a detection log")
	f.StringVar(&o.assumeShape, "assume-shape", "", "Shape of every target when replaying a detection log")
	f.StringVar(&o.targetShape, "target-shape", "", "Engage only this shape in the target colour (overrides target_shape)")
	f.IntVar(&o.minStableHits, "min-stable-hits", 0, "Matches before a track is engaged (overrides min_stable_hits_to_fire)")
	f.BoolVar(&o.recordTracks, "record-tracks", true, "Log a track event for every live track on every frame")
	f.StringVar(&o.listen, "listen", "", "Serve the live API on this address while tracking")
	f.StringVar(&o.chartHTML, "chart", "", "Write an HTML chart of live tracks per frame")
	f.StringVar(&o.trailsPNG, "trails", "", "Write a PNG plot of track trails")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (o *trackOptions) run(ctx context.Context, out io.Writer, cfg *config.TuningConfig) (err error) {
	if err := o.resolveArtifacts(); err != nil {
		return err
	}

	// Step 1: Detections and, for live video, the crop classifiers.
	src, classifier, shapes, err := o.openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	ff, err := classify.NewFriendFoe(cfg.GetFriendColor(), cfg.GetFoeColor())
	if err != nil {
		return err
	}
	target, targetColor, err := o.target(cfg)
	if err != nil {
		return err
	}

	// Step 2: Safety gate and fire link.
	gate, err := o.gate(cfg)
	if err != nil {
		return err
	}
	link, err := o.link(cfg)
	if err != nil {
		return err
	}
	defer link.Close()

	// Step 3: Event sinks.
	var recs events.MultiRecorder
	if o.logPath != "" {
		f, ferr := os.Create(filepath.Clean(o.logPath))
		if ferr != nil {
			return ferr
		}
		csvw := events.NewCSVWriter(f)
		defer func() {
			err = errors.Join(err, csvw.Flush(), f.Close())
		}()
		recs = append(recs, csvw)
	}

	var store *db.DB
	if o.dbPath != "" {
		store, err = db.NewDB(o.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := store.CreateSession(o.sessionName())
		if err != nil {
			return err
		}
		logf("recording session %s (%s)", sess.ID, sess.Name)
		recs = append(recs, db.SessionRecorder{DB: store, SessionID: sess.ID})
	}

	// Step 4: Pipeline.
	mon := monitor.NewRecorder(0)
	var recorder events.Recorder
	if len(recs) > 0 {
		recorder = recs
	}
	p, err := engagement.New(engagement.Config{
		Tracker:       tracking.NewTracker(tracking.ConfigFromTuning(cfg)),
		Classifier:    classifier,
		FriendFoe:     ff,
		Gate:          gate,
		Link:          link,
		Recorder:      recorder,
		Monitor:       mon,
		MinStableHits: o.minStableHits,
		RecordTracks:  o.recordTracks,
		TargetShape:   target,
		TargetColor:   targetColor,
		Shapes:        shapes,
		SmallArea:     cfg.GetSmallArea(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if o.listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := serveHTTP(runCtx, o.listen, api.Options{
				DB:            store,
				Live:          p,
				Monitor:       mon,
				StageDuration: cfg.GetStageDuration().Seconds(),
			})
			if err != nil {
				logf("live API stopped: %v", err)
			}
		}()
	}

	// Step 5: Run until the source ends or we are interrupted.
	sum, runErr := p.Run(runCtx, src)
	cancel()
	wg.Wait()
	if errors.Is(runErr, context.Canceled) {
		logf("interrupted after %d frames", sum.Frames)
		runErr = nil
	}
	if runErr != nil {
		return runErr
	}

	stats := mon.Summary()
	fmt.Fprintf(out, "frames=%d detections=%d rejected=%d tracks=%d fires=%d vetoes=%d\n",
		sum.Frames, sum.Detections, sum.Rejected, sum.TracksCreated, sum.Fires, sum.Vetoes)
	fmt.Fprintf(out, "track lifetime %.1f±%.1f frames, stable hits %.1f±%.1f\n",
		stats.MeanLifetime, stats.StdLifetime, stats.MeanHits, stats.StdHits)

	return o.writeCharts(mon)
}

func (o *trackOptions) sessionName() string {
	if o.session != "" {
		return o.session
	}
	return filepath.Base(o.source)
}

// resolveArtifacts fills the output paths left empty with per-session
// names under --out-dir.
func (o *trackOptions) resolveArtifacts() error {
	if o.outDir == "" {
		return nil
	}
	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return err
	}
	for _, a := range []struct {
		path   *string
		suffix string
	}{
		{&o.logPath, "-events.csv"},
		{&o.chartHTML, "-tracks.html"},
		{&o.trailsPNG, "-trails.png"},
	} {
		if *a.path != "" {
			continue
		}
		p, err := security.ArtifactPath(o.outDir, o.sessionName(), a.suffix)
		if err != nil {
			return err
		}
		*a.path = p
	}
	return nil
}

func (o *trackOptions) openSource(cfg *config.TuningConfig) (detection.Source, engagement.ColorClassifier, engagement.ShapeClassifier, error) {
	switch o.det {
	case detFile:
		src, err := detection.OpenFile(o.source)
		if err != nil {
			return nil, nil, nil, err
		}
		colors, shapes, err := o.assumed()
		if err != nil {
			src.Close()
			return nil, nil, nil, err
		}
		return src, colors, shapes, nil
	case detCV:
		vs, err := vision.OpenVideo(o.source, cfg.GetMinContourArea(), timeutil.RealClock{})
		if err != nil {
			return nil, nil, nil, err
		}
		return vs, vs, vs, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown detector %q: expected %s or %s", o.det, detFile, detCV)
}

// assumed builds the fixed classifiers for a replay from --assume-color
// and --assume-shape. Either may be nil.
func (o *trackOptions) assumed() (engagement.ColorClassifier, engagement.ShapeClassifier, error) {
	var (
		colors engagement.ColorClassifier
		shapes engagement.ShapeClassifier
	)
	if o.assumeColor == "" {
		logf("no --assume-color: every target will be vetoed as unidentified")
	} else {
		c, err := classify.ParseColor(o.assumeColor)
		if err != nil {
			return nil, nil, err
		}
		colors = engagement.FixedColor(c)
	}
	if o.assumeShape != "" {
		sh, err := classify.ParseShape(o.assumeShape)
		if err != nil {
			return nil, nil, err
		}
		shapes = engagement.FixedShape(sh)
	}
	return colors, shapes, nil
}

// target resolves the designated shape and colour for the double check.
// An empty shape leaves it off.
func (o *trackOptions) target(cfg *config.TuningConfig) (classify.Shape, classify.Color, error) {
	if o.targetShape == "" {
		return "", "", nil
	}
	sh, err := classify.ParseShape(o.targetShape)
	if err != nil {
		return "", "", err
	}
	c, err := classify.ParseColor(cfg.GetTargetColor())
	if err != nil {
		return "", "", err
	}
	logf("designated target: %s %s", c, sh)
	return sh, c, nil
}

func (o *trackOptions) gate(cfg *config.TuningConfig) (safety.Gate, error) {
	path := o.maskPath
	if path == "" {
		path = cfg.GetNoFireMask()
	}
	if path == "" {
		return safety.Gate{}, nil
	}
	m, err := safety.LoadMaskSize(path, cfg.GetImageWidth(), cfg.GetImageHeight())
	if err != nil {
		return safety.Gate{}, err
	}
	logf("no-fire zone: %d vertices on a %dx%d frame", len(m.Vertices), m.Width, m.Height)
	return safety.Gate{Mask: m}, nil
}

func (o *trackOptions) link(cfg *config.TuningConfig) (firelink.Link, error) {
	port := o.firePort
	if port == "" {
		port = cfg.GetFirePort()
	}
	if port == "" {
		logf("no fire port configured: dry run")
		return firelink.NopLink{}, nil
	}
	l, err := firelink.Open(port, firelink.PortOptions{BaudRate: cfg.GetFireBaudRate()})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (o *trackOptions) writeCharts(mon *monitor.Recorder) error {
	if o.chartHTML != "" {
		if err := writeFile(o.chartHTML, func(w io.Writer) error {
			return mon.RenderCountsChart(w, "Live tracks: "+filepath.Base(o.source))
		}); err != nil {
			return err
		}
	}
	if o.trailsPNG != "" {
		if err := writeFile(o.trailsPNG, func(w io.Writer) error {
			return mon.RenderTrailsPNG(w, 8*vg.Inch, 6*vg.Inch)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
