//go:build opencv

package vision

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/banshee-data/target.range/internal/classify"
	"github.com/banshee-data/target.range/internal/detection"
	"github.com/banshee-data/target.range/internal/monitoring"
	"github.com/banshee-data/target.range/internal/timeutil"
	"github.com/banshee-data/target.range/internal/tracking"
)

// VideoSource runs a ColorDetector over a camera or video file and serves
// the result as a detection.Source. It keeps the latest frame so the
// engagement pipeline can classify track crops.
type VideoSource struct {
	capture  *gocv.VideoCapture
	detector *ColorDetector
	start    *timeutil.Stopwatch

	mu    sync.Mutex
	frame gocv.Mat
	index int
}

// OpenVideo opens source, which is either a device number ("0") or a
// file path or stream URL, and detects blobs of at least minArea pixels.
func OpenVideo(source string, minArea float64, clock timeutil.Clock) (*VideoSource, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(source); convErr == nil {
		vc, err = gocv.VideoCaptureDevice(id)
	} else {
		vc, err = gocv.VideoCaptureFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open video source %q: %w", source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("cannot open video source %q", source)
	}
	monitoring.Logf("[vision] opened %s", source)
	return &VideoSource{
		capture:  vc,
		detector: NewColorDetector(minArea),
		start:    timeutil.StartStopwatch(clock),
		frame:    gocv.NewMat(),
	}, nil
}

// Next reads and detects one frame. It returns io.EOF when the stream ends.
func (v *VideoSource) Next(ctx context.Context) (detection.Frame, error) {
	if err := ctx.Err(); err != nil {
		return detection.Frame{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if ok := v.capture.Read(&v.frame); !ok || v.frame.Empty() {
		return detection.Frame{}, io.EOF
	}

	t := v.capture.Get(gocv.VideoCapturePosMsec) / 1000
	if t <= 0 {
		t = v.start.Seconds()
	}
	f := detection.Frame{
		Index: v.index,
		Time:  t,
		Boxes: v.detector.Detect(v.frame),
	}
	v.index++
	return f, nil
}

// CropColor classifies box against the most recently read frame.
func (v *VideoSource) CropColor(box tracking.Box) classify.Color {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frame.Empty() {
		return classify.ColorUnknown
	}
	return CropColor(v.frame, box)
}

// CropShape classifies the silhouette inside box on the latest frame.
func (v *VideoSource) CropShape(box tracking.Box) classify.Shape {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frame.Empty() {
		return classify.ShapeUnknown
	}
	return v.detector.CropShape(v.frame, box)
}

// Close releases the capture device and the frame buffer.
func (v *VideoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frame.Close()
	return v.capture.Close()
}
