//go:build opencv

package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/banshee-data/target.range/internal/classify"
	"github.com/banshee-data/target.range/internal/tracking"
)

// syntheticFrame draws filled blobs on a grey background.
func syntheticFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(128, 128, 128, 0))

	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	gocv.Circle(&frame, image.Pt(60, 60), 25, red, -1)
	gocv.Rectangle(&frame, image.Rect(180, 120, 240, 180), green, -1)
	// Too small to pass the area filter.
	gocv.Rectangle(&frame, image.Rect(10, 200, 16, 206), red, -1)
	return frame
}

func TestColorDetector_Detect(t *testing.T) {
	frame := syntheticFrame(t)
	defer frame.Close()

	boxes := NewColorDetector(DefaultMinArea).Detect(frame)
	require.Len(t, boxes, 2)

	var sawCircle, sawSquare bool
	for _, b := range boxes {
		cx, cy := b.Center()
		switch {
		case cx > 50 && cx < 70 && cy > 50 && cy < 70:
			sawCircle = true
			assert.InDelta(t, 51, b.Width(), 3)
		case cx > 200 && cx < 220 && cy > 140 && cy < 160:
			sawSquare = true
			assert.InDelta(t, 61, b.Width(), 3)
		}
	}
	assert.True(t, sawCircle, "red circle not detected")
	assert.True(t, sawSquare, "green square not detected")
}

func TestColorDetector_GreyFrameHasNoDetections(t *testing.T) {
	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(128, 128, 128, 0))

	assert.Empty(t, NewColorDetector(DefaultMinArea).Detect(frame))
}

func TestCropColor(t *testing.T) {
	frame := syntheticFrame(t)
	defer frame.Close()

	assert.Equal(t, classify.ColorGreen, CropColor(frame, tracking.Box{X1: 185, Y1: 125, X2: 235, Y2: 175}))
	assert.Equal(t, classify.ColorRed, CropColor(frame, tracking.Box{X1: 50, Y1: 50, X2: 70, Y2: 70}))
	assert.Equal(t, classify.ColorUnknown, CropColor(frame, tracking.Box{X1: 400, Y1: 400, X2: 410, Y2: 410}))
}

func TestCropShape(t *testing.T) {
	frame := syntheticFrame(t)
	defer frame.Close()

	d := NewColorDetector(DefaultMinArea)
	assert.Equal(t, classify.ShapeCircle, d.CropShape(frame, tracking.Box{X1: 25, Y1: 25, X2: 95, Y2: 95}))
	assert.Equal(t, classify.ShapeUnknown, d.CropShape(frame, tracking.Box{X1: 100, Y1: 10, X2: 150, Y2: 50}))
}

func TestCropRect(t *testing.T) {
	t.Parallel()

	r := cropRect(tracking.Box{X1: -5.5, Y1: 10.2, X2: 30.1, Y2: 500}, 320, 240)
	assert.Equal(t, image.Rect(0, 10, 31, 240), r)
	assert.True(t, cropRect(tracking.Box{X1: 400, Y1: 0, X2: 410, Y2: 5}, 320, 240).Empty())
}
