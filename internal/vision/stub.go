//go:build !opencv

package vision

import (
	"context"

	"github.com/banshee-data/target.range/internal/classify"
	"github.com/banshee-data/target.range/internal/detection"
	"github.com/banshee-data/target.range/internal/timeutil"
	"github.com/banshee-data/target.range/internal/tracking"
)

// VideoSource is a placeholder when OpenCV support is disabled.
type VideoSource struct{}

// OpenVideo always fails without OpenCV support.
func OpenVideo(source string, minArea float64, clock timeutil.Clock) (*VideoSource, error) {
	return nil, ErrUnavailable
}

// Next always fails without OpenCV support.
func (*VideoSource) Next(context.Context) (detection.Frame, error) {
	return detection.Frame{}, ErrUnavailable
}

// CropColor reports every crop as unknown.
func (*VideoSource) CropColor(tracking.Box) classify.Color { return classify.ColorUnknown }

// CropShape reports every crop as unknown.
func (*VideoSource) CropShape(tracking.Box) classify.Shape { return classify.ShapeUnknown }

// Close is a no-op.
func (*VideoSource) Close() error { return nil }
