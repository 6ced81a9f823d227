package detection

import (
	"errors"
	"math"

	"github.com/banshee-data/target.range/internal/tracking"
)

// ErrDegenerateBox is returned by Check for boxes the tracker must never see.
var ErrDegenerateBox = errors.New("degenerate box")

// Check reports whether b is safe to hand to the tracker: finite corners
// and strictly positive width and height.
func Check(b tracking.Box) error {
	if !b.Valid() {
		return ErrDegenerateBox
	}
	return nil
}

// Sanitize returns the boxes that pass Check, in their original order,
// and the number dropped.
func Sanitize(boxes []tracking.Box) (kept []tracking.Box, rejected int) {
	kept = make([]tracking.Box, 0, len(boxes))
	for _, b := range boxes {
		if Check(b) != nil {
			rejected++
			continue
		}
		kept = append(kept, b)
	}
	return kept, rejected
}

// FromXYWH converts a top-left plus size rectangle to corner form.
func FromXYWH(x, y, w, h float64) tracking.Box {
	return tracking.Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// ToCXCYWH returns the centre and size of b.
func ToCXCYWH(b tracking.Box) (cx, cy, w, h float64) {
	cx, cy = b.Center()
	return cx, cy, b.Width(), b.Height()
}

// FromCXCYWH is the inverse of ToCXCYWH.
func FromCXCYWH(cx, cy, w, h float64) tracking.Box {
	return tracking.Box{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// Clip clamps b to a width x height image. The result may be degenerate
// when b lies entirely outside the image.
func Clip(b tracking.Box, width, height int) tracking.Box {
	w, h := float64(width), float64(height)
	return tracking.Box{
		X1: math.Max(0, math.Min(b.X1, w)),
		Y1: math.Max(0, math.Min(b.Y1, h)),
		X2: math.Max(0, math.Min(b.X2, w)),
		Y2: math.Max(0, math.Min(b.Y2, h)),
	}
}
