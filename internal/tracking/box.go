package tracking

import "math"

// iouEpsilon keeps IoU finite when both boxes are degenerate.
const iouEpsilon = 1e-6

// Box is an axis-aligned rectangle in frame pixel coordinates.
// Callers must ensure X2 > X1 and Y2 > Y1.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Velocity is the per-frame displacement of each box corner.
type Velocity struct {
	VX1 float64 `json:"vx1"`
	VY1 float64 `json:"vy1"`
	VX2 float64 `json:"vx2"`
	VY2 float64 `json:"vy2"`
}

// Width returns X2 - X1.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns Width * Height.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Center returns the box centre.
func (b Box) Center() (x, y float64) {
	return b.X1 + b.Width()/2, b.Y1 + b.Height()/2
}

// Valid reports whether the box has finite coordinates and positive
// width and height.
func (b Box) Valid() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// advance moves every corner by v.
func (b Box) advance(v Velocity) Box {
	return Box{
		X1: b.X1 + v.VX1,
		Y1: b.Y1 + v.VY1,
		X2: b.X2 + v.VX2,
		Y2: b.Y2 + v.VY2,
	}
}

// delta returns the corner displacement from prev to b.
func (b Box) delta(prev Box) Velocity {
	return Velocity{
		VX1: b.X1 - prev.X1,
		VY1: b.Y1 - prev.Y1,
		VX2: b.X2 - prev.X2,
		VY2: b.Y2 - prev.Y2,
	}
}

// IoU returns the intersection-over-union of a and b: the overlapping
// area divided by the combined area. It is 0 for boxes that do not
// overlap, 1 for identical boxes, and symmetric in its arguments.
func IoU(a, b Box) float64 {
	w := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	h := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	inter := w * h
	union := a.Area() + b.Area() - inter
	if union < iouEpsilon {
		union = iouEpsilon
	}
	return inter / union
}
