package classify

import (
	"fmt"
	"math"
	"strings"
)

// Shape is a coarse balloon silhouette.
type Shape string

const (
	ShapeUnknown  Shape = "unknown"
	ShapeCircle   Shape = "circle"
	ShapeTriangle Shape = "triangle"
	ShapeSquare   Shape = "square"
)

// ParseShape accepts circle, triangle or square in any case.
func ParseShape(s string) (Shape, error) {
	switch sh := Shape(strings.ToLower(strings.TrimSpace(s))); sh {
	case ShapeCircle, ShapeTriangle, ShapeSquare:
		return sh, nil
	}
	return ShapeUnknown, fmt.Errorf("unknown shape %q", s)
}

// circularityCircle is the 4πA/P² value above which a contour counts as
// round regardless of its polygon vertex count.
const circularityCircle = 0.7

// Circularity returns 4πA/P², 1 for a perfect circle and 0 when the
// perimeter is not positive.
func Circularity(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// ShapeFromGeometry classifies a contour from its simplified vertex count,
// area and perimeter.
func ShapeFromGeometry(vertices int, area, perimeter float64) Shape {
	if perimeter <= 0 {
		return ShapeUnknown
	}
	if vertices >= 8 || Circularity(area, perimeter) > circularityCircle {
		return ShapeCircle
	}
	switch {
	case vertices == 3:
		return ShapeTriangle
	case vertices >= 4 && vertices <= 6:
		return ShapeSquare
	}
	return ShapeUnknown
}

// ShapeColorMatch is the double check before engaging a designated
// target: both the shape and the colour must agree.
func ShapeColorMatch(shape Shape, color Color, wantShape Shape, wantColor Color) bool {
	return shape == wantShape && color == wantColor
}

// Size is the small/big balloon class scored in stages 1 and 2.
type Size string

const (
	SizeSmall Size = "small"
	SizeBig   Size = "big"
)

// DefaultSmallArea is the pixel area below which a target counts as small.
const DefaultSmallArea = 1200.0

// SizeFromArea classifies a blob by its pixel area. A non-positive
// smallArea uses DefaultSmallArea.
func SizeFromArea(area, smallArea float64) Size {
	if smallArea <= 0 {
		smallArea = DefaultSmallArea
	}
	if area < smallArea {
		return SizeSmall
	}
	return SizeBig
}
