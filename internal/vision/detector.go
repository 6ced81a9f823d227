//go:build opencv

package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/target.range/internal/classify"
	"github.com/banshee-data/target.range/internal/tracking"
)

// HSVRange is an inclusive OpenCV HSV threshold (H 0..180, S and V 0..255).
type HSVRange struct {
	Lo [3]float64
	Hi [3]float64
}

// DefaultRanges covers red (both ends of the hue circle), blue and green
// balloons.
var DefaultRanges = []HSVRange{
	{Lo: [3]float64{0, 90, 80}, Hi: [3]float64{10, 255, 255}},
	{Lo: [3]float64{170, 90, 80}, Hi: [3]float64{180, 255, 255}},
	{Lo: [3]float64{95, 80, 60}, Hi: [3]float64{130, 255, 255}},
	{Lo: [3]float64{40, 60, 60}, Hi: [3]float64{85, 255, 255}},
}

// approxEpsilon is the polygon simplification tolerance as a fraction of
// the contour perimeter.
const approxEpsilon = 0.03

// ColorDetector finds saturated colour blobs and returns their bounding
// boxes.
type ColorDetector struct {
	Ranges  []HSVRange
	MinArea float64
}

// NewColorDetector returns a detector with the default thresholds.
func NewColorDetector(minArea float64) *ColorDetector {
	if minArea < 0 {
		minArea = DefaultMinArea
	}
	return &ColorDetector{Ranges: DefaultRanges, MinArea: minArea}
}

// Mask returns the cleaned binary mask of frame (BGR). The caller owns
// the returned Mat.
func (d *ColorDetector) Mask(frame gocv.Mat) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
	part := gocv.NewMat()
	defer part.Close()
	for _, r := range d.Ranges {
		gocv.InRangeWithScalar(hsv,
			gocv.NewScalar(r.Lo[0], r.Lo[1], r.Lo[2], 0),
			gocv.NewScalar(r.Hi[0], r.Hi[1], r.Hi[2], 0),
			&part)
		gocv.BitwiseOr(mask, part, &mask)
	}

	open := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer open.Close()
	closeKernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(5, 5))
	defer closeKernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, open)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, closeKernel)
	return mask
}

// Detect returns one box per external contour of at least MinArea pixels,
// in contour order.
func (d *ColorDetector) Detect(frame gocv.Mat) []tracking.Box {
	mask := d.Mask(frame)
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	boxes := make([]tracking.Box, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < d.MinArea {
			continue
		}
		r := gocv.BoundingRect(c)
		boxes = append(boxes, tracking.Box{
			X1: float64(r.Min.X), Y1: float64(r.Min.Y),
			X2: float64(r.Max.X), Y2: float64(r.Max.Y),
		})
	}
	return boxes
}

// cropRect converts box to whole pixels inside a cols x rows image.
func cropRect(box tracking.Box, cols, rows int) image.Rectangle {
	r := image.Rect(
		int(math.Floor(box.X1)), int(math.Floor(box.Y1)),
		int(math.Ceil(box.X2)), int(math.Ceil(box.Y2)),
	)
	return r.Intersect(image.Rect(0, 0, cols, rows))
}

// CropColor returns the colour of the mean hue inside box.
func CropColor(frame gocv.Mat, box tracking.Box) classify.Color {
	r := cropRect(box, frame.Cols(), frame.Rows())
	if r.Empty() {
		return classify.ColorUnknown
	}
	roi := frame.Region(r)
	defer roi.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)
	return classify.ColorFromHue(hsv.Mean().Val1)
}

// CropShape classifies the largest colour blob inside box.
func (d *ColorDetector) CropShape(frame gocv.Mat, box tracking.Box) classify.Shape {
	r := cropRect(box, frame.Cols(), frame.Rows())
	if r.Empty() {
		return classify.ShapeUnknown
	}
	roi := frame.Region(r)
	defer roi.Close()

	mask := d.Mask(roi)
	defer mask.Close()
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best, bestArea := -1, 0.0
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > bestArea {
			best, bestArea = i, a
		}
	}
	if best < 0 {
		return classify.ShapeUnknown
	}

	c := contours.At(best)
	perimeter := gocv.ArcLength(c, true)
	approx := gocv.ApproxPolyDP(c, approxEpsilon*perimeter, true)
	defer approx.Close()
	return classify.ShapeFromGeometry(approx.Size(), bestArea, perimeter)
}
