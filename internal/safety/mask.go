// Package safety vetoes fire commands aimed into a no-fire zone.
//
// A zone is a polygon written in normalised image coordinates (0..1) and
// scaled to pixels for a given frame size when loaded.
package safety

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/target.range/internal/tracking"
)

// Frame size assumed when the mask file does not name one.
const (
	DefaultImageWidth  = 1280
	DefaultImageHeight = 720
)

// ErrEmptyPolygon is returned for masks with fewer than three vertices.
var ErrEmptyPolygon = errors.New("no-fire polygon needs at least 3 vertices")

// Point is a pixel position.
type Point struct {
	X, Y float64
}

// Mask is a no-fire polygon in pixel coordinates.
type Mask struct {
	Width    int
	Height   int
	Vertices []Point
}

type maskFile struct {
	ImageWidth  int          `json:"image_width"`
	ImageHeight int          `json:"image_height"`
	Polygon     [][2]float64 `json:"polygon"`
}

// LoadMask reads a mask file from disk.
func LoadMask(path string) (*Mask, error) {
	return LoadMaskSize(path, DefaultImageWidth, DefaultImageHeight)
}

// LoadMaskSize reads a mask file, using width and height as the frame
// size when the file does not name one.
func LoadMaskSize(path string, width, height int) (*Mask, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read no-fire mask: %w", err)
	}
	m, err := ParseMaskSize(data, width, height)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseMask decodes {"image_width":W,"image_height":H,"polygon":[[x,y],...]}.
// Vertices are scaled by the frame size and truncated to whole pixels.
func ParseMask(data []byte) (*Mask, error) {
	return ParseMaskSize(data, DefaultImageWidth, DefaultImageHeight)
}

// ParseMaskSize is ParseMask with a caller-supplied fallback frame size.
func ParseMaskSize(data []byte, width, height int) (*Mask, error) {
	var mf maskFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse no-fire mask: %w", err)
	}
	if len(mf.Polygon) < 3 {
		return nil, ErrEmptyPolygon
	}
	if width <= 0 {
		width = DefaultImageWidth
	}
	if height <= 0 {
		height = DefaultImageHeight
	}

	m := &Mask{Width: mf.ImageWidth, Height: mf.ImageHeight}
	if m.Width <= 0 {
		m.Width = width
	}
	if m.Height <= 0 {
		m.Height = height
	}
	m.Vertices = make([]Point, len(mf.Polygon))
	for i, p := range mf.Polygon {
		m.Vertices[i] = Point{
			X: float64(int(p[0] * float64(m.Width))),
			Y: float64(int(p[1] * float64(m.Height))),
		}
	}
	return m, nil
}

// Contains reports whether (x, y) is inside the polygon or on its edge.
func (m *Mask) Contains(x, y float64) bool {
	n := len(m.Vertices)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := m.Vertices[j], m.Vertices[i]
		if onSegment(a, b, x, y) {
			return true
		}
		if (b.Y > y) != (a.Y > y) {
			xCross := b.X + (y-b.Y)*(a.X-b.X)/(a.Y-b.Y)
			if x < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(a, b Point, x, y float64) bool {
	cross := (b.X-a.X)*(y-a.Y) - (b.Y-a.Y)*(x-a.X)
	if cross != 0 {
		return false
	}
	return x >= min(a.X, b.X) && x <= max(a.X, b.X) &&
		y >= min(a.Y, b.Y) && y <= max(a.Y, b.Y)
}

// Gate decides whether a box may be engaged. A nil Mask allows everything.
type Gate struct {
	Mask *Mask
}

// Allows is false when the centre of box lies in the no-fire zone.
func (g Gate) Allows(box tracking.Box) bool {
	if g.Mask == nil {
		return true
	}
	return !g.Mask.Contains(box.Center())
}
