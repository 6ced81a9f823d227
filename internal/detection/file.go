package detection

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/target.range/internal/tracking"
)

// frameReader decodes one recorded frame at a time.
type frameReader interface {
	readFrame() (Frame, error)
}

// FileSource replays recorded detections. Frame indices missing from the
// recording are emitted as empty frames so the tracker still ages its
// tracks once per video frame; such gap frames carry the last known time.
type FileSource struct {
	closer io.Closer
	reader frameReader

	expect   int
	lastTime float64
	pending  *Frame
}

// OpenFile opens a detections file, choosing the decoder by extension:
// .csv, or .jsonl/.ndjson for JSON lines.
func OpenFile(path string) (*FileSource, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".jsonl" && ext != ".ndjson" {
		return nil, fmt.Errorf("unsupported detections file extension %q", ext)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open detections file: %w", err)
	}

	var src *FileSource
	if ext == ".csv" {
		src, err = NewCSVSource(f)
	} else {
		src = NewJSONLSource(f)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewCSVSource reads detections in CSV form with the header
// frame,t,x1,y1,x2,y2. Rows of one frame must be adjacent; a row with
// empty box cells records a frame without detections.
func NewCSVSource(r io.Reader) (*FileSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"frame", "x1", "y1", "x2", "y2"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("CSV header missing column %q", name)
		}
	}
	return &FileSource{reader: &csvFrames{r: cr, cols: cols}}, nil
}

// NewJSONLSource reads one JSON object per line:
// {"frame":0,"t":0.033,"boxes":[[x1,y1,x2,y2],...]}.
func NewJSONLSource(r io.Reader) *FileSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &FileSource{reader: &jsonlFrames{sc: sc}}
}

// Next returns the next frame, filling gaps in the recorded frame indices.
func (s *FileSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	if s.pending == nil {
		f, err := s.reader.readFrame()
		if err != nil {
			return Frame{}, err
		}
		if f.Index < s.expect {
			return Frame{}, fmt.Errorf("frame %d out of order (expected >= %d)", f.Index, s.expect)
		}
		s.pending = &f
	}

	if s.pending.Index > s.expect {
		gap := Frame{Index: s.expect, Time: s.lastTime}
		s.expect++
		return gap, nil
	}

	out := *s.pending
	s.pending = nil
	s.expect = out.Index + 1
	s.lastTime = out.Time
	return out, nil
}

// Close closes the underlying file, if any.
func (s *FileSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type csvFrames struct {
	r    *csv.Reader
	cols map[string]int
	peek []string
	line int
}

func (c *csvFrames) next() ([]string, error) {
	if c.peek != nil {
		rec := c.peek
		c.peek = nil
		return rec, nil
	}
	for {
		rec, err := c.r.Read()
		if err != nil {
			return nil, err
		}
		c.line++
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, nil
	}
}

func (c *csvFrames) cell(rec []string, name string) string {
	i, ok := c.cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (c *csvFrames) readFrame() (Frame, error) {
	rec, err := c.next()
	if err != nil {
		return Frame{}, err
	}

	index, err := strconv.Atoi(c.cell(rec, "frame"))
	if err != nil {
		return Frame{}, fmt.Errorf("row %d: invalid frame: %w", c.line, err)
	}
	f := Frame{Index: index}
	if ts := c.cell(rec, "t"); ts != "" {
		if f.Time, err = strconv.ParseFloat(ts, 64); err != nil {
			return Frame{}, fmt.Errorf("row %d: invalid t: %w", c.line, err)
		}
	}

	for {
		box, ok, err := c.box(rec)
		if err != nil {
			return Frame{}, err
		}
		if ok {
			f.Boxes = append(f.Boxes, box)
		}

		rec, err = c.next()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return Frame{}, err
		}
		if n, err := strconv.Atoi(c.cell(rec, "frame")); err != nil || n != index {
			c.peek = rec
			return f, nil
		}
	}
}

// box parses the corner cells of rec. ok is false when all four are empty.
func (c *csvFrames) box(rec []string) (tracking.Box, bool, error) {
	names := [4]string{"x1", "y1", "x2", "y2"}
	var v [4]float64
	empty := 0
	for i, name := range names {
		s := c.cell(rec, name)
		if s == "" {
			empty++
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return tracking.Box{}, false, fmt.Errorf("row %d: invalid %s: %w", c.line, name, err)
		}
		v[i] = f
	}
	switch empty {
	case 4:
		return tracking.Box{}, false, nil
	case 0:
		return tracking.Box{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, true, nil
	default:
		return tracking.Box{}, false, fmt.Errorf("row %d: incomplete box", c.line)
	}
}

type jsonlFrames struct {
	sc   *bufio.Scanner
	line int
}

type jsonlRecord struct {
	Frame int          `json:"frame"`
	T     float64      `json:"t"`
	Boxes [][4]float64 `json:"boxes"`
}

func (j *jsonlFrames) readFrame() (Frame, error) {
	for j.sc.Scan() {
		j.line++
		line := strings.TrimSpace(j.sc.Text())
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return Frame{}, fmt.Errorf("line %d: %w", j.line, err)
		}
		f := Frame{Index: rec.Frame, Time: rec.T, Boxes: make([]tracking.Box, 0, len(rec.Boxes))}
		for _, b := range rec.Boxes {
			f.Boxes = append(f.Boxes, tracking.Box{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]})
		}
		return f, nil
	}
	if err := j.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
