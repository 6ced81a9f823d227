package events

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/target.range/internal/tracking"
)

// Header is the fixed column set of the event log.
var Header = []string{"t", "event", "id", "x1", "y1", "x2", "y2"}

// CSVWriter writes events in the log format: the fixed columns followed
// by one key=value cell per field, sorted by key.
type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewCSVWriter returns a writer that emits the header before the first row.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Record writes one event and flushes it.
func (cw *CSVWriter) Record(e Event) error {
	if !cw.wroteHeader {
		if err := cw.w.Write(Header); err != nil {
			return err
		}
		cw.wroteHeader = true
	}

	row := []string{
		strconv.FormatFloat(e.T, 'f', 3, 64),
		e.Kind,
		strconv.Itoa(e.TrackID),
		pixel(e.Box.X1),
		pixel(e.Box.Y1),
		pixel(e.Box.X2),
		pixel(e.Box.Y2),
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row = append(row, k+"="+e.Fields[k])
	}

	if err := cw.w.Write(row); err != nil {
		return err
	}
	cw.w.Flush()
	return cw.w.Error()
}

// Flush writes the header if nothing has been recorded yet, so an empty
// session still produces a readable log.
func (cw *CSVWriter) Flush() error {
	if !cw.wroteHeader {
		if err := cw.w.Write(Header); err != nil {
			return err
		}
		cw.wroteHeader = true
	}
	cw.w.Flush()
	return cw.w.Error()
}

// pixel truncates a coordinate to a whole pixel.
func pixel(v float64) string {
	return strconv.Itoa(int(math.Trunc(v)))
}

// ReadCSV parses an event log. Columns other than the fixed ones (for
// example hand-added type, label or correct columns) and trailing
// key=value cells are collected into Fields. Empty numeric cells read as
// zero so hand-written hit rows need not carry a box.
func ReadCSV(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event log header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var out []Event
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		e, err := parseRow(header, rec)
		if err != nil {
			return nil, fmt.Errorf("event log row %d: %w", line, err)
		}
		out = append(out, e)
	}
}

func parseRow(header, rec []string) (Event, error) {
	var e Event
	for i, cell := range rec {
		cell = strings.TrimSpace(cell)
		name := ""
		if i < len(header) {
			name = header[i]
		}

		var err error
		switch name {
		case "t":
			e.T, err = parseFloat(cell)
		case "event":
			e.Kind = cell
		case "id":
			var f float64
			f, err = parseFloat(cell)
			e.TrackID = int(f)
		case "x1":
			e.Box.X1, err = parseFloat(cell)
		case "y1":
			e.Box.Y1, err = parseFloat(cell)
		case "x2":
			e.Box.X2, err = parseFloat(cell)
		case "y2":
			e.Box.Y2, err = parseFloat(cell)
		case "":
			if k, v, ok := strings.Cut(cell, "="); ok {
				e.setField(strings.TrimSpace(k), strings.TrimSpace(v))
			}
		default:
			if cell != "" {
				e.setField(name, cell)
			}
		}
		if err != nil {
			return Event{}, fmt.Errorf("column %q: %w", name, err)
		}
	}
	return e, nil
}

func (e *Event) setField(k, v string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[k] = v
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
