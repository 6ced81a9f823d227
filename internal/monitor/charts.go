package monitor

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RenderCountsChart writes an HTML line chart of live tracks, fires and
// vetoes per frame.
func (r *Recorder) RenderCountsChart(w io.Writer, title string) error {
	samples := r.Samples()

	xs := make([]string, len(samples))
	live := make([]opts.LineData, len(samples))
	fires := make([]opts.LineData, len(samples))
	vetoes := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xs[i] = strconv.Itoa(s.Frame)
		live[i] = opts.LineData{Value: s.LiveTracks}
		fires[i] = opts.LineData{Value: s.Fires}
		vetoes[i] = opts.LineData{Value: s.Vetoes}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xs).
		AddSeries("live tracks", live).
		AddSeries("fires", fires).
		AddSeries("vetoes", vetoes)

	return line.Render(w)
}

// RenderTrailsPNG writes a PNG plot of every track's centre trail. Image
// rows grow downwards, so y is plotted negated to keep the picture upright.
func (r *Recorder) RenderTrailsPNG(w io.Writer, width, height vg.Length) error {
	trails := r.Trails()

	p := plot.New()
	p.Title.Text = "Track trails"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "-y (px)"

	ids := make([]int, 0, len(trails))
	for id, pts := range trails {
		if len(pts) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	palette := trailColors(len(ids))
	for i, id := range ids {
		pts := trails[id]
		xys := make(plotter.XYs, len(pts))
		for j, tp := range pts {
			xys[j] = plotter.XY{X: tp.X, Y: -tp.Y}
		}

		l, s, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("track %d: %w", id, err)
		}
		l.Color = palette[i]
		l.Width = vg.Points(1)
		s.Color = palette[i]
		s.Radius = vg.Points(1.5)
		p.Add(l, s)
		p.Legend.Add(fmt.Sprintf("track %d", id), l)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render trails: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// trailColors spreads n colours evenly around the hue circle.
func trailColors(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		h := float64(i) / float64(max(n, 1))
		out[i] = hsvColor(h, 0.75, 0.85)
	}
	return out
}

func hsvColor(h, s, v float64) color.Color {
	i := math.Floor(h * 6)
	f := h*6 - i
	p, q, t := v*(1-s), v*(1-f*s), v*(1-(1-f)*s)
	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
