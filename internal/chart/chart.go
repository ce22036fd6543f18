// Package chart renders latency series as PNG images.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"site-pulse/internal/series"
)

const (
	DefaultWidth  = 1000
	DefaultHeight = 500

	// MaxXLabels is the most x-axis labels drawn before thinning kicks in.
	MaxXLabels = 10

	minYMax     = 100.0
	yHeadroom   = 1.25
	defaultYMax = 100.0
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

var (
	lineColor = drawing.ColorFromHex("2f80ed")
	fillColor = lineColor.WithAlpha(48)
	gapColor  = drawing.ColorFromHex("eb5757")
	meanColor = drawing.ColorFromHex("828282")
)

// Renderer draws filled latency charts. The zero value uses the default size.
type Renderer struct {
	Width  int
	Height int
}

func NewRenderer(width, height int) *Renderer {
	return &Renderer{Width: width, Height: height}
}

// layout is the renderer's reading of a series, independent of drawing.
type layout struct {
	segments [][]int // runs of consecutive present points
	gaps     []int
	ticks    []int
	mean     float64
	hasMean  bool
	yMax     float64
}

func plan(points []series.Point) layout {
	var l layout
	var run []int
	for i, p := range points {
		if p.Gap() {
			if len(run) > 0 {
				l.segments = append(l.segments, run)
				run = nil
			}
			l.gaps = append(l.gaps, i)
			continue
		}
		run = append(run, i)
	}
	if len(run) > 0 {
		l.segments = append(l.segments, run)
	}

	l.mean, l.hasMean = series.Mean(points)
	l.yMax = defaultYMax
	if values := series.Values(points); len(values) > 0 {
		maxValue := values[0]
		for _, v := range values[1:] {
			maxValue = math.Max(maxValue, v)
		}
		l.yMax = math.Max(maxValue*yHeadroom, minYMax)
	}
	l.ticks = thinTicks(len(points), MaxXLabels)
	return l
}

// thinTicks picks at most limit evenly spaced indexes out of n, always
// including the first and the last.
func thinTicks(n, limit int) []int {
	if n <= 0 {
		return nil
	}
	if n <= limit || limit < 2 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, 0, limit)
	step := float64(n-1) / float64(limit-1)
	for k := 0; k < limit; k++ {
		idx = append(idx, int(math.Round(float64(k)*step)))
	}
	return idx
}

// Render plots points under title and returns the encoded PNG.
func (r *Renderer) Render(points []series.Point, title string) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	graph := r.build(points, title)

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// build lays points out on x = 1..n. go-chart takes the x range from the
// ticks, so unlabeled ticks at 0.5 and n+0.5 pin half a slot of margin on
// both sides and keep a single point renderable.
func (r *Renderer) build(points []series.Point, title string) gochart.Chart {
	l := plan(points)
	xOf := func(i int) float64 { return float64(i + 1) }
	xMin, xMax := 0.5, float64(len(points))+0.5

	var plotted []gochart.Series
	for _, run := range l.segments {
		xs := make([]float64, len(run))
		ys := make([]float64, len(run))
		for j, i := range run {
			xs[j] = xOf(i)
			ys[j] = points[i].Latency.Float64
		}
		plotted = append(plotted, gochart.ContinuousSeries{
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: lineColor,
				StrokeWidth: 2,
				FillColor:   fillColor,
				DotColor:    lineColor,
				DotWidth:    2.5,
			},
		})
	}

	// Each gap is its own one-point series so nothing connects the markers.
	for _, i := range l.gaps {
		plotted = append(plotted, gochart.ContinuousSeries{
			XValues: []float64{xOf(i)},
			YValues: []float64{0},
			Style: gochart.Style{
				StrokeColor: gapColor,
				StrokeWidth: 1,
				DotColor:    gapColor,
				DotWidth:    4,
			},
		})
	}

	if l.hasMean {
		label := fmt.Sprintf("avg %.0f ms", math.Round(l.mean))
		plotted = append(plotted,
			gochart.ContinuousSeries{
				XValues: []float64{xMin, xMax},
				YValues: []float64{l.mean, l.mean},
				Style: gochart.Style{
					StrokeColor:     meanColor,
					StrokeWidth:     1.5,
					StrokeDashArray: []float64{6, 4},
				},
			},
			gochart.AnnotationSeries{
				Annotations: []gochart.Value2{{XValue: xMax, YValue: l.mean, Label: label}},
			},
		)
	}

	ticks := make([]gochart.Tick, 0, len(l.ticks)+2)
	ticks = append(ticks, gochart.Tick{Value: xMin})
	for _, i := range l.ticks {
		ticks = append(ticks, gochart.Tick{Value: xOf(i), Label: points[i].Label})
	}
	ticks = append(ticks, gochart.Tick{Value: xMax})

	width, height := r.Width, r.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	return gochart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 90, Bottom: 20}},
		XAxis: gochart.XAxis{
			Ticks: ticks,
			Range: &gochart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: gochart.YAxis{
			Name:           "ms",
			Range:          &gochart.ContinuousRange{Min: 0, Max: l.yMax},
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.0f", v) },
		},
		Series: plotted,
	}
}
