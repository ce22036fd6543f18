// Package series turns stored observations into chart-ready points.
package series

import (
	"slices"
	"time"

	"github.com/guregu/null/v5"
	"github.com/montanaflynn/stats"

	"site-pulse/internal/model"
)

const (
	dayLabelLayout  = "02/01"
	timeLabelLayout = "15:04"
)

// Point is one labelled value. An invalid Latency is a gap, never zero.
type Point struct {
	Label   string     `json:"label"`
	Latency null.Float `json:"latency"`
}

// Gap reports whether the point carries no valid latency.
func (p Point) Gap() bool {
	return !p.Latency.Valid
}

// GlobalSeries maps daily averages to one DD/MM point per day.
func GlobalSeries(rows []model.DailyAverage) []Point {
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		label := row.Day
		if day, err := time.Parse(model.DayLayout, row.Day); err == nil {
			label = day.Format(dayLabelLayout)
		}
		points = append(points, Point{Label: label, Latency: null.FloatFrom(row.MeanLatencyMs)})
	}
	return points
}

// DaySeries maps one day's observations to HH:MM points. Only statuses the
// policy treats as reachable keep their latency; everything else is a gap.
func DaySeries(rows []model.Observation, policy model.StatusPolicy, loc *time.Location) []Point {
	if loc == nil {
		loc = time.Local
	}
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		p := Point{Label: row.Timestamp.In(loc).Format(timeLabelLayout)}
		if policy.Reachable(row.StatusCode) {
			p.Latency = null.FloatFrom(row.LatencyMs)
		}
		points = append(points, p)
	}
	return points
}

// RecentSeries is DaySeries for rows returned newest first.
func RecentSeries(rows []model.Observation, policy model.StatusPolicy, loc *time.Location) []Point {
	ordered := slices.Clone(rows)
	slices.Reverse(ordered)
	return DaySeries(ordered, policy, loc)
}

// Values returns the present latencies in order.
func Values(points []Point) []float64 {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Latency.Valid {
			values = append(values, p.Latency.Float64)
		}
	}
	return values
}

// Mean averages the present points; ok is false when every point is a gap.
func Mean(points []Point) (mean float64, ok bool) {
	values := Values(points)
	if len(values) == 0 {
		return 0, false
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, false
	}
	return mean, true
}
