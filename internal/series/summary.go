package series

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"site-pulse/internal/model"
)

// Summary is the textual digest of a set of observations.
type Summary struct {
	Total         int     `json:"total"`
	Reachable     int     `json:"reachable"`
	Failed        int     `json:"failed"`
	UptimePercent float64 `json:"uptime_percent"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
}

// Summarize counts reachable samples and computes latency statistics over them.
func Summarize(rows []model.Observation, policy model.StatusPolicy) Summary {
	sum := Summary{Total: len(rows)}
	latencies := make([]float64, 0, len(rows))
	for _, row := range rows {
		if policy.Reachable(row.StatusCode) {
			sum.Reachable++
			latencies = append(latencies, row.LatencyMs)
		}
	}
	sum.Failed = sum.Total - sum.Reachable
	if sum.Total > 0 {
		sum.UptimePercent = round2(float64(sum.Reachable) / float64(sum.Total) * 100)
	}
	if len(latencies) == 0 {
		return sum
	}

	if mean, err := stats.Mean(latencies); err == nil {
		sum.MeanLatencyMs = round2(mean)
	}
	if p95, err := stats.Percentile(latencies, 95); err == nil {
		sum.P95LatencyMs = round2(p95)
	}
	if maxLatency, err := stats.Max(latencies); err == nil {
		sum.MaxLatencyMs = maxLatency
	}
	return sum
}

// Text renders the summary for chat delivery.
func (s Summary) Text(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s\n", title)
	if s.Total == 0 {
		b.WriteString("No observations yet.")
		return b.String()
	}
	fmt.Fprintf(&b, "Checks: %d (%d ok, %d failed)\n", s.Total, s.Reachable, s.Failed)
	fmt.Fprintf(&b, "Uptime: %.2f%%\n", s.UptimePercent)
	if s.Reachable > 0 {
		fmt.Fprintf(&b, "Latency: avg %.0fms, p95 %.0fms, max %.0fms", s.MeanLatencyMs, s.P95LatencyMs, s.MaxLatencyMs)
	}
	return strings.TrimRight(b.String(), "\n")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
