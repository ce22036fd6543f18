package model

import (
	"fmt"
	"slices"
)

// Health is the structured outcome of a probe, used for alert decisions.
type Health int

const (
	Unconfigured Health = iota
	Healthy
	Degraded
	Down
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Down:
		return "down"
	default:
		return "unconfigured"
	}
}

// MarshalText lets Health render as a word in JSON.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Health) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unconfigured":
		*h = Unconfigured
	case "healthy":
		*h = Healthy
	case "degraded":
		*h = Degraded
	case "down":
		*h = Down
	default:
		return fmt.Errorf("unknown health %q", text)
	}
	return nil
}

const (
	DefaultBlockedLabel = "Online (WAF)"
)

// DefaultBlockedCodes are the statuses a firewall answers with when the origin is up.
var DefaultBlockedCodes = []int{403, 429}

// StatusPolicy decides which HTTP statuses count as a live origin.
// 200 is always reachable; BlockedCodes are reachable but content was denied.
type StatusPolicy struct {
	BlockedCodes []int
	BlockedLabel string
}

// DefaultStatusPolicy treats 403 and 429 as "Online (WAF)".
func DefaultStatusPolicy() StatusPolicy {
	return StatusPolicy{
		BlockedCodes: slices.Clone(DefaultBlockedCodes),
		BlockedLabel: DefaultBlockedLabel,
	}
}

// Blocked reports whether code is one of the firewall codes.
func (p StatusPolicy) Blocked(code int) bool {
	return slices.Contains(p.BlockedCodes, code)
}

// Reachable reports whether an observation with this status carries a valid latency.
func (p StatusPolicy) Reachable(code int) bool {
	return code == 200 || p.Blocked(code)
}

// Classify maps a received HTTP status to its log label and health.
func (p StatusPolicy) Classify(code int) (string, Health) {
	switch {
	case code == 200:
		return "Online", Healthy
	case p.Blocked(code):
		label := p.BlockedLabel
		if label == "" {
			label = DefaultBlockedLabel
		}
		return label, Healthy
	case code >= 500:
		return fmt.Sprintf("Server Error %d", code), Degraded
	default:
		return fmt.Sprintf("HTTP %d", code), Degraded
	}
}
