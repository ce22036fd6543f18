package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"site-pulse/internal/model"
)

const (
	// TimeoutLatencyMs is recorded when no response arrived within the bound.
	TimeoutLatencyMs = 10000
	// FailureLatencyMs is recorded for any other transport failure.
	FailureLatencyMs = 999

	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	cacheBusterParam = "nocache"
	maxMessageLen    = 200
	maxBodyDrain     = 64 << 10
)

var ErrInvalidTarget = errors.New("target must be an absolute http(s) URL")

// Recorder persists one observation per check.
type Recorder interface {
	Append(obs *model.Observation) error
}

// Result is the classified outcome of one check.
type Result struct {
	StatusCode int          `json:"status_code"`
	LatencyMs  float64      `json:"latency_ms"`
	Message    string       `json:"message"`
	Display    string       `json:"display"`
	Health     model.Health `json:"health"`
	CheckedAt  time.Time    `json:"checked_at"`
}

// Options tune the probe. Zero values fall back to defaults.
type Options struct {
	Timeout            time.Duration
	UserAgent          string
	InsecureSkipVerify bool
	Policy             model.StatusPolicy
}

// Prober checks a single target URL.
type Prober struct {
	mu     sync.RWMutex
	target string

	client    *http.Client
	timeout   time.Duration
	userAgent string
	policy    model.StatusPolicy
	recorder  Recorder
	now       func() time.Time
	log       zerolog.Logger
}

// New builds a Prober for target. An empty target is allowed and reported as unconfigured.
func New(target string, recorder Recorder, opts Options, log zerolog.Logger) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Policy.BlockedCodes == nil && opts.Policy.BlockedLabel == "" {
		opts.Policy = model.DefaultStatusPolicy()
	}
	return &Prober{
		target:    target,
		client:    newHTTPClient(opts.InsecureSkipVerify),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		policy:    opts.Policy,
		recorder:  recorder,
		now:       time.Now,
		log:       log.With().Str("component", "probe").Logger(),
	}
}

// Target returns the configured URL.
func (p *Prober) Target() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target
}

// SetTarget replaces the URL used by subsequent checks.
func (p *Prober) SetTarget(target string) error {
	if err := ValidateTarget(target); err != nil {
		return err
	}
	p.mu.Lock()
	p.target = target
	p.mu.Unlock()
	return nil
}

// ValidateTarget accepts an empty string or an absolute http(s) URL.
func ValidateTarget(target string) error {
	if target == "" {
		return nil
	}
	u, err := url.ParseRequestURI(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return nil
}

// Policy returns the reachable-status policy the prober classifies with.
func (p *Prober) Policy() model.StatusPolicy {
	return p.policy
}

// Check probes the target once and records the outcome. Transport failures are
// classified into the result; the error is non-nil only when recording failed.
func (p *Prober) Check(ctx context.Context) (Result, error) {
	target := p.Target()
	if target == "" {
		return Result{
			Message:   "Unconfigured",
			Display:   "⚠️ No target URL configured",
			Health:    model.Unconfigured,
			CheckedAt: p.now(),
		}, nil
	}

	res := p.probe(ctx, target)

	obs := model.Observation{
		Timestamp:  res.CheckedAt,
		StatusCode: res.StatusCode,
		LatencyMs:  res.LatencyMs,
		Message:    res.Message,
	}
	if err := p.recorder.Append(&obs); err != nil {
		p.log.Error().Err(err).Str("message", res.Message).Msg("failed to record observation")
		return res, fmt.Errorf("record observation: %w", err)
	}

	p.log.Debug().
		Int("status", res.StatusCode).
		Float64("latency_ms", res.LatencyMs).
		Str("health", res.Health.String()).
		Msg(res.Message)
	return res, nil
}

func (p *Prober) probe(ctx context.Context, target string) Result {
	checkedAt := p.now()

	reqURL, err := withCacheBuster(target, checkedAt)
	if err != nil {
		return failure(checkedAt, err)
	}

	// A caller going away must not turn into a Down observation; only the
	// probe timeout bounds the request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return failure(checkedAt, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			return Result{
				StatusCode: 0,
				LatencyMs:  TimeoutLatencyMs,
				Message:    "Timeout",
				Display:    fmt.Sprintf("🚨 Down: Timeout (no response within %s)", p.timeout),
				Health:     model.Down,
				CheckedAt:  checkedAt,
			}
		}
		return failure(checkedAt, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	latency := math.Round(float64(elapsed) / float64(time.Millisecond))
	message, health := p.policy.Classify(resp.StatusCode)

	return Result{
		StatusCode: resp.StatusCode,
		LatencyMs:  latency,
		Message:    message,
		Display:    display(resp.StatusCode, message, health, latency),
		Health:     health,
		CheckedAt:  checkedAt,
	}
}

func display(code int, message string, health model.Health, latency float64) string {
	switch {
	case code == http.StatusOK:
		return fmt.Sprintf("✅ Online: %.0fms", latency)
	case health == model.Healthy:
		return fmt.Sprintf("🛡️ %s (HTTP %d): %.0fms", message, code, latency)
	default:
		return fmt.Sprintf("⚠️ %s (%.0fms)", message, latency)
	}
}

func failure(checkedAt time.Time, err error) Result {
	msg := errorText(err)
	return Result{
		StatusCode: 0,
		LatencyMs:  FailureLatencyMs,
		Message:    msg,
		Display:    "🚨 Down: " + msg,
		Health:     model.Down,
		CheckedAt:  checkedAt,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorText drops the "Get <url>:" prefix so the cache-buster never leaks into labels.
func errorText(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	if len(msg) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}

func withCacheBuster(target string, at time.Time) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(cacheBusterParam, strconv.FormatInt(at.UnixNano(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
