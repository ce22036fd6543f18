package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"site-pulse/internal/model"
	"site-pulse/internal/probe"
	"site-pulse/internal/series"
	"site-pulse/internal/store"
)

const (
	DefaultRecentLimit = 15
	MaxRecentLimit     = 500
)

// Checker runs one probe against the configured target.
type Checker interface {
	Check(ctx context.Context) (probe.Result, error)
	Target() string
	SetTarget(target string) error
	Policy() model.StatusPolicy
}

// Reader is the query side of the store.
type Reader interface {
	Recent(limit int) ([]model.Observation, error)
	Latest() (model.Observation, bool, error)
	DailyAverages() ([]model.DailyAverage, error)
	ByDay(day string) ([]model.Observation, error)
	DistinctDays() ([]string, error)
}

type Renderer interface {
	Render(points []series.Point, title string) ([]byte, error)
}

// Notifier delivers alert text to whoever is watching.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// SettingsWriter persists runtime settings.
type SettingsWriter interface {
	Put(key, value string) error
}

type Deps struct {
	Checker  Checker
	Reader   Reader
	Journal  *Journal
	Renderer Renderer
	Notifier Notifier
	Settings SettingsWriter
	Location *time.Location
	Log      zerolog.Logger
}

// Service runs the probe → store → chart pipeline for the transports.
type Service struct {
	checker  Checker
	reader   Reader
	journal  *Journal
	renderer Renderer
	notifier Notifier
	settings SettingsWriter
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

func New(d Deps) *Service {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = LogNotifier{Log: d.Log}
	}
	return &Service{
		checker:  d.Checker,
		reader:   d.Reader,
		journal:  d.Journal,
		renderer: d.Renderer,
		notifier: notifier,
		settings: d.Settings,
		loc:      loc,
		now:      time.Now,
		log:      d.Log.With().Str("component", "monitor").Logger(),
	}
}

// UseNotifier replaces the alert sink. Call before the first scheduled run.
func (s *Service) UseNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// Check probes the target on behalf of a user. Nothing is alerted.
func (s *Service) Check(ctx context.Context) (probe.Result, error) {
	return s.checker.Check(ctx)
}

// RunScheduled probes the target and alerts when it is not healthy.
// A persistence error is returned after the alert decision was made.
func (s *Service) RunScheduled(ctx context.Context) (probe.Result, error) {
	res, err := s.checker.Check(ctx)
	if res.Health == model.Unconfigured {
		s.log.Warn().Msg("scheduled check skipped: no target configured")
		return res, err
	}
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled check could not be recorded")
	}

	if NeedsAlert(res) {
		text := fmt.Sprintf("🤖 Auto alert:\n%s", res.Display)
		if nerr := s.notifier.Notify(ctx, text); nerr != nil {
			s.log.Warn().Err(nerr).Msg("failed to deliver alert")
		}
	}
	return res, err
}

// NeedsAlert reports whether a result should raise an alert.
func NeedsAlert(res probe.Result) bool {
	return res.Health == model.Degraded || res.Health == model.Down
}

// Target returns the URL currently probed.
func (s *Service) Target() string {
	return s.checker.Target()
}

// SetTarget validates, persists and applies a new target URL.
func (s *Service) SetTarget(target string) error {
	if err := probe.ValidateTarget(target); err != nil {
		return err
	}
	if s.settings != nil {
		if err := s.settings.Put(model.SettingKeyTargetURL, target); err != nil {
			return err
		}
	}
	if err := s.checker.SetTarget(target); err != nil {
		return err
	}
	s.journal.flushCharts()
	s.log.Info().Str("target", target).Msg("target updated")
	return nil
}

// Chart renders the 7-day overview for an empty day, else the detail of day.
// chart.ErrNoData is returned untouched when there is nothing to draw.
func (s *Service) Chart(day string) ([]byte, error) {
	if day == "" {
		return s.cached("global", func() ([]byte, error) {
			rows, err := s.reader.DailyAverages()
			if err != nil {
				return nil, err
			}
			title := fmt.Sprintf("Daily average latency: %s (ms)", s.targetName())
			return s.renderer.Render(series.GlobalSeries(rows), title)
		})
	}

	if _, err := time.Parse(model.DayLayout, day); err != nil {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidDay, day)
	}
	return s.cached("day:"+day, func() ([]byte, error) {
		rows, err := s.reader.ByDay(day)
		if err != nil {
			return nil, err
		}
		title := fmt.Sprintf("Latency %s: %s (ms)", day, s.targetName())
		return s.renderer.Render(series.DaySeries(rows, s.checker.Policy(), s.loc), title)
	})
}

// RecentChart renders the last limit observations in time order.
func (s *Service) RecentChart(limit int) ([]byte, error) {
	limit = clampLimit(limit)
	return s.cached(fmt.Sprintf("recent:%d", limit), func() ([]byte, error) {
		rows, err := s.reader.Recent(limit)
		if err != nil {
			return nil, err
		}
		title := fmt.Sprintf("Latency: %s (ms)", s.targetName())
		return s.renderer.Render(series.RecentSeries(rows, s.checker.Policy(), s.loc), title)
	})
}

func (s *Service) cached(key string, render func() ([]byte, error)) ([]byte, error) {
	gen := s.journal.generation()
	if img, ok := s.journal.cachedChart(key); ok {
		return img, nil
	}
	img, err := render()
	if err != nil {
		return nil, err
	}
	s.journal.storeChart(key, img, gen)
	return img, nil
}

// Summary digests one day; an empty day means today in the store location.
func (s *Service) Summary(day string) (string, series.Summary, error) {
	if day == "" {
		day = s.now().In(s.loc).Format(model.DayLayout)
	}
	rows, err := s.reader.ByDay(day)
	if err != nil {
		return day, series.Summary{}, err
	}
	return day, series.Summarize(rows, s.checker.Policy()), nil
}

func (s *Service) Recent(limit int) ([]model.Observation, error) {
	return s.reader.Recent(clampLimit(limit))
}

func (s *Service) Latest() (model.Observation, bool, error) {
	return s.reader.Latest()
}

func (s *Service) DailyAverages() ([]model.DailyAverage, error) {
	return s.reader.DailyAverages()
}

func (s *Service) ByDay(day string) ([]model.Observation, error) {
	return s.reader.ByDay(day)
}

func (s *Service) Days() ([]string, error) {
	return s.reader.DistinctDays()
}

// IsHealthy reports whether a stored observation marks the target reachable.
func (s *Service) IsHealthy(obs model.Observation) bool {
	return s.checker.Policy().Reachable(obs.StatusCode)
}

func (s *Service) targetName() string {
	if t := s.checker.Target(); t != "" {
		return t
	}
	return "target"
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}

// LogNotifier only logs alerts; used when no chat transport is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, text string) error {
	n.Log.Warn().Str("alert", text).Msg("alert raised")
	return nil
}

// IsClientError reports errors caused by bad caller input.
func IsClientError(err error) bool {
	return errors.Is(err, store.ErrInvalidDay) || errors.Is(err, probe.ErrInvalidTarget)
}
