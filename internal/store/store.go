package store

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"site-pulse/internal/model"
)

const (
	DefaultRetention = 7 * 24 * time.Hour
	dailyLimit       = 7
)

var (
	ErrInvalidObservation = errors.New("invalid observation")
	ErrInvalidDay         = errors.New("invalid day, expected YYYY-MM-DD")
)

// Store is the append-only observation time series.
type Store struct {
	db        *gorm.DB
	retention time.Duration
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Store)

// WithRetention sets how long observations are kept.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithLocation sets the zone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New returns a Store on db and runs the idempotent schema migration.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:        db,
		retention: DefaultRetention,
		loc:       time.Local,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&model.Observation{}, &model.Setting{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Location is the zone used for Day values.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Append persists obs and prunes everything older than the retention window
// in the same transaction. ID and Day are filled in on success.
func (s *Store) Append(obs *model.Observation) error {
	if err := validate(obs); err != nil {
		return err
	}

	row := *obs
	row.ID = 0
	row.Timestamp = obs.Timestamp.UTC().Truncate(time.Second)
	row.Day = row.Timestamp.In(s.loc).Format(model.DayLayout)
	cutoff := s.now().Add(-s.retention).UTC().Truncate(time.Second)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}

		res := tx.Where("timestamp < ?", cutoff).Delete(&model.Observation{})
		if res.Error != nil {
			// Pruning is opportunistic; the next append retries it.
			s.log.Warn().Err(res.Error).Time("cutoff", cutoff).Msg("retention prune skipped")
			return nil
		}
		if res.RowsAffected > 0 {
			s.log.Debug().Int64("rows", res.RowsAffected).Time("cutoff", cutoff).Msg("pruned observations")
		}
		return nil
	})
	if err != nil {
		return err
	}

	*obs = row
	return nil
}

func validate(obs *model.Observation) error {
	switch {
	case obs == nil:
		return fmt.Errorf("%w: nil", ErrInvalidObservation)
	case obs.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidObservation)
	case obs.Message == "":
		return fmt.Errorf("%w: missing message", ErrInvalidObservation)
	case obs.LatencyMs < 0:
		return fmt.Errorf("%w: negative latency", ErrInvalidObservation)
	case obs.StatusCode < 0:
		return fmt.Errorf("%w: negative status code", ErrInvalidObservation)
	}
	return nil
}

// Recent returns up to limit observations, newest first.
func (s *Store) Recent(limit int) ([]model.Observation, error) {
	if limit <= 0 {
		return []model.Observation{}, nil
	}
	var rows []model.Observation
	if err := s.db.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query recent observations: %w", err)
	}
	return rows, nil
}

// Latest returns the newest observation, if any.
func (s *Store) Latest() (model.Observation, bool, error) {
	rows, err := s.Recent(1)
	if err != nil {
		return model.Observation{}, false, err
	}
	if len(rows) == 0 {
		return model.Observation{}, false, nil
	}
	return rows[0], true, nil
}

// DailyAverages returns the mean latency of the most recent seven days,
// ascending by day. Every stored row counts regardless of status.
func (s *Store) DailyAverages() ([]model.DailyAverage, error) {
	var rows []model.DailyAverage
	err := s.db.Model(&model.Observation{}).
		Select("day, AVG(latency_ms) AS mean_latency_ms, COUNT(*) AS samples").
		Group("day").
		Order("day DESC").
		Limit(dailyLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query daily averages: %w", err)
	}
	slices.Reverse(rows)
	return rows, nil
}

// ByDay returns every observation of day (YYYY-MM-DD) in time order.
func (s *Store) ByDay(day string) ([]model.Observation, error) {
	if _, err := time.Parse(model.DayLayout, day); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	var rows []model.Observation
	if err := s.db.Where("day = ?", day).Order("timestamp ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query observations for %s: %w", day, err)
	}
	return rows, nil
}

// DistinctDays lists the days that have data, ascending.
func (s *Store) DistinctDays() ([]string, error) {
	var days []string
	err := s.db.Model(&model.Observation{}).
		Distinct("day").
		Order("day ASC").
		Pluck("day", &days).Error
	if err != nil {
		return nil, fmt.Errorf("query distinct days: %w", err)
	}
	return days, nil
}
