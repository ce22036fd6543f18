package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"site-pulse/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestStore(t *testing.T, clock *fakeClock) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s, err := New(db, WithClock(clock.Now), WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func obsAt(ts time.Time, status int, latency float64) *model.Observation {
	msg := "Online"
	if status != 200 {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &model.Observation{Timestamp: ts, StatusCode: status, LatencyMs: latency, Message: msg}
}

func mustAppend(t *testing.T, s *Store, obs *model.Observation) {
	t.Helper()
	if err := s.Append(obs); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAppendFillsDerivedFields(t *testing.T) {
	now := time.Date(2023, 10, 27, 14, 5, 30, 500_000_000, time.UTC)
	s := newTestStore(t, &fakeClock{now: now})

	obs := obsAt(now, 200, 120)
	mustAppend(t, s, obs)

	if obs.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}
	if obs.Day != "2023-10-27" {
		t.Errorf("Day = %q", obs.Day)
	}
	if !obs.Timestamp.Equal(now.Truncate(time.Second)) {
		t.Errorf("Timestamp = %v, want second precision", obs.Timestamp)
	}

	latest, ok, err := s.Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: %v %v", ok, err)
	}
	if latest.ID != obs.ID || latest.Message != "Online" || latest.LatencyMs != 120 {
		t.Errorf("Latest = %+v", latest)
	}
}

func TestAppendRejectsPartialRows(t *testing.T) {
	s := newTestStore(t, &fakeClock{now: time.Now()})

	bad := []*model.Observation{
		nil,
		{StatusCode: 200, LatencyMs: 10, Message: "Online"},
		{Timestamp: time.Now(), StatusCode: 200, LatencyMs: 10},
		{Timestamp: time.Now(), StatusCode: 200, LatencyMs: -1, Message: "Online"},
	}
	for i, obs := range bad {
		if err := s.Append(obs); !errors.Is(err, ErrInvalidObservation) {
			t.Errorf("case %d: err = %v, want ErrInvalidObservation", i, err)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	base := time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: base}
	s := newTestStore(t, clock)

	for i := 0; i < 20; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		clock.Set(ts)
		mustAppend(t, s, obsAt(ts, 200, float64(i)))
	}

	rows, err := s.Recent(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("len = %d, want 5", len(rows))
	}
	for i, row := range rows {
		want := float64(19 - i)
		if row.LatencyMs != want {
			t.Errorf("rows[%d].LatencyMs = %v, want %v", i, row.LatencyMs, want)
		}
	}

	empty, err := s.Recent(0)
	if err != nil || len(empty) != 0 {
		t.Errorf("Recent(0) = %v, %v", empty, err)
	}
}

func TestRetentionPrunedOnNextAppend(t *testing.T) {
	now := time.Date(2023, 10, 27, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	s := newTestStore(t, clock)

	old := now.Add(-8 * 24 * time.Hour)
	edge := now.Add(-DefaultRetention).Add(time.Minute)
	mustAppend(t, s, obsAt(old, 200, 50))
	mustAppend(t, s, obsAt(edge, 200, 60))
	mustAppend(t, s, obsAt(now, 200, 70))

	rows, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2 (old row pruned, in-window rows kept)", len(rows))
	}
	for _, r := range rows {
		if r.Timestamp.Before(now.Add(-DefaultRetention)) {
			t.Errorf("row outside retention survived: %v", r.Timestamp)
		}
	}

	days, err := s.DistinctDays()
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range days {
		if d == old.Format(model.DayLayout) {
			t.Errorf("pruned day %s still listed", d)
		}
	}
}

func TestDailyAveragesKeepsMostRecentSeven(t *testing.T) {
	start := time.Date(2023, 10, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	s := newTestStore(t, clock)
	s.retention = 30 * 24 * time.Hour

	for d := 0; d < 10; d++ {
		day := start.AddDate(0, 0, d)
		clock.Set(day)
		mustAppend(t, s, obsAt(day, 200, 100))
		mustAppend(t, s, obsAt(day.Add(time.Hour), 0, 300))
	}

	rows, err := s.DailyAverages()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 7 {
		t.Fatalf("len = %d, want 7", len(rows))
	}
	if rows[0].Day != "2023-10-04" || rows[6].Day != "2023-10-10" {
		t.Errorf("range = %s..%s, want 2023-10-04..2023-10-10", rows[0].Day, rows[6].Day)
	}
	for i, r := range rows {
		if i > 0 && r.Day <= rows[i-1].Day {
			t.Errorf("rows not strictly ascending at %d: %s <= %s", i, r.Day, rows[i-1].Day)
		}
		if r.MeanLatencyMs != 200 {
			t.Errorf("%s mean = %v, want 200 (all statuses averaged)", r.Day, r.MeanLatencyMs)
		}
		if r.Samples != 2 {
			t.Errorf("%s samples = %d", r.Day, r.Samples)
		}
	}
}

func TestByDayFiltersAndOrders(t *testing.T) {
	now := time.Date(2023, 10, 28, 8, 0, 0, 0, time.UTC)
	s := newTestStore(t, &fakeClock{now: now})

	day1 := time.Date(2023, 10, 27, 0, 0, 0, 0, time.UTC)
	mustAppend(t, s, obsAt(day1.Add(15*time.Hour), 200, 3))
	mustAppend(t, s, obsAt(day1.Add(9*time.Hour), 200, 1))
	mustAppend(t, s, obsAt(now, 200, 99))
	mustAppend(t, s, obsAt(day1.Add(12*time.Hour), 500, 2))

	rows, err := s.ByDay("2023-10-27")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	for i, r := range rows {
		if r.Day != "2023-10-27" {
			t.Errorf("row %d day = %s", i, r.Day)
		}
		if r.LatencyMs != float64(i+1) {
			t.Errorf("row %d latency = %v, want ascending time order", i, r.LatencyMs)
		}
	}

	if _, err := s.ByDay("27/10/2023"); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("err = %v, want ErrInvalidDay", err)
	}

	days, err := s.DistinctDays()
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 || days[0] != "2023-10-27" || days[1] != "2023-10-28" {
		t.Errorf("DistinctDays = %v", days)
	}
}

func TestDayUsesStoreLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2023, 10, 27, 22, 30, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	db, err := Open(filepath.Join(t.TempDir(), "loc.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(db, WithClock(clock.Now), WithLocation(loc))
	if err != nil {
		t.Fatal(err)
	}

	obs := obsAt(now, 200, 10)
	mustAppend(t, s, obs)
	if obs.Day != "2023-10-28" {
		t.Errorf("Day = %s, want local calendar day 2023-10-28", obs.Day)
	}
}

func TestConcurrentAppends(t *testing.T) {
	now := time.Date(2023, 10, 27, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &fakeClock{now: now})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Append(obsAt(now.Add(time.Duration(i)*time.Second), 200, float64(i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Append: %v", err)
		}
	}

	rows, err := s.Recent(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 20 {
		t.Errorf("len = %d, want 20", len(rows))
	}
}

func TestSettingsPutGet(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "settings.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(db); err != nil {
		t.Fatal(err)
	}
	settings := NewSettings(db)

	if _, ok, err := settings.Get(model.SettingKeyTargetURL); err != nil || ok {
		t.Fatalf("Get on empty table = %v, %v", ok, err)
	}
	if err := settings.Put(model.SettingKeyTargetURL, "https://a.example"); err != nil {
		t.Fatal(err)
	}
	if err := settings.Put(model.SettingKeyTargetURL, "https://b.example"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := settings.Get(model.SettingKeyTargetURL)
	if err != nil || !ok || v != "https://b.example" {
		t.Errorf("Get = %q, %v, %v", v, ok, err)
	}
}
