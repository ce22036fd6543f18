package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"site-pulse/internal/model"
)

type memRecorder struct {
	mu   sync.Mutex
	rows []model.Observation
	err  error
}

func (r *memRecorder) Append(obs *model.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, *obs)
	return nil
}

func (r *memRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func statusServer(t *testing.T, code int, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte("body"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckClassifiesResponses(t *testing.T) {
	tests := []struct {
		code    int
		message string
		health  model.Health
		display string
	}{
		{200, "Online", model.Healthy, "✅ Online"},
		{403, "Online (WAF)", model.Healthy, "Online (WAF) (HTTP 403)"},
		{429, "Online (WAF)", model.Healthy, "Online (WAF) (HTTP 429)"},
		{500, "Server Error 500", model.Degraded, "⚠️ Server Error 500"},
		{503, "Server Error 503", model.Degraded, "⚠️ Server Error 503"},
		{404, "HTTP 404", model.Degraded, "⚠️ HTTP 404"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := statusServer(t, tt.code, 0)
			rec := &memRecorder{}
			p := New(srv.URL, rec, Options{Timeout: 2 * time.Second}, zerolog.Nop())

			res, err := p.Check(context.Background())
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.StatusCode != tt.code || res.Message != tt.message || res.Health != tt.health {
				t.Errorf("got %d %q %v", res.StatusCode, res.Message, res.Health)
			}
			if !strings.Contains(res.Display, tt.display) {
				t.Errorf("display %q does not contain %q", res.Display, tt.display)
			}
			if rec.count() != 1 {
				t.Fatalf("recorded %d observations, want 1", rec.count())
			}
			obs := rec.rows[0]
			if obs.StatusCode != tt.code || obs.Message != tt.message || obs.Timestamp.IsZero() {
				t.Errorf("observation = %+v", obs)
			}
			if obs.LatencyMs < 0 || obs.LatencyMs >= FailureLatencyMs {
				t.Errorf("latency = %v, want a real measurement", obs.LatencyMs)
			}
		})
	}
}

func TestCheckMeasuresLatencyForErrorStatus(t *testing.T) {
	srv := statusServer(t, http.StatusServiceUnavailable, 60*time.Millisecond)
	rec := &memRecorder{}
	p := New(srv.URL, rec, Options{Timeout: 2 * time.Second}, zerolog.Nop())

	res, err := p.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.LatencyMs < 60 {
		t.Errorf("latency = %v, want round-trip time of the 503 response", res.LatencyMs)
	}
}

func TestCheckTimeout(t *testing.T) {
	srv := statusServer(t, http.StatusOK, time.Second)
	rec := &memRecorder{}
	p := New(srv.URL, rec, Options{Timeout: 50 * time.Millisecond}, zerolog.Nop())

	res, err := p.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != 0 || res.Message != "Timeout" || res.LatencyMs != TimeoutLatencyMs {
		t.Errorf("got %+v", res)
	}
	if res.Health != model.Down || !strings.Contains(res.Display, "Down") {
		t.Errorf("health %v display %q", res.Health, res.Display)
	}
	if rec.count() != 1 || rec.rows[0].LatencyMs != 10000 || rec.rows[0].StatusCode != 0 {
		t.Errorf("recorded %+v", rec.rows)
	}
}

func TestCheckOutlivesCallerCancel(t *testing.T) {
	srv := statusServer(t, http.StatusOK, 300*time.Millisecond)
	rec := &memRecorder{}
	p := New(srv.URL, rec, Options{Timeout: 2 * time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	res, err := p.Check(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK || res.Health != model.Healthy {
		t.Errorf("caller cancel leaked into the result: %+v", res)
	}
	if rec.count() != 1 || rec.rows[0].StatusCode != http.StatusOK {
		t.Errorf("recorded %+v", rec.rows)
	}
}

func TestErrorTextKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("a", maxMessageLen-1) + strings.Repeat("é", 10)
	msg := errorText(errors.New(long))
	if !utf8.ValidString(msg) {
		t.Fatalf("message is not valid UTF-8: %q", msg[len(msg)-4:])
	}
	if len(msg) != maxMessageLen-1 {
		t.Errorf("len = %d, want %d", len(msg), maxMessageLen-1)
	}
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	rec := &memRecorder{}
	p := New(addr, rec, Options{Timeout: time.Second}, zerolog.Nop())

	res, err := p.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != 0 || res.Health != model.Down || res.LatencyMs != FailureLatencyMs {
		t.Errorf("got %+v", res)
	}
	if res.Message == "" || strings.Contains(res.Message, cacheBusterParam) {
		t.Errorf("message = %q", res.Message)
	}
	if rec.count() != 1 {
		t.Errorf("recorded %d, want 1", rec.count())
	}
}

func TestCheckUnconfigured(t *testing.T) {
	rec := &memRecorder{}
	p := New("", rec, Options{}, zerolog.Nop())

	res, err := p.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Health != model.Unconfigured {
		t.Errorf("health = %v", res.Health)
	}
	if rec.count() != 0 {
		t.Errorf("unconfigured check recorded %d observations", rec.count())
	}
}

func TestCheckPropagatesRecorderError(t *testing.T) {
	srv := statusServer(t, http.StatusOK, 0)
	boom := errors.New("disk full")
	p := New(srv.URL, &memRecorder{err: boom}, Options{}, zerolog.Nop())

	res, err := p.Check(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped recorder error", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("result should still be classified, got %+v", res)
	}
}

func TestCheckDefeatsCaches(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Query().Get(cacheBusterParam))
		agent = r.UserAgent()
		if r.URL.Query().Get("keep") != "1" {
			t.Errorf("existing query lost: %s", r.URL.RawQuery)
		}
		mu.Unlock()
	}))
	defer srv.Close()

	p := New(srv.URL+"/health?keep=1", &memRecorder{}, Options{}, zerolog.Nop())
	times := []time.Time{time.Unix(100, 0), time.Unix(200, 0)}
	i := 0
	p.now = func() time.Time { ts := times[i%len(times)]; i++; return ts }

	for range times {
		if _, err := p.Check(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] == "" || seen[0] == seen[1] {
		t.Errorf("cache-buster values = %v", seen)
	}
	if agent != DefaultUserAgent {
		t.Errorf("user agent = %q", agent)
	}
}

func TestCustomBlockedPolicy(t *testing.T) {
	srv := statusServer(t, http.StatusForbidden, 0)
	policy := model.StatusPolicy{BlockedCodes: []int{403}, BlockedLabel: "Blocked"}
	p := New(srv.URL, &memRecorder{}, Options{Policy: policy}, zerolog.Nop())

	res, err := p.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "Blocked" || res.Health != model.Healthy {
		t.Errorf("got %q %v", res.Message, res.Health)
	}
}

func TestSetTarget(t *testing.T) {
	p := New("", &memRecorder{}, Options{}, zerolog.Nop())

	for _, bad := range []string{"ftp://example.com", "example.com", "http://"} {
		if err := p.SetTarget(bad); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("SetTarget(%q) = %v", bad, err)
		}
	}
	if err := p.SetTarget("https://example.com/path"); err != nil {
		t.Fatal(err)
	}
	if p.Target() != "https://example.com/path" {
		t.Errorf("Target = %q", p.Target())
	}
	if err := p.SetTarget(""); err != nil || p.Target() != "" {
		t.Errorf("clearing target: %v %q", err, p.Target())
	}
}
