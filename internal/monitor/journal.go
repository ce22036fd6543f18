package monitor

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"site-pulse/internal/model"
)

const (
	chartCacheTTL     = 5 * time.Minute
	chartCacheCleanup = 10 * time.Minute
)

// Appender is the persistence side of the store.
type Appender interface {
	Append(obs *model.Observation) error
}

// Listener is told about every observation after it was committed.
type Listener interface {
	Publish(obs model.Observation)
}

// Journal sits between the probe and the store: it persists, invalidates
// rendered charts and fans the committed observation out to listeners.
type Journal struct {
	store  Appender
	charts *cache.Cache
	log    zerolog.Logger

	// gen counts invalidations; a chart is only cached under the
	// generation it was read in.
	cacheMu sync.Mutex
	gen     uint64

	mu        sync.RWMutex
	listeners []Listener
}

func NewJournal(store Appender, log zerolog.Logger) *Journal {
	return &Journal{
		store:  store,
		charts: cache.New(chartCacheTTL, chartCacheCleanup),
		log:    log.With().Str("component", "journal").Logger(),
	}
}

// Subscribe registers l for future observations.
func (j *Journal) Subscribe(l Listener) {
	j.mu.Lock()
	j.listeners = append(j.listeners, l)
	j.mu.Unlock()
}

// Append persists obs. Errors from the store are returned untouched.
func (j *Journal) Append(obs *model.Observation) error {
	if err := j.store.Append(obs); err != nil {
		return err
	}
	j.flushCharts()

	j.mu.RLock()
	listeners := j.listeners
	j.mu.RUnlock()
	for _, l := range listeners {
		l.Publish(*obs)
	}
	return nil
}

func (j *Journal) cachedChart(key string) ([]byte, bool) {
	if v, ok := j.charts.Get(key); ok {
		if img, ok := v.([]byte); ok {
			return img, true
		}
	}
	return nil, false
}

func (j *Journal) generation() uint64 {
	j.cacheMu.Lock()
	defer j.cacheMu.Unlock()
	return j.gen
}

// storeChart caches img unless the cache was invalidated since gen was taken.
func (j *Journal) storeChart(key string, img []byte, gen uint64) bool {
	j.cacheMu.Lock()
	defer j.cacheMu.Unlock()
	if j.gen != gen {
		return false
	}
	j.charts.Set(key, img, cache.DefaultExpiration)
	return true
}

func (j *Journal) flushCharts() {
	j.cacheMu.Lock()
	j.gen++
	j.charts.Flush()
	j.cacheMu.Unlock()
}
