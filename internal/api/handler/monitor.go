package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"site-pulse/internal/chart"
	"site-pulse/internal/model"
	"site-pulse/internal/monitor"
	"site-pulse/internal/probe"
	"site-pulse/internal/series"
)

// Monitor is the service behind the HTTP routes.
type Monitor interface {
	Check(ctx context.Context) (probe.Result, error)
	RunScheduled(ctx context.Context) (probe.Result, error)
	Recent(limit int) ([]model.Observation, error)
	Latest() (model.Observation, bool, error)
	DailyAverages() ([]model.DailyAverage, error)
	ByDay(day string) ([]model.Observation, error)
	Days() ([]string, error)
	Summary(day string) (string, series.Summary, error)
	Chart(day string) ([]byte, error)
	RecentChart(limit int) ([]byte, error)
	Target() string
	SetTarget(target string) error
}

// Home is the liveness probe.
func Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "site-pulse is running 🚀")
	}
}

// TriggerMonitor runs a scheduled check for external schedulers.
func TriggerMonitor(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := m.RunScheduled(c.Request.Context()); err != nil {
			c.String(http.StatusInternalServerError, "failed to record check")
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

// GetStatus runs a check and returns its classified result.
func GetStatus(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := m.Check(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record check", "result": res})
			return
		}
		if res.Health == model.Unconfigured {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no target configured", "result": res})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GetLatest returns the newest stored observation without probing.
func GetLatest(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		obs, ok, err := m.Latest()
		if err != nil {
			respondError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no observations yet"})
			return
		}
		c.JSON(http.StatusOK, obs)
	}
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return monitor.DefaultRecentLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chart.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": "not enough data yet"})
	case monitor.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
