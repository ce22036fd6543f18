package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRecentHistory returns the newest observations, newest first.
func GetRecentHistory(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}
		rows, err := m.Recent(limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// GetDailyHistory returns per-day mean latency for the last 7 stored days.
func GetDailyHistory(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := m.DailyAverages()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func ListDays(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, err := m.Days()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"days": days})
	}
}

// GetDayHistory returns every observation of one day in time order.
func GetDayHistory(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := m.ByDay(c.Param("day"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func GetSummary(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, sum, err := m.Summary(c.Query("day"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"day": day, "summary": sum})
	}
}
