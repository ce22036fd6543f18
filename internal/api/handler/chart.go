package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const pngContentType = "image/png"

// GetGlobalChart renders the 7-day overview.
func GetGlobalChart(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeChart(c, func() ([]byte, error) { return m.Chart("") })
	}
}

// GetDayChart renders the detail of one YYYY-MM-DD day.
func GetDayChart(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		day := c.Param("day")
		writeChart(c, func() ([]byte, error) { return m.Chart(day) })
	}
}

// GetRecentChart renders the last ?limit= observations.
func GetRecentChart(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}
		writeChart(c, func() ([]byte, error) { return m.RecentChart(limit) })
	}
}

func writeChart(c *gin.Context, render func() ([]byte, error)) {
	img, err := render()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, pngContentType, img)
}
