package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTargetConfig returns the URL currently monitored.
func GetTargetConfig(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"target_url": m.Target()})
	}
}

// UpdateTargetConfig replaces the monitored URL. An empty URL disables checks.
func UpdateTargetConfig(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			TargetURL *string `json:"target_url"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.TargetURL == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_url is required"})
			return
		}

		if err := m.SetTarget(*input.TargetURL); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Target updated successfully", "target_url": m.Target()})
	}
}
