package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SivaGaneshv1729/library-management-api/pkg/database"
)

func (h *Handler) healthCheck(c *gin.Context) {
	if err := database.Ping(c.Request.Context(), h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "Database reachable",
	})
}
