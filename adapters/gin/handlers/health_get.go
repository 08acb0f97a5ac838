package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealthGET handles GET /health
//
// Reports process liveness plus a database ping so load balancers can
// distinguish "up" from "usable".
func HandleHealthGET(pingDB func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		db := "ok"
		if err := pingDB(); err != nil {
			status = http.StatusServiceUnavailable
			db = "unreachable"
		}
		c.JSON(status, gin.H{"status": "ok", "database": db})
	}
}
