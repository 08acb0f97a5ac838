package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
)

// HandleAdminStatsGET handles GET /api/v1/admin/stats
func HandleAdminStatsGET(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			ginutil.ServerErr(c, "failed_to_load_stats")
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
