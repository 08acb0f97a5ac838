package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
)

// HandleAdminAuditLogsGET handles GET /api/v1/admin/audit-logs
func HandleAdminAuditLogsGET(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		items, err := svc.AuditLogs(c.Request.Context(), limit, offset)
		if err != nil {
			ginutil.ServerErr(c, "failed_to_list_audit_logs")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items, "limit": limit, "offset": offset})
	}
}
