package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/storage/postgres"
)

// HandleLicensesGET handles GET /api/v1/licenses
func HandleLicensesGET(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

		items, total, err := svc.ListLicenses(c.Request.Context(), postgres.LicenseFilter{
			CustomerID:  c.Query("customer_id"),
			ModuleName:  c.Query("module_name"),
			LicenseType: c.Query("license_type"),
			Status:      postgres.LicenseStatus(c.Query("status")),
			Page:        page,
			PageSize:    size,
		})
		if err != nil {
			ginutil.ServerErr(c, "failed_to_list_licenses")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":      items,
			"total":     total,
			"page":      page,
			"page_size": size,
		})
	}
}
