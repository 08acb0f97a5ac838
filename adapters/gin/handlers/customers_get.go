package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
)

// HandleCustomersGET handles GET /api/v1/customers
func HandleCustomersGET(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		activeOnly := c.Query("active") == "true"

		items, err := svc.ListCustomers(c.Request.Context(), activeOnly, limit, offset)
		if err != nil {
			ginutil.ServerErr(c, "failed_to_list_customers")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}
