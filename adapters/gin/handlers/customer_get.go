package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/storage/postgres"
)

// HandleCustomerGET handles GET /api/v1/customers/:customer_id
func HandleCustomerGET(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		cust, err := svc.GetCustomer(c.Request.Context(), c.Param("customer_id"))
		if errors.Is(err, postgres.ErrNotFound) {
			ginutil.NotFound(c, "customer_not_found")
			return
		}
		if err != nil {
			ginutil.ServerErr(c, "failed_to_load_customer")
			return
		}
		c.JSON(http.StatusOK, cust)
	}
}
