package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/storage/postgres"
)

// HandleCustomerPUT handles PUT /api/v1/customers/:customer_id
func HandleCustomerPUT(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cust postgres.Customer
		if err := c.ShouldBindJSON(&cust); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		cust.ID = c.Param("customer_id")
		err := svc.UpdateCustomer(c.Request.Context(), &cust)
		if errors.Is(err, postgres.ErrNotFound) {
			ginutil.NotFound(c, "customer_not_found")
			return
		}
		if err != nil {
			ginutil.ServerErr(c, "failed_to_update_customer")
			return
		}
		c.JSON(http.StatusOK, cust)
	}
}
