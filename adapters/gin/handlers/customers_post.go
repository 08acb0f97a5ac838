package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/storage/postgres"
)

// HandleCustomersPOST handles POST /api/v1/customers
func HandleCustomersPOST(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cust postgres.Customer
		if err := c.ShouldBindJSON(&cust); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if err := svc.CreateCustomer(c.Request.Context(), &cust); err != nil {
			ginutil.BadRequest(c, "failed_to_create_customer")
			return
		}
		c.JSON(http.StatusCreated, cust)
	}
}
