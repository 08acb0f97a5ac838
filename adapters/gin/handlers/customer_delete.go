package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/storage/postgres"
)

// HandleCustomerDELETE handles DELETE /api/v1/customers/:customer_id
//
// Deactivates rather than deletes, since licenses keep referencing the
// customer row.
func HandleCustomerDELETE(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.DeleteCustomer(c.Request.Context(), c.Param("customer_id"))
		if errors.Is(err, postgres.ErrNotFound) {
			ginutil.NotFound(c, "customer_not_found")
			return
		}
		if err != nil {
			ginutil.ServerErr(c, "failed_to_delete_customer")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
