package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
)

// HandleAdminKeyRotatePOST handles POST /api/v1/admin/keys/rotate
//
// New licenses sign with the fresh key immediately; tokens signed by
// earlier keys keep verifying because their public halves stay in the
// ring.
func HandleAdminKeyRotatePOST(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := core.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		kid, pubPEM, err := svc.RotateKey(c.Request.Context(), meta)
		if err != nil {
			ginutil.ServerErr(c, "failed_to_rotate_key")
			return
		}
		c.JSON(http.StatusOK, gin.H{"key_id": kid, "public_key_pem": pubPEM})
	}
}
