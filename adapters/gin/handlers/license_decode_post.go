package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
)

// HandleLicenseDecodePOST handles POST /api/v1/license/decode
//
// Returns the claims without any verification, for display tooling.
// The verified flag is always false to keep callers honest.
func HandleLicenseDecodePOST(svc core.Provider) gin.HandlerFunc {
	type reqBody struct {
		Token string `json:"token"`
	}
	return func(c *gin.Context) {
		var req reqBody
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			ginutil.BadRequest(c, "token_required")
			return
		}
		claims, err := svc.DecodeToken(req.Token)
		if err != nil {
			ginutil.BadRequest(c, "malformed_token")
			return
		}
		c.JSON(http.StatusOK, gin.H{"verified": false, "claims": claims})
	}
}
