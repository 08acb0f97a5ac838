package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/fingerprint"
	"github.com/biz4a/aegis/license"
	"github.com/biz4a/aegis/ratelimit"
)

// HandleLicenseValidatePOST handles POST /api/v1/license/validate
//
// Verification failures are data, not transport errors: the response is
// 200 with valid=false and the failure kind, so deployed modules can
// branch on the outcome without parsing status codes. Only a gate
// outage under fail-closed surfaces as 503.
func HandleLicenseValidatePOST(svc core.Provider, rl ratelimit.Limiter) gin.HandlerFunc {
	type reqBody struct {
		Token      string `json:"token"`
		ModuleName string `json:"module_name"`
		Version    string `json:"version"`
		DBUUID     string `json:"db_uuid"`
		Domain     string `json:"domain"`
	}
	return func(c *gin.Context) {
		if !ginutil.Allow(c, rl, ratelimit.BucketValidate) {
			ginutil.TooMany(c)
			return
		}

		var req reqBody
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if req.Token == "" || req.ModuleName == "" || req.Version == "" {
			ginutil.BadRequest(c, "token_module_name_and_version_required")
			return
		}

		var identity *fingerprint.Identity
		if req.DBUUID != "" || req.Domain != "" {
			identity = &fingerprint.Identity{DBUUID: req.DBUUID, Domain: req.Domain}
		}

		meta := core.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		vc, err := svc.ValidateToken(c.Request.Context(), core.ValidateRequest{
			Token:      req.Token,
			ModuleName: req.ModuleName,
			Version:    req.Version,
			Identity:   identity,
		}, meta)
		if err != nil {
			if ve, ok := license.AsVerificationError(err); ok {
				c.JSON(http.StatusOK, gin.H{"valid": false, "error": string(ve.Kind)})
				return
			}
			ginutil.Unavailable(c, "revocation_check_unavailable")
			return
		}

		c.JSON(http.StatusOK, gin.H{"valid": true, "claims": vc})
	}
}
