package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/fingerprint"
)

// HandleFingerprintPOST handles POST /api/v1/fingerprint
//
// Computes the instance fingerprint for a db uuid + domain pair so
// operators can preview the value a deployment will report.
func HandleFingerprintPOST(svc core.Provider) gin.HandlerFunc {
	type reqBody struct {
		DBUUID string `json:"db_uuid"`
		Domain string `json:"domain"`
	}
	return func(c *gin.Context) {
		var req reqBody
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if strings.TrimSpace(req.DBUUID) == "" || strings.TrimSpace(req.Domain) == "" {
			ginutil.BadRequest(c, "db_uuid_and_domain_required")
			return
		}
		fp := svc.Fingerprint(fingerprint.Identity{DBUUID: req.DBUUID, Domain: req.Domain})
		c.JSON(http.StatusOK, gin.H{"fingerprint": fp})
	}
}
