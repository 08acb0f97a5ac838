package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/license"
	"github.com/biz4a/aegis/ratelimit"
)

// HandleLicenseIssuePOST handles POST /api/v1/licenses
func HandleLicenseIssuePOST(svc core.Provider, rl ratelimit.Limiter) gin.HandlerFunc {
	type reqBody struct {
		CustomerID           string   `json:"customer_id"`
		ModuleName           string   `json:"module_name"`
		AllowedMajorVersions []string `json:"allowed_major_versions"`
		LicenseType          string   `json:"license_type"`
		DurationDays         int      `json:"duration_days"`
		InstanceFingerprint  string   `json:"instance_fingerprint"`
		Notes                string   `json:"notes"`
	}
	return func(c *gin.Context) {
		if !ginutil.Allow(c, rl, ratelimit.BucketIssue) {
			ginutil.TooMany(c)
			return
		}

		var req reqBody
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if req.CustomerID == "" || req.ModuleName == "" {
			ginutil.BadRequest(c, "customer_id_and_module_name_required")
			return
		}

		meta := core.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		out, err := svc.IssueLicense(c.Request.Context(), core.IssueRequest{
			CustomerID:           req.CustomerID,
			ModuleName:           req.ModuleName,
			AllowedMajorVersions: req.AllowedMajorVersions,
			LicenseType:          req.LicenseType,
			DurationDays:         req.DurationDays,
			InstanceFingerprint:  req.InstanceFingerprint,
			Notes:                req.Notes,
		}, meta)
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, out)
		case errors.Is(err, core.ErrCustomerNotFound):
			ginutil.NotFound(c, "customer_not_found")
		case errors.Is(err, license.ErrInvalidDuration),
			errors.Is(err, license.ErrEmptyVersionList),
			errors.Is(err, license.ErrInvalidType):
			ginutil.BadRequest(c, err.Error())
		default:
			ginutil.ServerErr(c, "issue_failed")
		}
	}
}
