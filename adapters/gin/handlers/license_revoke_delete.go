package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/storage/postgres"
)

// HandleLicenseRevokeDELETE handles DELETE /api/v1/licenses/:license_id
//
// Revoking a revoked license is a conflict, not a no-op, so operators
// notice double-fire in their tooling.
func HandleLicenseRevokeDELETE(svc core.Provider) gin.HandlerFunc {
	type reqBody struct {
		Reason string `json:"reason"`
	}
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("license_id"))
		if err != nil {
			ginutil.BadRequest(c, "invalid_license_id")
			return
		}

		var req reqBody
		// Body is optional; a bare DELETE revokes without a reason.
		_ = c.ShouldBindJSON(&req)

		meta := core.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		row, err := svc.RevokeLicense(c.Request.Context(), id, req.Reason, meta)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, row)
		case errors.Is(err, postgres.ErrNotFound):
			ginutil.NotFound(c, "license_not_found")
		case errors.Is(err, postgres.ErrAlreadyRevoked):
			ginutil.Conflict(c, "license_already_revoked")
		default:
			ginutil.ServerErr(c, "failed_to_revoke")
		}
	}
}
