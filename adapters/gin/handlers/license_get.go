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

// HandleLicenseGET handles GET /api/v1/licenses/:license_id
func HandleLicenseGET(svc core.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("license_id"))
		if err != nil {
			ginutil.BadRequest(c, "invalid_license_id")
			return
		}
		row, err := svc.GetLicense(c.Request.Context(), id)
		if errors.Is(err, postgres.ErrNotFound) {
			ginutil.NotFound(c, "license_not_found")
			return
		}
		if err != nil {
			ginutil.ServerErr(c, "failed_to_load_license")
			return
		}
		c.JSON(http.StatusOK, row)
	}
}
