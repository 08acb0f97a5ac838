package handlers

import (
	"github.com/gin-gonic/gin"

	licensehttp "github.com/biz4a/aegis/adapters/http"
	"github.com/biz4a/aegis/core"
)

// HandleJWKSGET handles GET /.well-known/jwks.json
func HandleJWKSGET(svc core.Provider) gin.HandlerFunc {
	h := licensehttp.JWKSHandler(svc.JWKS)
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
