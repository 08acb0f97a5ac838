// Package ginadapter mounts the license API onto a gin engine. All
// business rules live in core; this layer does transport, auth, and
// throttling only.
package ginadapter

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/biz4a/aegis/adapters/gin/handlers"
	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/ratelimit"
)

// Deps is everything the router needs. PingDB and Info are funcs so
// tests can stub them without a database.
type Deps struct {
	Service core.Provider
	Keys    KeyStore
	Limiter ratelimit.Limiter
	Log     *logrus.Logger
	PingDB  func() error
	Info    func() handlers.ServerInfo
}

// NewRouter builds the full route table.
//
// Public surface: health, info, JWKS, fingerprint preview, and token
// validation/decoding, since deployed modules hold no credentials.
// Anything that mutates state sits behind API-key auth with per-key
// permission flags.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), ginutil.RequestID(), ginutil.Logger(d.Log))

	r.GET("/health", handlers.HandleHealthGET(d.PingDB))
	r.GET("/info", handlers.HandleInfoGET(d.Info))
	r.GET("/.well-known/jwks.json", handlers.HandleJWKSGET(d.Service))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/fingerprint", handlers.HandleFingerprintPOST(d.Service))
		v1.POST("/license/validate", handlers.HandleLicenseValidatePOST(d.Service, d.Limiter))
		v1.POST("/license/decode", handlers.HandleLicenseDecodePOST(d.Service))
	}

	authed := v1.Group("", APIKeyAuth(d.Keys, d.Log))
	{
		authed.POST("/licenses", RequirePermission(CanIssue), handlers.HandleLicenseIssuePOST(d.Service, d.Limiter))
		authed.GET("/licenses", handlers.HandleLicensesGET(d.Service))
		authed.GET("/licenses/:license_id", handlers.HandleLicenseGET(d.Service))
		authed.DELETE("/licenses/:license_id", RequirePermission(CanRevoke), handlers.HandleLicenseRevokeDELETE(d.Service))

		authed.POST("/customers", RequirePermission(CanIssue), handlers.HandleCustomersPOST(d.Service))
		authed.GET("/customers", RequirePermission(CanView), handlers.HandleCustomersGET(d.Service))
		authed.GET("/customers/:customer_id", RequirePermission(CanView), handlers.HandleCustomerGET(d.Service))
		authed.PUT("/customers/:customer_id", RequirePermission(CanIssue), handlers.HandleCustomerPUT(d.Service))
		authed.DELETE("/customers/:customer_id", RequirePermission(CanIssue), handlers.HandleCustomerDELETE(d.Service))

		admin := authed.Group("/admin", RequirePermission(CanRevoke))
		{
			admin.GET("/stats", handlers.HandleAdminStatsGET(d.Service))
			admin.GET("/audit-logs", handlers.HandleAdminAuditLogsGET(d.Service))
			admin.POST("/keys/rotate", handlers.HandleAdminKeyRotatePOST(d.Service))
		}
	}

	return r
}
