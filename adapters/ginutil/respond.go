// Package ginutil carries the small helpers every gin handler shares:
// error responses, rate-limit checks, and request-scoped values.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biz4a/aegis/ratelimit"
)

// Context keys set by middleware.
const (
	CtxRequestID  = "aegis_request_id"
	CtxAPIKey     = "aegis_api_key"
	CtxAPIKeyName = "aegis_api_key_name"
)

func errJSON(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

func BadRequest(c *gin.Context, code string)   { errJSON(c, http.StatusBadRequest, code) }
func Unauthorized(c *gin.Context, code string) { errJSON(c, http.StatusUnauthorized, code) }
func Forbidden(c *gin.Context, code string)    { errJSON(c, http.StatusForbidden, code) }
func NotFound(c *gin.Context, code string)     { errJSON(c, http.StatusNotFound, code) }
func Conflict(c *gin.Context, code string)     { errJSON(c, http.StatusConflict, code) }
func TooMany(c *gin.Context)                   { errJSON(c, http.StatusTooManyRequests, "rate_limited") }
func ServerErr(c *gin.Context, code string)    { errJSON(c, http.StatusInternalServerError, code) }
func Unavailable(c *gin.Context, code string)  { errJSON(c, http.StatusServiceUnavailable, code) }

// Allow runs the limiter for the given bucket, keyed by the caller's
// API-key name when authenticated, else the client IP. A limiter
// failure fails open; throttling must not take the API down.
func Allow(c *gin.Context, l ratelimit.Limiter, bucket string) bool {
	if l == nil {
		return true
	}
	key := c.ClientIP()
	if name, ok := c.Get(CtxAPIKeyName); ok {
		if s, ok := name.(string); ok && s != "" {
			key = s
		}
	}
	ok, err := l.Allow(c.Request.Context(), bucket, key)
	if err != nil {
		return true
	}
	return ok
}
