package ginadapter

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/biz4a/aegis/adapters/ginutil"
	"github.com/biz4a/aegis/apikey"
	"github.com/biz4a/aegis/storage/postgres"
)

// KeyStore is the credential lookup the auth middleware needs.
type KeyStore interface {
	ActiveAPIKeys(ctx context.Context) ([]postgres.APIKey, error)
	TouchAPIKey(ctx context.Context, id int64) error
}

// bcrypt comparison is deliberately slow, so successful matches are
// cached for a short window keyed by the raw presented key.
type authCache struct {
	mu      sync.Mutex
	entries map[string]authCacheEntry
}

type authCacheEntry struct {
	keyID   int64
	expires time.Time
}

const authCacheTTL = 5 * time.Minute

// APIKeyAuth validates the X-API-Key header against the active hashes
// and stores the matched record in the request context.
func APIKeyAuth(keys KeyStore, log *logrus.Logger) gin.HandlerFunc {
	cache := &authCache{entries: make(map[string]authCacheEntry)}

	return func(c *gin.Context) {
		raw := c.GetHeader("X-API-Key")
		if raw == "" || !apikey.WellFormed(raw) {
			ginutil.Unauthorized(c, "missing_or_malformed_api_key")
			return
		}

		active, err := keys.ActiveAPIKeys(c.Request.Context())
		if err != nil {
			log.WithError(err).Error("api key lookup failed")
			ginutil.ServerErr(c, "auth_unavailable")
			return
		}

		matched := matchKey(cache, raw, active)
		if matched == nil {
			ginutil.Unauthorized(c, "invalid_api_key")
			return
		}

		if err := keys.TouchAPIKey(c.Request.Context(), matched.ID); err != nil {
			log.WithError(err).Debug("api key touch failed")
		}

		c.Set(ginutil.CtxAPIKey, matched)
		c.Set(ginutil.CtxAPIKeyName, matched.Name)
		c.Next()
	}
}

func matchKey(cache *authCache, raw string, active []postgres.APIKey) *postgres.APIKey {
	now := time.Now()

	cache.mu.Lock()
	entry, hit := cache.entries[raw]
	if hit && now.After(entry.expires) {
		delete(cache.entries, raw)
		hit = false
	}
	cache.mu.Unlock()

	if hit {
		for i := range active {
			if active[i].ID == entry.keyID {
				return &active[i]
			}
		}
		return nil
	}

	for i := range active {
		if ok, _ := apikey.Verify(active[i].KeyHash, raw); ok {
			cache.mu.Lock()
			cache.entries[raw] = authCacheEntry{keyID: active[i].ID, expires: now.Add(authCacheTTL)}
			cache.mu.Unlock()
			return &active[i]
		}
	}
	return nil
}

func currentKey(c *gin.Context) *postgres.APIKey {
	v, ok := c.Get(ginutil.CtxAPIKey)
	if !ok {
		return nil
	}
	k, _ := v.(*postgres.APIKey)
	return k
}

// RequirePermission gates a route on one of the API-key flags.
func RequirePermission(check func(*postgres.APIKey) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := currentKey(c)
		if k == nil {
			ginutil.Unauthorized(c, "missing_api_key")
			return
		}
		if !check(k) {
			ginutil.Forbidden(c, "insufficient_permissions")
			return
		}
		c.Next()
	}
}

func CanIssue(k *postgres.APIKey) bool  { return k.CanIssueLicenses }
func CanRevoke(k *postgres.APIKey) bool { return k.CanRevokeLicenses }
func CanView(k *postgres.APIKey) bool   { return k.CanViewCustomers }
