// aegis-server is the license authority: it issues signed license
// tokens, validates them, and serves the public JWKS.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	ginadapter "github.com/biz4a/aegis/adapters/gin"
	"github.com/biz4a/aegis/adapters/gin/handlers"
	"github.com/biz4a/aegis/config"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/jobs"
	"github.com/biz4a/aegis/keyring"
	"github.com/biz4a/aegis/license"
	migrations "github.com/biz4a/aegis/migrations/postgres"
	"github.com/biz4a/aegis/ratelimit"
	"github.com/biz4a/aegis/revocation"
	"github.com/biz4a/aegis/storage/postgres"
)

const version = "1.2.0"

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration invalid")
	}
	configureLogger(log, cfg)

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Signing keys. Refusing to start without them beats issuing
	// nothing or, worse, generating throwaway keys in production.
	ring, err := keyring.Load(log, cfg.KeysPath)
	if err != nil {
		log.WithError(err).Fatal("signing keys unavailable")
	}
	keys := keyring.NewHandle(ring)
	log.WithField("kid", keys.ActiveKID()).Info("signing keyring loaded")

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()
	if err := migrations.Run(ctx, db); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}
	store := postgres.New(db)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("job pool connection failed")
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	policy, _ := revocation.ParsePolicy(cfg.RevocationPolicy)
	gate, syncer := buildGate(store, rdb, log)
	if err := syncer.Start(ctx, cfg.RevocationSyncCron); err != nil {
		log.WithError(err).Fatal("revocation syncer failed to start")
	}
	defer syncer.Stop()

	issuer := license.NewIssuer(keys, cfg.Issuer)
	verifier := license.NewVerifier(keys, cfg.Issuer)
	verifier.Leeway = cfg.VerifyLeeway
	verifier.Gate = gate
	verifier.GatePolicy = policy

	svc := core.NewService(store, keys, cfg.KeysPath, issuer, verifier, gate, log)

	limits := map[string]ratelimit.Limit{
		ratelimit.BucketValidate: {Limit: cfg.ValidateRateLimit, Window: cfg.RateLimitWindow},
		ratelimit.BucketIssue:    {Limit: cfg.IssueRateLimit, Window: cfg.RateLimitWindow},
	}
	var limiter ratelimit.Limiter
	if rdb != nil {
		limiter = ratelimit.NewRedisLimiter(rdb, limits)
	} else {
		limiter = ratelimit.NewMemoryLimiter(limits)
	}

	riverClient, err := jobs.NewClient(pool, store, log)
	if err != nil {
		log.WithError(err).Fatal("job client failed")
	}
	if err := riverClient.Start(ctx); err != nil {
		log.WithError(err).Fatal("job client failed to start")
	}

	router := ginadapter.NewRouter(ginadapter.Deps{
		Service: svc,
		Keys:    store,
		Limiter: limiter,
		Log:     log,
		PingDB:  func() error { return db.Ping() },
		Info: func() handlers.ServerInfo {
			return handlers.ServerInfo{
				Name:      "aegis-license-server",
				Version:   version,
				Issuer:    cfg.Issuer,
				ActiveKID: keys.ActiveKID(),
			}
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("job client shutdown incomplete")
	}
}

func configureLogger(log *logrus.Logger, cfg *config.Config) {
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
}

// buildGate prefers Redis so every replica shares one revocation set;
// without Redis the gate is process-local and synced from Postgres the
// same way.
func buildGate(store *postgres.Store, rdb *redis.Client, log *logrus.Logger) (revocation.Gate, *revocation.Syncer) {
	if rdb != nil {
		gate := revocation.NewRedisGate(rdb, "")
		return gate, revocation.NewSyncer(store, gate, log)
	}
	gate := revocation.NewInMemoryGate()
	return gate, revocation.NewSyncer(store, gate, log)
}
