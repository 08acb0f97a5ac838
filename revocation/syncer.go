package revocation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Source lists the ids the gate should treat as revoked. The Postgres
// store is the canonical implementation.
type Source interface {
	RevokedLicenseIDs(ctx context.Context) ([]string, error)
}

// Replacer swaps a gate's full membership. RedisGate implements it.
type Replacer interface {
	Replace(ctx context.Context, licenseIDs []string) error
}

// Syncer periodically copies revoked ids from the source of truth into
// the gate.
type Syncer struct {
	src     Source
	gate    Replacer
	log     *logrus.Logger
	sched   *cron.Cron
	timeout time.Duration
}

func NewSyncer(src Source, gate Replacer, log *logrus.Logger) *Syncer {
	return &Syncer{
		src:     src,
		gate:    gate,
		log:     log,
		sched:   cron.New(),
		timeout: 30 * time.Second,
	}
}

// Sync performs one full refresh.
func (s *Syncer) Sync(ctx context.Context) error {
	ids, err := s.src.RevokedLicenseIDs(ctx)
	if err != nil {
		return err
	}
	if err := s.gate.Replace(ctx, ids); err != nil {
		return err
	}
	s.log.WithField("revoked", len(ids)).Debug("revocation set refreshed")
	return nil
}

// Start runs an immediate sync, then refreshes on the given cron spec
// (e.g. "@every 1m"). Failures are logged and retried on the next tick.
func (s *Syncer) Start(ctx context.Context, spec string) error {
	run := func() {
		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.Sync(tctx); err != nil {
			s.log.WithError(err).Warn("revocation sync failed")
		}
	}
	if _, err := s.sched.AddFunc(spec, run); err != nil {
		return err
	}
	run()
	s.sched.Start()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Syncer) Stop() {
	<-s.sched.Stop().Done()
}
