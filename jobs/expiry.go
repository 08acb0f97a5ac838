// Package jobs runs background work on the river queue. Currently a
// single periodic job: sweeping licenses whose expiry has passed into
// the expired status so list views and stats stay truthful without
// waiting for the next verification.
package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/sirupsen/logrus"

	"github.com/biz4a/aegis/storage/postgres"
)

// ExpirySweepArgs identifies the sweep job. It carries no payload; the
// worker always sweeps everything due.
type ExpirySweepArgs struct{}

func (ExpirySweepArgs) Kind() string { return "license_expiry_sweep" }

// ExpirySweeper transitions overdue licenses and records an audit entry
// for each.
type ExpirySweeper struct {
	river.WorkerDefaults[ExpirySweepArgs]

	store *postgres.Store
	log   *logrus.Logger
}

func NewExpirySweeper(store *postgres.Store, log *logrus.Logger) *ExpirySweeper {
	return &ExpirySweeper{store: store, log: log}
}

func (w *ExpirySweeper) Work(ctx context.Context, _ *river.Job[ExpirySweepArgs]) error {
	now := time.Now().UTC()
	ids, err := w.store.MarkExpired(ctx, now)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for _, id := range ids {
		licID := id
		if err := w.store.RecordEvent(ctx, &postgres.AuditLog{
			LicenseID: &licID,
			EventType: postgres.EventExpired,
		}); err != nil {
			w.log.WithError(err).WithField("license_id", id).Warn("audit write failed during expiry sweep")
		}
	}
	w.log.WithField("expired", len(ids)).Info("expiry sweep complete")
	return nil
}

// NewClient assembles a river client with the sweep worker registered
// and scheduled hourly, starting with an immediate run.
func NewClient(pool *pgxpool.Pool, store *postgres.Store, log *logrus.Logger) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewExpirySweeper(store, log))

	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return ExpirySweepArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
}
