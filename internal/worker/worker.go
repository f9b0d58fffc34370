// Package worker bootstraps the River job queue and the periodic deadline
// scan that publishes per-organization due-date counts.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/d9705996/licenca/internal/store"
	"github.com/d9705996/licenca/internal/status"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// DeadlineScanArgs is the periodic job that recomputes deadline counts.
type DeadlineScanArgs struct{}

// Kind returns the unique job type identifier for deadline scan jobs.
func (DeadlineScanArgs) Kind() string { return "deadline_scan" }

type deadlineScanWorker struct {
	river.WorkerDefaults[DeadlineScanArgs]
	scan ScanConfig
	log  *slog.Logger
}

func (w *deadlineScanWorker) Work(ctx context.Context, _ *river.Job[DeadlineScanArgs]) error {
	_, err := w.scan.Run(ctx, w.log)
	return err
}

// ScanConfig configures the deadline scan.
type ScanConfig struct {
	Client   store.Client
	Clock    status.Clock
	Location *time.Location
	Interval time.Duration
}

// Run scans once at the configured clock's current time.
func (c ScanConfig) Run(ctx context.Context, log *slog.Logger) (map[string]status.Summary, error) {
	now := c.Clock.Now()
	if c.Location != nil {
		now = now.In(c.Location)
	}
	return ScanDeadlines(ctx, c.Client, now, log)
}

// Queue is the interface exposed by both the real River client and localQueue.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Client wraps river.Client and exposes a Start/Stop lifecycle.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// localQueue runs the deadline scan on a ticker when River is unavailable
// (DB_DRIVER=sqlite).
type localQueue struct {
	scan ScanConfig
	log  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (q *localQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return nil
	}
	q.log.Info("river disabled (sqlite driver); running deadline scan in-process", "interval", q.scan.Interval)

	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	go q.loop(ctx, q.done)
	return nil
}

func (q *localQueue) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(q.scan.Interval)
	defer ticker.Stop()
	for {
		if _, err := q.scan.Run(ctx, q.log); err != nil && ctx.Err() == nil {
			q.log.Error("deadline scan failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (q *localQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	cancel, done := q.cancel, q.done
	q.cancel, q.done = nil, nil
	q.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New creates a queue implementation appropriate for the given driver.
//   - "postgres": returns a River client backed by pool that runs the
//     deadline scan as a periodic job.
//   - anything else: returns a queue that runs the scan on a local ticker.
//
// pool may be nil when driver != "postgres".
func New(ctx context.Context, pool *pgxpool.Pool, driver string, concurrency int, scan ScanConfig, log *slog.Logger) (Queue, error) {
	if scan.Interval <= 0 {
		scan.Interval = time.Hour
	}
	if scan.Clock == nil {
		scan.Clock = status.SystemClock{}
	}
	if driver != "postgres" {
		return &localQueue{scan: scan, log: log}, nil
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &deadlineScanWorker{scan: scan, log: log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: concurrency},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(scan.Interval),
				func() (river.JobArgs, *river.InsertOpts) { return DeadlineScanArgs{}, nil },
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
