package relay

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/logger"
	"github.com/vendaslabs/orders-backend/pkg/metrics"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
)

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 5 * time.Minute
)

// Applier executes the catalog-side effect an outbox entry records.
type Applier interface {
	ApplyEntry(ctx context.Context, entry *models.OutboxEntry) error
}

// Worker drains the outbox: claim, apply, acknowledge. Retries use
// exponential backoff with jitter; entries that exhaust their attempts are
// parked as failed for an operator, never dropped.
type Worker struct {
	repo    Repository
	applier Applier
	cfg     config.RelayConfig
	metrics *metrics.RelayMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// WorkerParams bundles the dependencies required to build a relay worker.
type WorkerParams struct {
	Repo    Repository
	Applier Applier
	Config  config.RelayConfig
	Metrics *metrics.RelayMetrics
	Logger  *logger.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewWorker constructs a relay worker with the provided dependencies.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if params.Applier == nil {
		return nil, fmt.Errorf("applier is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg := params.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 500
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = time.Minute
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Worker{
		repo:    params.Repo,
		applier: params.Applier,
		cfg:     cfg,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	interval := time.Duration(w.cfg.PollIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logg.Info(ctx, "outbox relay started")
	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "outbox relay stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logg.Error(ctx, "relay tick failed", err)
			}
		}
	}
}

// Tick performs one polling round: recover expired leases, then claim and
// apply a batch of due entries.
func (w *Worker) Tick(ctx context.Context) error {
	now := w.now()

	requeued, err := w.repo.ReleaseExpiredLeases(ctx, now.Add(-w.cfg.LeaseTimeout))
	if err != nil {
		return fmt.Errorf("release expired leases: %w", err)
	}
	if requeued > 0 {
		w.logg.Warn(ctx, fmt.Sprintf("returned %d expired outbox leases to pending", requeued))
		for i := int64(0); i < requeued; i++ {
			w.metrics.IncLeaseRequeued()
		}
	}

	entries, err := w.repo.FetchDue(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch due entries: %w", err)
	}

	for i := range entries {
		entry := entries[i]
		claimed, err := w.repo.Claim(ctx, entry.ID, w.now())
		if err != nil {
			return fmt.Errorf("claim entry %s: %w", entry.ID, err)
		}
		if !claimed {
			continue
		}
		w.processEntry(ctx, &entry)
	}
	return nil
}

func (w *Worker) processEntry(ctx context.Context, entry *models.OutboxEntry) {
	action := string(entry.Action)
	entryCtx := w.logg.WithFields(ctx, map[string]any{
		"outbox_id": entry.ID.String(),
		"action":    action,
		"attempt":   entry.Attempts + 1,
	})

	started := w.now()
	err := w.applier.ApplyEntry(entryCtx, entry)
	w.metrics.ObserveDelivery(action, w.now().Sub(started))

	if err == nil {
		if err := w.repo.MarkDelivered(ctx, entry.ID); err != nil {
			w.logg.Error(entryCtx, "mark delivered failed", err)
			return
		}
		w.metrics.IncSuccess(action)
		return
	}

	attempts := entry.Attempts + 1
	if attempts >= w.cfg.MaxAttempts {
		w.logg.Error(entryCtx, "outbox entry exhausted attempts, parking as failed", err)
		if markErr := w.repo.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
			w.logg.Error(entryCtx, "mark failed errored", markErr)
			return
		}
		w.metrics.IncTerminalFailure(action)
		return
	}

	next := w.now().Add(backoffDelay(attempts))
	w.logg.Warn(entryCtx, fmt.Sprintf("delivery failed, retrying after %s: %v", next.Format(time.RFC3339), err))
	if requeueErr := w.repo.Requeue(ctx, entry.ID, next, err.Error()); requeueErr != nil {
		w.logg.Error(entryCtx, "requeue failed", requeueErr)
		return
	}
	w.metrics.IncFailure(action)
}

// ListFailed surfaces parked entries for operator tooling.
func (w *Worker) ListFailed(ctx context.Context, params pagination.Params) (pagination.PageResult[models.OutboxEntry], error) {
	entries, total, err := w.repo.ListFailed(ctx, params)
	if err != nil {
		return pagination.PageResult[models.OutboxEntry]{}, err
	}
	return pagination.NewPageResult(entries, params, total), nil
}

// backoffDelay grows exponentially with the attempt count, capped, with up to
// 20% jitter to spread concurrent retries.
func backoffDelay(attempts int) time.Duration {
	delay := backoffBase
	for i := 1; i < attempts && delay < backoffCap; i++ {
		delay *= 2
	}
	if delay > backoffCap {
		delay = backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1))
	return delay + jitter
}
