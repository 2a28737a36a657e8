package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/service"
)

const snapshotLeaseKey = "worker:score-snapshot:lease"

// SnapshotWorker periodically refreshes cached leaderboard score snapshots.
// A run never starts while a prior run of the same job is still in flight:
// the atomic flag guards within this process, the Redis lease across
// processes.
type SnapshotWorker struct {
	leaderboard *service.LeaderboardService
	locker      *redis.Client
	logger      *zap.Logger
	interval    time.Duration
	running     atomic.Bool
	stop        chan struct{}
}

// NewSnapshotWorker constructs the worker. locker is optional.
func NewSnapshotWorker(leaderboard *service.LeaderboardService, locker *redis.Client, logger *zap.Logger, interval time.Duration) *SnapshotWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotWorker{
		leaderboard: leaderboard,
		locker:      locker,
		logger:      logger,
		interval:    interval,
		stop:        make(chan struct{}),
	}
}

// Start launches the refresh loop in its own goroutine.
func (w *SnapshotWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.RunOnce(context.Background())
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop halts the refresh loop.
func (w *SnapshotWorker) Stop() {
	close(w.stop)
}

// RunOnce executes a single guarded refresh. Overlapping invocations are
// skipped, per-run failures are logged and never crash the schedule.
func (w *SnapshotWorker) RunOnce(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("snapshot refresh still in flight, skipping run")
		return
	}
	defer w.running.Store(false)

	if w.locker != nil {
		acquired, err := w.locker.SetNX(ctx, snapshotLeaseKey, "1", w.interval).Result()
		if err != nil {
			w.logger.Warn("snapshot lease check failed", zap.Error(err))
			return
		}
		if !acquired {
			w.logger.Debug("snapshot lease held elsewhere, skipping run")
			return
		}
		defer w.locker.Del(context.WithoutCancel(ctx), snapshotLeaseKey)
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("snapshot refresh panicked", zap.Any("panic", r))
		}
	}()

	count, err := w.leaderboard.RefreshScoreSnapshots(ctx)
	if err != nil {
		w.logger.Warn("snapshot refresh failed", zap.Error(err))
		return
	}
	w.logger.Debug("snapshot refresh complete", zap.Int("users", count))
}
