/**
 * @description
 * Scheduled job implementations: completing queued async executions and
 * expiring stale intents. Jobs read their work from the database, so a
 * process restart between runs loses nothing.
 */

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/onetap/payment-service/internal/store"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo      store.Repository
	engine    *ExecutionEngine
	logger    *slog.Logger
	batchSize int
	intentTTL time.Duration
	now       func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo store.Repository, engine *ExecutionEngine, logger *slog.Logger, batchSize int, intentTTL time.Duration) *Jobs {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Jobs{
		repo:      repo,
		engine:    engine,
		logger:    logger,
		batchSize: batchSize,
		intentTTL: intentTTL,
		now:       time.Now,
	}
}

// CompletePendingTransactions claims due execution tasks and finishes them
// through the execution engine. Claimed-but-unfinished tasks stay in the
// processing state; a failed finish leaves the task for manual review
// rather than re-running money movement blindly.
func (j *Jobs) CompletePendingTransactions() {
	ctx := context.Background()

	tasks, err := j.repo.ClaimDueExecutionTasks(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("failed to claim execution tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}
	executionTasksClaimed.Add(float64(len(tasks)))
	j.logger.Info("claimed execution tasks", "count", len(tasks))

	for _, task := range tasks {
		tx, err := j.engine.FinishPendingTransaction(ctx, task)
		if err != nil {
			j.logger.Error("failed to finish pending transaction",
				"task_id", task.ID, "transaction_id", task.TransactionID, "error", err)
			continue
		}
		if err := j.repo.MarkExecutionTaskDone(ctx, task.ID); err != nil {
			j.logger.Error("failed to mark execution task done", "task_id", task.ID, "error", err)
			continue
		}
		j.logger.Info("completed pending transaction",
			"task_id", task.ID, "transaction_id", tx.ID, "status", tx.Status)
	}
}

// ExpireStaleIntents closes open intents older than the configured TTL.
func (j *Jobs) ExpireStaleIntents() {
	ctx := context.Background()

	cutoff := j.now().Add(-j.intentTTL)
	expired, err := j.repo.ExpireStaleIntents(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to expire stale intents", "error", err)
		return
	}
	if expired > 0 {
		j.logger.Info("expired stale intents", "count", expired, "older_than", cutoff)
	}
}
