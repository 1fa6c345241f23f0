package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
)

type jobsRepoStub struct {
	*executorRepoStub

	dueTasks  []domain.ExecutionTask
	claimErr  error
	doneTasks []uuid.UUID

	expireCutoff time.Time
	expiredCount int64
}

func (r *jobsRepoStub) ClaimDueExecutionTasks(ctx context.Context, limit int) ([]domain.ExecutionTask, error) {
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	if limit < len(r.dueTasks) {
		return r.dueTasks[:limit], nil
	}
	return r.dueTasks, nil
}

func (r *jobsRepoStub) MarkExecutionTaskDone(ctx context.Context, taskID uuid.UUID) error {
	r.doneTasks = append(r.doneTasks, taskID)
	return nil
}

func (r *jobsRepoStub) ExpireStaleIntents(ctx context.Context, olderThan time.Time) (int64, error) {
	r.expireCutoff = olderThan
	return r.expiredCount, nil
}

func TestCompletePendingTransactions_FinishesClaimedTasks(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	base := newExecutorRepoStub(plan, intent)
	base.walletBalance = 10000
	repo := &jobsRepoStub{executorRepoStub: base}

	pending := &domain.Transaction{ID: uuid.New(), IntentID: intent.ID, PlanID: plan.ID, UserID: userID, Status: domain.TxStatusPending, Amount: 5000}
	base.transactions[pending.ID] = pending
	task := domain.ExecutionTask{ID: uuid.New(), PlanID: plan.ID, TransactionID: pending.ID, Status: domain.TaskStatusProcessing}
	repo.dueTasks = []domain.ExecutionTask{task}

	engine := newTestEngine(base, &connectorStub{}, domain.ModePermissive)
	jobs := NewJobs(repo, engine, discardLogger(), 50, 30*time.Minute)

	jobs.CompletePendingTransactions()

	if pending.Status != domain.TxStatusSuccess {
		t.Fatalf("expected the queued transaction to settle, got %q", pending.Status)
	}
	if len(repo.doneTasks) != 1 || repo.doneTasks[0] != task.ID {
		t.Fatalf("expected the task to be marked done, got %v", repo.doneTasks)
	}
}

func TestCompletePendingTransactions_ClaimFailureIsAbsorbed(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	base := newExecutorRepoStub(plan, intent)
	repo := &jobsRepoStub{executorRepoStub: base, claimErr: errors.New("deadlock detected")}

	engine := newTestEngine(base, &connectorStub{}, domain.ModePermissive)
	jobs := NewJobs(repo, engine, discardLogger(), 50, 30*time.Minute)

	jobs.CompletePendingTransactions()

	if len(repo.doneTasks) != 0 {
		t.Fatalf("nothing must complete when the claim fails, got %v", repo.doneTasks)
	}
}

func TestCompletePendingTransactions_FailedFinishLeavesTaskOpen(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	base := newExecutorRepoStub(plan, intent)
	repo := &jobsRepoStub{executorRepoStub: base}

	// The task references a transaction the store no longer has.
	repo.dueTasks = []domain.ExecutionTask{{ID: uuid.New(), PlanID: plan.ID, TransactionID: uuid.New()}}

	engine := newTestEngine(base, &connectorStub{}, domain.ModePermissive)
	jobs := NewJobs(repo, engine, discardLogger(), 50, 30*time.Minute)

	jobs.CompletePendingTransactions()

	if len(repo.doneTasks) != 0 {
		t.Fatalf("a failed finish must leave the task open, got %v", repo.doneTasks)
	}
}

func TestExpireStaleIntents_UsesConfiguredTTL(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	base := newExecutorRepoStub(plan, intent)
	repo := &jobsRepoStub{executorRepoStub: base, expiredCount: 3}

	jobs := NewJobs(repo, nil, discardLogger(), 50, 30*time.Minute)
	before := time.Now()
	jobs.ExpireStaleIntents()

	want := before.Add(-30 * time.Minute)
	if repo.expireCutoff.Before(want.Add(-time.Second)) || repo.expireCutoff.After(want.Add(time.Second)) {
		t.Fatalf("cutoff %v not within a second of %v", repo.expireCutoff, want)
	}
}
