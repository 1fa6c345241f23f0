/**
 * @description
 * The execution engine: consumes a resolution plan exactly once and produces
 * a transaction that settles into a single terminal state. Sync plans run
 * their steps inline; async plans create a pending transaction backed by a
 * durable execution task that the completion job finishes later.
 *
 * @notes
 * - A plan is claimed with a conditional created -> executing update before
 *   any money moves, so concurrent execute calls cannot both run it.
 * - Balance effects apply only after every connector step succeeds. A failed
 *   step leaves all balances untouched.
 * - Connector failures arrive as a closed reason enum and map directly onto
 *   transaction failure types.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
	"github.com/onetap/payment-service/internal/store"
	"github.com/onetap/payment-service/pkg/rabbitmq"
	"github.com/onetap/payment-service/pkg/railconnector"
)

var (
	// ErrConfirmationRequired is returned when a plan that needs explicit
	// user confirmation is executed without it.
	ErrConfirmationRequired = errors.New("plan requires explicit confirmation before execution")
	// ErrPlanNotExecutable is returned for plans whose resolution outcome
	// produced nothing to run.
	ErrPlanNotExecutable = errors.New("plan has no executable steps")
)

// ExecutePlanRequest carries the inputs for one execution attempt.
type ExecutePlanRequest struct {
	UserID    uuid.UUID
	DeviceID  string
	PlanID    uuid.UUID
	Confirmed bool
}

// ExecutionEngine turns claimed plans into settled transactions.
type ExecutionEngine struct {
	repo       store.Repository
	gates      *GateChecker
	security   *SecurityService
	connector  railconnector.Client
	publisher  rabbitmq.Publisher
	logger     *slog.Logger
	asyncDelay time.Duration
	now        func() time.Time
}

// NewExecutionEngine wires the engine. asyncDelay is how long a pending
// transaction waits before the completion job may finish it.
func NewExecutionEngine(
	repo store.Repository,
	gates *GateChecker,
	security *SecurityService,
	connector railconnector.Client,
	publisher rabbitmq.Publisher,
	logger *slog.Logger,
	asyncDelay time.Duration,
) *ExecutionEngine {
	return &ExecutionEngine{
		repo:       repo,
		gates:      gates,
		security:   security,
		connector:  connector,
		publisher:  publisher,
		logger:     logger,
		asyncDelay: asyncDelay,
		now:        time.Now,
	}
}

// ExecutePlan runs the full execution pipeline for a plan. Precondition
// failures (gates, pause, security) settle as failed transactions rather
// than errors; an error return means the pipeline itself could not run.
func (e *ExecutionEngine) ExecutePlan(ctx context.Context, req ExecutePlanRequest) (*domain.Transaction, error) {
	plan, err := e.repo.FindPlanByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != req.UserID {
		return nil, store.ErrPlanNotFound
	}
	switch plan.Action {
	case domain.ActionBlocked, domain.ActionInsufficientFunds:
		return nil, ErrPlanNotExecutable
	}
	if len(plan.Steps) == 0 {
		return nil, ErrPlanNotExecutable
	}
	if plan.RequiresConfirmation && !req.Confirmed {
		return nil, ErrConfirmationRequired
	}

	intent, err := e.repo.FindIntentByID(ctx, plan.IntentID)
	if err != nil {
		return nil, err
	}

	gate, err := e.gates.CheckResolutionGates(ctx, req.UserID, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if !gate.Passed {
		// The plan stays claimable so the user can retry once unblocked.
		return e.recordPrecheckFailure(ctx, plan, intent, domain.FailureIdentityBlocked, gate.BlockedReason)
	}

	settings, err := e.repo.GetUserSettings(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if settings.Paused {
		return e.recordPrecheckFailure(ctx, plan, intent, domain.FailureUserPaused, "automatic payments are paused")
	}

	if err := e.repo.ClaimPlanForExecution(ctx, plan.ID); err != nil {
		return nil, err
	}

	check, err := e.security.PrePaymentSecurityCheck(ctx, req.UserID, plan.ID, intent.Amount)
	if err != nil {
		return nil, err
	}
	if !check.Approved {
		// The claim is consumed. A rejected security pass settles the plan.
		tx, txErr := e.recordPrecheckFailure(ctx, plan, intent, domain.FailureRiskBlocked, check.Reason)
		if txErr != nil {
			return nil, txErr
		}
		if markErr := e.repo.MarkPlanExecuted(ctx, plan.ID); markErr != nil {
			e.logger.Warn("failed to settle rejected plan", "plan_id", plan.ID, "err", markErr)
		}
		return tx, nil
	}

	tx := &domain.Transaction{
		ID:       uuid.New(),
		IntentID: intent.ID,
		PlanID:   plan.ID,
		UserID:   req.UserID,
		Amount:   intent.Amount,
	}

	// Only async executions persist a pending row, paired with the durable
	// task that later finishes it. Sync executions write a single terminal
	// row at settlement, so a crash mid-step never strands a pending
	// transaction nothing will complete.
	if plan.ExecutionMode == domain.ExecutionAsync {
		tx.Status = domain.TxStatusPending
		if err := e.repo.CreateTransaction(ctx, tx); err != nil {
			return nil, err
		}
		task := &domain.ExecutionTask{
			ID:            uuid.New(),
			PlanID:        plan.ID,
			TransactionID: tx.ID,
			SignatureID:   check.Signature.ID,
			Status:        domain.TaskStatusQueued,
			AvailableAt:   e.now().Add(e.asyncDelay),
		}
		if err := e.repo.EnqueueExecutionTask(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to enqueue execution task: %w", err)
		}
		e.publishTransactionEvent(ctx, tx)
		e.logger.Info("async execution queued",
			"transaction_id", tx.ID, "plan_id", plan.ID, "available_at", task.AvailableAt)
		return tx, nil
	}

	return e.finishTransaction(ctx, plan, intent, tx, check.Signature.ID, false)
}

// FinishPendingTransaction completes one queued async execution. It is the
// completion job's entry point and runs the same step pipeline as sync
// mode; the signature from claim time rides on the task so the async
// receipt records the same signature id a sync one would.
func (e *ExecutionEngine) FinishPendingTransaction(ctx context.Context, task domain.ExecutionTask) (*domain.Transaction, error) {
	tx, err := e.repo.FindTransactionByID(ctx, task.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxStatusPending {
		// Cancelled or already settled while queued. Nothing to run.
		return tx, nil
	}
	plan, err := e.repo.FindPlanByID(ctx, task.PlanID)
	if err != nil {
		return nil, err
	}
	intent, err := e.repo.FindIntentByID(ctx, plan.IntentID)
	if err != nil {
		return nil, err
	}
	return e.finishTransaction(ctx, plan, intent, tx, task.SignatureID, true)
}

// CancelTransaction cancels a pending transaction owned by the user. The
// store rejects the write unless the transaction is still pending.
func (e *ExecutionEngine) CancelTransaction(ctx context.Context, userID uuid.UUID, transactionID uuid.UUID) (*domain.Transaction, error) {
	if err := e.repo.CancelTransaction(ctx, transactionID, userID); err != nil {
		return nil, err
	}
	tx, err := e.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	executionsTotal.WithLabelValues(domain.TxStatusCancelled).Inc()
	e.publishTransactionEvent(ctx, tx)
	e.appendActivity(ctx, tx, fmt.Sprintf("Cancelled payment of %d", tx.Amount))
	return tx, nil
}

// finishTransaction runs the plan's steps and settles the transaction.
// persisted reports whether tx already exists as a pending row; when false
// the terminal state is written as a single insert.
func (e *ExecutionEngine) finishTransaction(
	ctx context.Context,
	plan *domain.ResolutionPlan,
	intent *domain.Intent,
	tx *domain.Transaction,
	signatureID string,
	persisted bool,
) (*domain.Transaction, error) {
	if failureType, failedStep := e.runConnectorSteps(ctx, plan, intent, tx); failureType != "" {
		return e.settleFailed(ctx, plan, intent, tx, failureType, failedStep, persisted)
	}

	if failureType := e.applyBalanceEffects(ctx, plan); failureType != "" {
		return e.settleFailed(ctx, plan, intent, tx, failureType, "wallet balance changed during execution", persisted)
	}

	completedAt := e.now()
	receipt := &domain.Receipt{
		SignatureID: signatureID,
		Rail:        plan.ChosenRail,
		Steps:       plan.Steps,
		CompletedAt: &completedAt,
	}
	tx.Status = domain.TxStatusSuccess
	tx.Receipt = receipt
	if persisted {
		if err := e.repo.MarkTransactionSuccess(ctx, tx.ID, receipt); err != nil {
			return nil, err
		}
	} else {
		if err := e.repo.CreateTransaction(ctx, tx); err != nil {
			return nil, err
		}
	}
	if err := e.repo.MarkPlanExecuted(ctx, plan.ID); err != nil {
		e.logger.Warn("failed to mark plan executed", "plan_id", plan.ID, "err", err)
	}

	executionsTotal.WithLabelValues(domain.TxStatusSuccess).Inc()
	e.security.PostPaymentAuditLog(ctx, tx.UserID, plan.ID, true, map[string]string{
		"transaction_id": tx.ID.String(),
		"rail":           plan.ChosenRail,
	})
	e.appendActivity(ctx, tx, fmt.Sprintf("Paid %d to %s via %s", tx.Amount, intent.PayeeName, plan.ChosenRail))
	e.publishTransactionEvent(ctx, tx)
	e.logger.Info("transaction settled",
		"transaction_id", tx.ID, "status", tx.Status, "rail", plan.ChosenRail, "amount", tx.Amount)
	return tx, nil
}

// runConnectorSteps executes each step over the rail connector. It returns
// the failure type for the first failed step, or "" when all succeed.
func (e *ExecutionEngine) runConnectorSteps(
	ctx context.Context,
	plan *domain.ResolutionPlan,
	intent *domain.Intent,
	tx *domain.Transaction,
) (failureType string, detail string) {
	for i, step := range plan.Steps {
		// Each step runs over its own source's rail: a top-up pulls from the
		// bank's rail and a fallback charge from the card's, not the plan's
		// chosen rail.
		rail := step.Rail
		if rail == "" {
			rail = plan.ChosenRail
		}
		result, err := e.connector.Execute(ctx, railconnector.ExecuteRequest{
			Rail:      rail,
			Action:    step.Action,
			Amount:    step.Amount,
			Currency:  intent.Currency,
			Reference: fmt.Sprintf("%s/%d", tx.ID, i),
		})
		if err != nil {
			e.logger.Warn("connector call failed", "transaction_id", tx.ID, "step", i, "err", err)
			return classifyFailure(err), step.Description
		}
		if !result.Succeeded {
			return failureTypeForReason(result.Reason), step.Description
		}
	}
	return "", ""
}

// applyBalanceEffects moves the internal balances once the connector has
// succeeded. Top-up credits land on the wallet before the wallet charge is
// debited, so the conditional debit sees the topped-up balance.
func (e *ExecutionEngine) applyBalanceEffects(ctx context.Context, plan *domain.ResolutionPlan) (failureType string) {
	for i, step := range plan.Steps {
		switch step.Action {
		case domain.StepTopUp:
			wallet, ok := walletChargeAfter(plan.Steps, i)
			if !ok {
				continue
			}
			if err := e.repo.CreditWalletBalance(ctx, wallet.SourceID, step.Amount); err != nil {
				e.logger.Error("wallet credit failed", "source_id", wallet.SourceID, "err", err)
				return domain.FailureConnectorUnavailable
			}
		case domain.StepCharge:
			if step.SourceType != domain.SourceTypeWallet {
				continue
			}
			if err := e.repo.DebitWalletBalance(ctx, step.SourceID, step.Amount); err != nil {
				if errors.Is(err, store.ErrInsufficientFunds) {
					return domain.FailureInsufficientFunds
				}
				e.logger.Error("wallet debit failed", "source_id", step.SourceID, "err", err)
				return domain.FailureConnectorUnavailable
			}
		}
	}
	return ""
}

func (e *ExecutionEngine) settleFailed(
	ctx context.Context,
	plan *domain.ResolutionPlan,
	intent *domain.Intent,
	tx *domain.Transaction,
	failureType string,
	detail string,
	persisted bool,
) (*domain.Transaction, error) {
	tx.Status = domain.TxStatusFailed
	tx.FailureType = &failureType
	if persisted {
		if err := e.repo.MarkTransactionFailed(ctx, tx.ID, failureType); err != nil {
			return nil, err
		}
	} else {
		if err := e.repo.CreateTransaction(ctx, tx); err != nil {
			return nil, err
		}
	}
	if err := e.repo.MarkPlanExecuted(ctx, plan.ID); err != nil {
		e.logger.Warn("failed to mark plan executed", "plan_id", plan.ID, "err", err)
	}
	executionsTotal.WithLabelValues(domain.TxStatusFailed).Inc()
	e.security.PostPaymentAuditLog(ctx, tx.UserID, plan.ID, false, map[string]string{
		"transaction_id": tx.ID.String(),
		"failure_type":   failureType,
		"detail":         detail,
	})
	e.appendActivity(ctx, tx, fmt.Sprintf("Payment of %d to %s failed (%s)", tx.Amount, intent.PayeeName, failureType))
	e.publishTransactionEvent(ctx, tx)
	e.logger.Warn("transaction failed",
		"transaction_id", tx.ID, "failure_type", failureType, "detail", detail)
	return tx, nil
}

// recordPrecheckFailure creates a transaction already in the failed state
// for preconditions that reject execution before any step runs.
func (e *ExecutionEngine) recordPrecheckFailure(
	ctx context.Context,
	plan *domain.ResolutionPlan,
	intent *domain.Intent,
	failureType string,
	reason string,
) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:          uuid.New(),
		IntentID:    intent.ID,
		PlanID:      plan.ID,
		UserID:      plan.UserID,
		Status:      domain.TxStatusFailed,
		FailureType: &failureType,
		Amount:      intent.Amount,
	}
	if err := e.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	executionsTotal.WithLabelValues(domain.TxStatusFailed).Inc()
	e.appendActivity(ctx, tx, fmt.Sprintf("Payment of %d to %s blocked: %s", tx.Amount, intent.PayeeName, reason))
	e.publishTransactionEvent(ctx, tx)
	return tx, nil
}

func (e *ExecutionEngine) appendActivity(ctx context.Context, tx *domain.Transaction, message string) {
	entry := &domain.ActivityEntry{
		ID:            uuid.New(),
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Message:       message,
	}
	if err := e.repo.AppendActivityEntry(ctx, entry); err != nil {
		e.logger.Warn("activity entry write failed", "transaction_id", tx.ID, "err", err)
	}
}

func (e *ExecutionEngine) publishTransactionEvent(ctx context.Context, tx *domain.Transaction) {
	if e.publisher == nil {
		return
	}
	event := rabbitmq.TransactionEvent{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Timestamp:     e.now(),
	}
	if err := e.publisher.PublishTransactionEvent(ctx, event); err != nil {
		e.logger.Warn("transaction event publish failed", "transaction_id", tx.ID, "err", err)
	}
}

// failureTypeForReason maps the connector's closed reason enum onto the
// transaction failure taxonomy.
func failureTypeForReason(reason railconnector.FailureReason) string {
	switch reason {
	case railconnector.ReasonInsufficientFunds:
		return domain.FailureInsufficientFunds
	case railconnector.ReasonRailUnavailable:
		return domain.FailureConnectorUnavailable
	case railconnector.ReasonDeclined:
		return domain.FailureRiskBlocked
	default:
		return domain.FailureUnknown
	}
}

// classifyFailure maps legacy free-text connector errors onto the failure
// taxonomy. Connectors report a typed reason on the result; this shim only
// covers transport-level errors from gateways that never set one.
func classifyFailure(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient"):
		return domain.FailureInsufficientFunds
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"), strings.Contains(msg, "deadline"):
		return domain.FailureConnectorUnavailable
	default:
		return domain.FailureConnectorUnavailable
	}
}

// walletChargeAfter finds the wallet charge a top-up at index i feeds.
func walletChargeAfter(steps []domain.ResolutionStep, i int) (domain.ResolutionStep, bool) {
	for _, step := range steps[i+1:] {
		if step.Action == domain.StepCharge && step.SourceType == domain.SourceTypeWallet {
			return step, true
		}
	}
	return domain.ResolutionStep{}, false
}
