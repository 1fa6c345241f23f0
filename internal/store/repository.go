/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the payment-service needs. Defining an interface decouples the
 * business logic from PostgreSQL and lets tests substitute small stubs that
 * override only the methods a scenario touches.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For entity ids.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDeviceNotFound      = errors.New("trusted device not found")
	ErrConsentNotFound     = errors.New("consent not found")
	ErrIntentNotFound      = errors.New("intent not found")
	ErrPlanNotFound        = errors.New("resolution plan not found")
	ErrPlanAlreadyExecuted = errors.New("resolution plan already executed")
	ErrSourceNotFound      = errors.New("funding source not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNotCancellable      = errors.New("only pending transactions can be cancelled")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Users, devices, consents, settings
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*domain.TrustedDevice, error)
	// UpsertTrustedDevice registers or refreshes a device keyed by (user, device id).
	UpsertTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string, trusted bool) error
	TouchTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string) error
	FindConsent(ctx context.Context, userID uuid.UUID, connectorID uuid.UUID) (*domain.Consent, error)
	GetUserSettings(ctx context.Context, userID uuid.UUID) (*domain.UserSettings, error)

	// Funding sources and connectors
	ListFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error)
	FindFundingSourceByID(ctx context.Context, sourceID uuid.UUID) (*domain.FundingSource, error)
	// DebitWalletBalance decrements a wallet balance in a single conditional
	// statement; it fails with ErrInsufficientFunds rather than ever driving
	// the balance negative.
	DebitWalletBalance(ctx context.Context, sourceID uuid.UUID, amount int64) error
	CreditWalletBalance(ctx context.Context, sourceID uuid.UUID, amount int64) error
	ListConnectors(ctx context.Context, userID uuid.UUID) ([]domain.Connector, error)

	// Intents and plans
	CreateIntent(ctx context.Context, intent *domain.Intent) error
	FindIntentByID(ctx context.Context, intentID uuid.UUID) (*domain.Intent, error)
	ExpireStaleIntents(ctx context.Context, olderThan time.Time) (int64, error)
	CreatePlan(ctx context.Context, plan *domain.ResolutionPlan) error
	FindPlanByID(ctx context.Context, planID uuid.UUID) (*domain.ResolutionPlan, error)
	// ClaimPlanForExecution performs the conditional created -> executing
	// transition; a second concurrent claim gets ErrPlanAlreadyExecuted.
	ClaimPlanForExecution(ctx context.Context, planID uuid.UUID) error
	MarkPlanExecuted(ctx context.Context, planID uuid.UUID) error

	// Transactions
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	MarkTransactionSuccess(ctx context.Context, transactionID uuid.UUID, receipt *domain.Receipt) error
	MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, failureType string) error
	CancelTransaction(ctx context.Context, transactionID uuid.UUID, userID uuid.UUID) error
	CountSuccessfulTransactionsByRail(ctx context.Context, userID uuid.UUID, since time.Time) (map[string]int64, error)

	// Daily guardrail state (atomic, keyed by user and ISO date)
	GetDailyState(ctx context.Context, userID uuid.UUID, date string) (*domain.DailyPaymentState, error)
	AddToDailyState(ctx context.Context, userID uuid.UUID, date string, amount int64) (int64, error)

	// Append-only logs
	AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
	AppendActivityEntry(ctx context.Context, entry *domain.ActivityEntry) error

	// Durable async execution queue
	EnqueueExecutionTask(ctx context.Context, task *domain.ExecutionTask) error
	ClaimDueExecutionTasks(ctx context.Context, limit int) ([]domain.ExecutionTask, error)
	MarkExecutionTaskDone(ctx context.Context, taskID uuid.UUID) error
}
