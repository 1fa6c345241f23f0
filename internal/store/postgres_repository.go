/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed for intents, plans, transactions,
 * funding sources, gates, guardrail state, append-only logs, and the durable
 * async execution queue.
 *
 * @notes
 * - Balance math, daily-counter math, and status transitions are all done
 *   server-side in single conditional statements so concurrent callers can
 *   never produce lost updates or illegal transitions.
 * - JSON columns (steps, metadata, receipts, detail) are marshaled here, not
 *   in the domain layer.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/onetap/payment-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, username, identity_status, created_at FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.IdentityStatus, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindTrustedDevice retrieves the trust record for a (user, device) pair.
func (r *PostgresRepository) FindTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*domain.TrustedDevice, error) {
	var device domain.TrustedDevice
	query := `
		SELECT id, user_id, device_id, trusted, last_seen_at, created_at
		FROM trusted_devices
		WHERE user_id = $1 AND device_id = $2`
	err := r.db.QueryRow(ctx, query, userID, deviceID).Scan(
		&device.ID, &device.UserID, &device.DeviceID, &device.Trusted, &device.LastSeenAt, &device.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

// UpsertTrustedDevice registers or refreshes a device keyed by (user, device id).
func (r *PostgresRepository) UpsertTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string, trusted bool) error {
	query := `
		INSERT INTO trusted_devices (id, user_id, device_id, trusted, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, device_id)
		DO UPDATE SET trusted = EXCLUDED.trusted, last_seen_at = NOW()`
	_, err := r.db.Exec(ctx, query, uuid.New(), userID, deviceID, trusted)
	return err
}

// TouchTrustedDevice refreshes the last-seen timestamp on a passing gate check.
func (r *PostgresRepository) TouchTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string) error {
	query := `UPDATE trusted_devices SET last_seen_at = NOW() WHERE user_id = $1 AND device_id = $2`
	_, err := r.db.Exec(ctx, query, userID, deviceID)
	return err
}

// FindConsent retrieves the consent record for a (user, connector) pair.
func (r *PostgresRepository) FindConsent(ctx context.Context, userID uuid.UUID, connectorID uuid.UUID) (*domain.Consent, error) {
	var consent domain.Consent
	query := `
		SELECT id, user_id, connector_id, status, expires_at, created_at
		FROM consents
		WHERE user_id = $1 AND connector_id = $2`
	err := r.db.QueryRow(ctx, query, userID, connectorID).Scan(
		&consent.ID, &consent.UserID, &consent.ConnectorID, &consent.Status, &consent.ExpiresAt, &consent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsentNotFound
		}
		return nil, err
	}
	return &consent, nil
}

// GetUserSettings returns the user's settings, falling back to defaults when
// no row exists yet.
func (r *PostgresRepository) GetUserSettings(ctx context.Context, userID uuid.UUID) (*domain.UserSettings, error) {
	var settings domain.UserSettings
	query := `
		SELECT user_id, paused, fallback_preference, strategy, updated_at
		FROM user_settings
		WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&settings.UserID, &settings.Paused, &settings.FallbackPreference, &settings.Strategy, &settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.UserSettings{
				UserID:             userID,
				Paused:             false,
				FallbackPreference: domain.FallbackTopUpWallet,
				Strategy:           domain.StrategyPriority,
			}, nil
		}
		return nil, err
	}
	return &settings, nil
}

// ListFundingSources returns a user's funding sources ordered by priority.
func (r *PostgresRepository) ListFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error) {
	query := `
		SELECT id, user_id, name, type, balance, currency, priority, is_linked, is_available,
		       max_auto_top_up, confirmation_threshold, created_at, updated_at
		FROM funding_sources
		WHERE user_id = $1
		ORDER BY priority ASC, created_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.FundingSource
	for rows.Next() {
		var s domain.FundingSource
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Name, &s.Type, &s.Balance, &s.Currency, &s.Priority,
			&s.IsLinked, &s.IsAvailable, &s.MaxAutoTopUp, &s.ConfirmationThreshold,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// FindFundingSourceByID retrieves one funding source.
func (r *PostgresRepository) FindFundingSourceByID(ctx context.Context, sourceID uuid.UUID) (*domain.FundingSource, error) {
	var s domain.FundingSource
	query := `
		SELECT id, user_id, name, type, balance, currency, priority, is_linked, is_available,
		       max_auto_top_up, confirmation_threshold, created_at, updated_at
		FROM funding_sources
		WHERE id = $1`
	err := r.db.QueryRow(ctx, query, sourceID).Scan(
		&s.ID, &s.UserID, &s.Name, &s.Type, &s.Balance, &s.Currency, &s.Priority,
		&s.IsLinked, &s.IsAvailable, &s.MaxAutoTopUp, &s.ConfirmationThreshold,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DebitWalletBalance decrements a wallet balance atomically. The WHERE clause
// carries the non-negative constraint, so a concurrent charge that would
// overdraw simply matches zero rows.
func (r *PostgresRepository) DebitWalletBalance(ctx context.Context, sourceID uuid.UUID, amount int64) error {
	query := `
		UPDATE funding_sources
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND type = 'wallet' AND balance >= $1`
	tag, err := r.db.Exec(ctx, query, amount, sourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// CreditWalletBalance adds funds to a wallet (the landing side of a top_up).
func (r *PostgresRepository) CreditWalletBalance(ctx context.Context, sourceID uuid.UUID, amount int64) error {
	query := `
		UPDATE funding_sources
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, amount, sourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// ListConnectors returns the live connectors backing a user's rails.
func (r *PostgresRepository) ListConnectors(ctx context.Context, userID uuid.UUID) ([]domain.Connector, error) {
	query := `
		SELECT id, user_id, name, type, status, capabilities, created_at
		FROM connectors
		WHERE user_id = $1
		ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connectors []domain.Connector
	for rows.Next() {
		var c domain.Connector
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Status, &c.Capabilities, &c.CreatedAt); err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	return connectors, rows.Err()
}

// CreateIntent inserts a new immutable intent.
func (r *PostgresRepository) CreateIntent(ctx context.Context, intent *domain.Intent) error {
	metadata, err := json.Marshal(intent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal intent metadata: %w", err)
	}
	query := `
		INSERT INTO intents (id, user_id, type, payee_name, payee_identifier, amount, currency, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`
	_, err = r.db.Exec(ctx, query,
		intent.ID, intent.UserID, intent.Type, intent.PayeeName, intent.PayeeIdentifier,
		intent.Amount, intent.Currency, intent.Status, metadata,
	)
	return err
}

// FindIntentByID retrieves an intent.
func (r *PostgresRepository) FindIntentByID(ctx context.Context, intentID uuid.UUID) (*domain.Intent, error) {
	var intent domain.Intent
	var metadata []byte
	query := `
		SELECT id, user_id, type, payee_name, payee_identifier, amount, currency, status, metadata, created_at
		FROM intents
		WHERE id = $1`
	err := r.db.QueryRow(ctx, query, intentID).Scan(
		&intent.ID, &intent.UserID, &intent.Type, &intent.PayeeName, &intent.PayeeIdentifier,
		&intent.Amount, &intent.Currency, &intent.Status, &metadata, &intent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &intent.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal intent metadata: %w", err)
		}
	}
	return &intent, nil
}

// ExpireStaleIntents closes open intents created before the cutoff that never
// produced a plan.
func (r *PostgresRepository) ExpireStaleIntents(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE intents
		SET status = 'expired'
		WHERE status = 'open'
		  AND created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM resolution_plans p WHERE p.intent_id = intents.id)`
	tag, err := r.db.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreatePlan persists a resolution plan and its step list.
func (r *PostgresRepository) CreatePlan(ctx context.Context, plan *domain.ResolutionPlan) error {
	steps, err := json.Marshal(plan.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal plan steps: %w", err)
	}
	reasons, err := json.Marshal(plan.ReasonCodes)
	if err != nil {
		return fmt.Errorf("failed to marshal plan reason codes: %w", err)
	}
	query := `
		INSERT INTO resolution_plans (
			id, intent_id, user_id, status, action, chosen_rail, fallback_rail, steps,
			top_up_required, top_up_amount, execution_mode, reason_codes, risk_level,
			requires_confirmation, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())`
	_, err = r.db.Exec(ctx, query,
		plan.ID, plan.IntentID, plan.UserID, plan.Status, plan.Action, plan.ChosenRail,
		plan.FallbackRail, steps, plan.TopUpRequired, plan.TopUpAmount, plan.ExecutionMode,
		reasons, plan.RiskLevel, plan.RequiresConfirmation,
	)
	return err
}

// FindPlanByID retrieves a resolution plan.
func (r *PostgresRepository) FindPlanByID(ctx context.Context, planID uuid.UUID) (*domain.ResolutionPlan, error) {
	var plan domain.ResolutionPlan
	var steps, reasons []byte
	query := `
		SELECT id, intent_id, user_id, status, action, chosen_rail, fallback_rail, steps,
		       top_up_required, top_up_amount, execution_mode, reason_codes, risk_level,
		       requires_confirmation, created_at, updated_at
		FROM resolution_plans
		WHERE id = $1`
	err := r.db.QueryRow(ctx, query, planID).Scan(
		&plan.ID, &plan.IntentID, &plan.UserID, &plan.Status, &plan.Action, &plan.ChosenRail,
		&plan.FallbackRail, &steps, &plan.TopUpRequired, &plan.TopUpAmount, &plan.ExecutionMode,
		&reasons, &plan.RiskLevel, &plan.RequiresConfirmation, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &plan.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan steps: %w", err)
		}
	}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &plan.ReasonCodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan reason codes: %w", err)
		}
	}
	return &plan, nil
}

// ClaimPlanForExecution performs the conditional created -> executing
// transition that guarantees at-most-one execution per plan.
func (r *PostgresRepository) ClaimPlanForExecution(ctx context.Context, planID uuid.UUID) error {
	query := `
		UPDATE resolution_plans
		SET status = 'executing', updated_at = NOW()
		WHERE id = $1 AND status = 'created'`
	tag, err := r.db.Exec(ctx, query, planID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a consumed plan from a missing one.
		var status string
		if scanErr := r.db.QueryRow(ctx, `SELECT status FROM resolution_plans WHERE id = $1`, planID).Scan(&status); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrPlanNotFound
			}
			return scanErr
		}
		return ErrPlanAlreadyExecuted
	}
	return nil
}

// MarkPlanExecuted finalizes a claimed plan.
func (r *PostgresRepository) MarkPlanExecuted(ctx context.Context, planID uuid.UUID) error {
	query := `UPDATE resolution_plans SET status = 'executed', updated_at = NOW() WHERE id = $1 AND status = 'executing'`
	_, err := r.db.Exec(ctx, query, planID)
	return err
}

// CreateTransaction inserts a new transaction record.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	var receipt []byte
	if tx.Receipt != nil {
		var err error
		receipt, err = json.Marshal(tx.Receipt)
		if err != nil {
			return fmt.Errorf("failed to marshal receipt: %w", err)
		}
	}
	query := `
		INSERT INTO transactions (id, intent_id, plan_id, user_id, status, failure_type, amount, receipt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`
	_, err := r.db.Exec(ctx, query,
		tx.ID, tx.IntentID, tx.PlanID, tx.UserID, tx.Status, tx.FailureType, tx.Amount, receipt,
	)
	return err
}

// FindTransactionByID retrieves a transaction.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	var tx domain.Transaction
	var receipt []byte
	query := `
		SELECT id, intent_id, plan_id, user_id, status, failure_type, amount, receipt, created_at, updated_at
		FROM transactions
		WHERE id = $1`
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&tx.ID, &tx.IntentID, &tx.PlanID, &tx.UserID, &tx.Status, &tx.FailureType,
		&tx.Amount, &receipt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if len(receipt) > 0 {
		tx.Receipt = &domain.Receipt{}
		if err := json.Unmarshal(receipt, tx.Receipt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt: %w", err)
		}
	}
	return &tx, nil
}

// MarkTransactionSuccess moves a pending transaction to success. The status
// condition enforces terminal-state exclusivity at the database level.
func (r *PostgresRepository) MarkTransactionSuccess(ctx context.Context, transactionID uuid.UUID, receipt *domain.Receipt) error {
	var receiptJSON []byte
	if receipt != nil {
		var err error
		receiptJSON, err = json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("failed to marshal receipt: %w", err)
		}
	}
	query := `
		UPDATE transactions
		SET status = 'success', receipt = COALESCE($2, receipt), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, query, transactionID, receiptJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// MarkTransactionFailed moves a pending transaction to failed.
func (r *PostgresRepository) MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, failureType string) error {
	query := `
		UPDATE transactions
		SET status = 'failed', failure_type = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, query, transactionID, failureType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// CancelTransaction cancels a pending transaction. Any other status matches
// zero rows and surfaces ErrNotCancellable.
func (r *PostgresRepository) CancelTransaction(ctx context.Context, transactionID uuid.UUID, userID uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, query, transactionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		if scanErr := r.db.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1 AND user_id = $2`, transactionID, userID).Scan(&status); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return scanErr
		}
		return ErrNotCancellable
	}
	return nil
}

// CountSuccessfulTransactionsByRail aggregates successful transactions per
// chosen rail since the cutoff; the smart resolver's history score reads it.
func (r *PostgresRepository) CountSuccessfulTransactionsByRail(ctx context.Context, userID uuid.UUID, since time.Time) (map[string]int64, error) {
	query := `
		SELECT p.chosen_rail, COUNT(*)
		FROM transactions t
		JOIN resolution_plans p ON p.id = t.plan_id
		WHERE t.user_id = $1 AND t.status = 'success' AND t.created_at >= $2
		GROUP BY p.chosen_rail`
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var rail string
		var count int64
		if err := rows.Scan(&rail, &count); err != nil {
			return nil, err
		}
		counts[rail] = count
	}
	return counts, rows.Err()
}

// GetDailyState returns the daily auto-approved total for (user, date),
// inserting a zeroed row when none exists. The (user_id, date) key makes the
// calendar-day reset idempotent: reading the same date twice never re-zeroes.
func (r *PostgresRepository) GetDailyState(ctx context.Context, userID uuid.UUID, date string) (*domain.DailyPaymentState, error) {
	var state domain.DailyPaymentState
	query := `
		INSERT INTO daily_payment_state (user_id, date, auto_approved_total, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (user_id, date) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, date, auto_approved_total, updated_at`
	err := r.db.QueryRow(ctx, query, userID, date).Scan(
		&state.UserID, &state.Date, &state.AutoApprovedTotal, &state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// AddToDailyState atomically adds to the day's auto-approved total and
// returns the new value. Concurrent sessions cannot double-spend the limit.
func (r *PostgresRepository) AddToDailyState(ctx context.Context, userID uuid.UUID, date string, amount int64) (int64, error) {
	var total int64
	query := `
		INSERT INTO daily_payment_state (user_id, date, auto_approved_total, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, date)
		DO UPDATE SET auto_approved_total = daily_payment_state.auto_approved_total + EXCLUDED.auto_approved_total, updated_at = NOW()
		RETURNING auto_approved_total`
	err := r.db.QueryRow(ctx, query, userID, date, amount).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// AppendAuditEntry inserts one append-only audit record.
func (r *PostgresRepository) AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit detail: %w", err)
	}
	query := `
		INSERT INTO audit_log (id, user_id, plan_id, action, outcome, risk_score, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`
	_, err = r.db.Exec(ctx, query,
		entry.ID, entry.UserID, entry.PlanID, entry.Action, entry.Outcome, entry.RiskScore, detail,
	)
	return err
}

// AppendActivityEntry inserts one human-readable activity line.
func (r *PostgresRepository) AppendActivityEntry(ctx context.Context, entry *domain.ActivityEntry) error {
	query := `
		INSERT INTO activity_log (id, user_id, transaction_id, message, created_at)
		VALUES ($1, $2, $3, $4, NOW())`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.UserID, entry.TransactionID, entry.Message)
	return err
}

// EnqueueExecutionTask persists a durable async work item.
func (r *PostgresRepository) EnqueueExecutionTask(ctx context.Context, task *domain.ExecutionTask) error {
	query := `
		INSERT INTO execution_tasks (id, plan_id, transaction_id, signature_id, status, available_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	_, err := r.db.Exec(ctx, query, task.ID, task.PlanID, task.TransactionID, task.SignatureID, task.Status, task.AvailableAt)
	return err
}

// ClaimDueExecutionTasks claims up to `limit` due tasks in one atomic
// statement; SKIP LOCKED keeps concurrent workers off the same rows.
func (r *PostgresRepository) ClaimDueExecutionTasks(ctx context.Context, limit int) ([]domain.ExecutionTask, error) {
	query := `
		UPDATE execution_tasks
		SET status = 'processing'
		WHERE id IN (
			SELECT id FROM execution_tasks
			WHERE status = 'queued' AND available_at <= NOW()
			ORDER BY available_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, plan_id, transaction_id, signature_id, status, available_at, created_at`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.ExecutionTask
	for rows.Next() {
		var t domain.ExecutionTask
		if err := rows.Scan(&t.ID, &t.PlanID, &t.TransactionID, &t.SignatureID, &t.Status, &t.AvailableAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkExecutionTaskDone finalizes a completed task.
func (r *PostgresRepository) MarkExecutionTaskDone(ctx context.Context, taskID uuid.UUID) error {
	query := `UPDATE execution_tasks SET status = 'done' WHERE id = $1`
	_, err := r.db.Exec(ctx, query, taskID)
	return err
}
