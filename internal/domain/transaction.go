/**
 * @description
 * The Transaction record and its state machine. A transaction is the durable
 * result of executing a resolution plan: it starts pending only under async
 * execution and settles into exactly one terminal state.
 *
 * @notes
 * - Terminal states (success, failed, cancelled) are never left once reached;
 *   the transition map is the single source of truth and every status write
 *   in the store is conditional on the current status allowing it.
 * - FailureType is a closed enum supplied by the connector layer, not parsed
 *   out of free-text error strings.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses.
const (
	TxStatusPending   = "pending"
	TxStatusSuccess   = "success"
	TxStatusFailed    = "failed"
	TxStatusCancelled = "cancelled"
)

// ValidStatusTransitions maps a status to the statuses it may move to.
// Terminal states have no entry, so any transition out of them is rejected.
var ValidStatusTransitions = map[string][]string{
	TxStatusPending: {TxStatusSuccess, TxStatusFailed, TxStatusCancelled},
}

// CanTransitionTo reports whether a transaction may move between statuses.
func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowed, ok := ValidStatusTransitions[currentStatus]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether the status is final.
func IsTerminalStatus(status string) bool {
	return status == TxStatusSuccess || status == TxStatusFailed || status == TxStatusCancelled
}

// Failure types: the closed taxonomy surfaced to callers and audit logs.
const (
	FailureInsufficientFunds    = "insufficient_funds"
	FailureConnectorUnavailable = "connector_unavailable"
	FailureUserPaused           = "user_paused"
	FailureRiskBlocked          = "risk_blocked"
	FailureIdentityBlocked      = "identity_blocked"
	FailureUnknown              = "unknown"
)

// Receipt is the payload embedded in a successful transaction. SignatureID
// ties the record back to the pre-payment signature in the audit trail.
type Receipt struct {
	SignatureID string           `json:"signature_id,omitempty"`
	Rail        string           `json:"rail"`
	Steps       []ResolutionStep `json:"steps"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Transaction is the durable outcome of one plan execution.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	IntentID    uuid.UUID `json:"intent_id"`
	PlanID      uuid.UUID `json:"plan_id"`
	UserID      uuid.UUID `json:"user_id"`
	Status      string    `json:"status"`
	FailureType *string   `json:"failure_type,omitempty"`
	Amount      int64     `json:"amount"`
	Receipt     *Receipt  `json:"receipt,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExecutionTask statuses.
const (
	TaskStatusQueued     = "queued"
	TaskStatusProcessing = "processing"
	TaskStatusDone       = "done"
)

// ExecutionTask is the durable work item behind async execution. Enqueued in
// the same transaction that creates the pending record, completed exactly
// once by the completion job. A process restart loses nothing.
type ExecutionTask struct {
	ID            uuid.UUID `json:"id"`
	PlanID        uuid.UUID `json:"plan_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	SignatureID   string    `json:"signature_id,omitempty"`
	Status        string    `json:"status"`
	AvailableAt   time.Time `json:"available_at"`
	CreatedAt     time.Time `json:"created_at"`
}
