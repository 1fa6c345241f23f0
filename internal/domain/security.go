/**
 * @description
 * Security artifacts attached to a transaction's lifecycle: the payload
 * signature produced before execution and the append-only audit entries
 * written around it, plus the human-readable activity entries shown on the
 * user's activity feed.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded around execution.
const (
	AuditPaymentInitiated  = "PAYMENT_INITIATED"
	AuditPaymentCompleted  = "PAYMENT_COMPLETED"
	AuditPaymentFailed     = "PAYMENT_FAILED"
	AuditRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	AuditSignatureRejected = "SIGNATURE_REJECTED"
)

// TransactionSignature is the proof-of-integrity token covering a plan's
// payload. Signing failure is the only security failure fatal to execution.
type TransactionSignature struct {
	ID       string    `json:"id"`
	KeyID    string    `json:"key_id"`
	Token    string    `json:"token"`
	SignedAt time.Time `json:"signed_at"`
}

// AuditEntry is one append-only audit record. RiskScore is 0 on success
// paths and nonzero on failures.
type AuditEntry struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	PlanID    *uuid.UUID        `json:"plan_id,omitempty"`
	Action    string            `json:"action"`
	Outcome   string            `json:"outcome"`
	RiskScore int               `json:"risk_score"`
	Detail    map[string]string `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ActivityEntry is the human-readable line written per transaction.
type ActivityEntry struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}
