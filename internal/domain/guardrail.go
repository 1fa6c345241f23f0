/**
 * @description
 * Guardrail types: non-negotiable safety thresholds distinct from
 * scoring-based preference. The engine itself is a pure function over these
 * values; only the daily state crosses the store.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// GuardrailConfig holds the thresholds, in cents. The hard ceiling is fixed
// at ten times RequireConfirmationAbove.
type GuardrailConfig struct {
	RequireConfirmationAbove int64 `json:"require_confirmation_above"`
	DailyAutoLimit           int64 `json:"daily_auto_limit"`
	MaxSinglePaymentAuto     int64 `json:"max_single_payment_auto"`
	MaxAutoTopUpAmount       int64 `json:"max_auto_top_up_amount"`
}

// HardBlockCeiling is the absolute amount above which payments are refused.
func (c GuardrailConfig) HardBlockCeiling() int64 {
	return c.RequireConfirmationAbove * 10
}

// DailyPaymentState tracks the auto-approved total for one user and one
// calendar day. Date is an ISO YYYY-MM-DD string, deliberately not a
// timestamp, so the midnight rollover is a plain string comparison.
type DailyPaymentState struct {
	UserID            uuid.UUID `json:"user_id"`
	Date              string    `json:"date"`
	AutoApprovedTotal int64     `json:"auto_approved_total"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GuardrailDecision is the engine's outcome. Exactly one of CanProceedAuto,
// RequiresConfirmation, or Blocked is set.
type GuardrailDecision struct {
	CanProceedAuto       bool   `json:"can_proceed_auto"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Blocked              bool   `json:"blocked"`
	Reason               string `json:"reason,omitempty"`
}
