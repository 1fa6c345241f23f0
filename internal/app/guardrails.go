/**
 * @description
 * The Guardrail Engine: a pure function of (amount, daily state, config)
 * deciding whether a payment proceeds automatically, needs explicit
 * confirmation, or is hard-blocked. No I/O happens here; the store-backed
 * daily counter is read and incremented by the service layer.
 *
 * @notes
 * - Rules are evaluated in order and the first match wins, so severity is
 *   monotonic in the amount for a fixed config and daily state.
 * - Daily rollover compares ISO date strings (YYYY-MM-DD), not timestamps:
 *   the counter belongs to a calendar day, and the (user, date) keyed upsert
 *   in the store makes the midnight reset idempotent.
 */

package app

import (
	"fmt"
	"time"

	"github.com/onetap/payment-service/internal/domain"
)

// ISODate formats a time as the YYYY-MM-DD key the daily counter uses.
func ISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CheckGuardrails applies the threshold rules in order, first match wins.
func CheckGuardrails(amount int64, state *domain.DailyPaymentState, cfg domain.GuardrailConfig) domain.GuardrailDecision {
	if amount > cfg.HardBlockCeiling() {
		return domain.GuardrailDecision{
			Blocked: true,
			Reason: fmt.Sprintf("amount %d exceeds the absolute ceiling of %d",
				amount, cfg.HardBlockCeiling()),
		}
	}
	if amount > cfg.RequireConfirmationAbove {
		return domain.GuardrailDecision{
			RequiresConfirmation: true,
			Reason: fmt.Sprintf("amount %d is above the confirmation threshold of %d",
				amount, cfg.RequireConfirmationAbove),
		}
	}
	var dailyTotal int64
	if state != nil {
		dailyTotal = state.AutoApprovedTotal
	}
	if dailyTotal+amount > cfg.DailyAutoLimit {
		return domain.GuardrailDecision{
			RequiresConfirmation: true,
			Reason: fmt.Sprintf("amount %d would exceed the daily auto-approval limit of %d",
				amount, cfg.DailyAutoLimit),
		}
	}
	if amount > cfg.MaxSinglePaymentAuto {
		return domain.GuardrailDecision{
			RequiresConfirmation: true,
			Reason: fmt.Sprintf("amount %d is above the single-payment auto limit of %d",
				amount, cfg.MaxSinglePaymentAuto),
		}
	}
	return domain.GuardrailDecision{CanProceedAuto: true}
}

// CanAutoTopUp applies the single top-up threshold. Top-ups either proceed
// automatically or require confirmation; they are never hard-blocked.
func CanAutoTopUp(topUpAmount int64, cfg domain.GuardrailConfig) domain.GuardrailDecision {
	if topUpAmount > cfg.MaxAutoTopUpAmount {
		return domain.GuardrailDecision{
			RequiresConfirmation: true,
			Reason: fmt.Sprintf("top-up of %d is above the auto-top-up ceiling of %d",
				topUpAmount, cfg.MaxAutoTopUpAmount),
		}
	}
	return domain.GuardrailDecision{CanProceedAuto: true}
}

// RiskLevelFor derives the plan's recorded risk level from the guardrail
// decision.
func RiskLevelFor(decision domain.GuardrailDecision) string {
	switch {
	case decision.Blocked:
		return domain.RiskHigh
	case decision.RequiresConfirmation:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
