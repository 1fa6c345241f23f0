/**
 * @description
 * Resolution models: the step list a plan executes, the persisted
 * ResolutionPlan consumed exactly once by the execution engine, the priority
 * resolver's outcome, and the smart resolver's scored recommendation.
 *
 * @notes
 * - A top_up step, when present, always precedes its corresponding charge.
 * - Plans transition created -> executing -> executed; the executor claims a
 *   plan with a conditional created -> executing update so that concurrent
 *   execute calls cannot both run it.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Step actions.
const (
	StepCharge = "charge"
	StepTopUp  = "top_up"
)

// ResolutionStep is one ordered action inside a plan. Rail names the
// channel the step's source moves money over; the connector is invoked with
// it, not with the plan's chosen rail, since top-up and fallback steps run
// over a different source.
type ResolutionStep struct {
	Action      string    `json:"action"`
	SourceID    uuid.UUID `json:"source_id"`
	SourceType  string    `json:"source_type"`
	Rail        string    `json:"rail"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
}

// Resolution actions returned by the priority resolver.
const (
	ActionUseSingleSource      = "USE_SINGLE_SOURCE"
	ActionTopUpWallet          = "TOP_UP_WALLET"
	ActionUseFallback          = "USE_FALLBACK"
	ActionRequiresConfirmation = "REQUIRES_CONFIRMATION"
	ActionInsufficientFunds    = "INSUFFICIENT_FUNDS"
	ActionBlocked              = "BLOCKED"
)

// Execution modes.
const (
	ExecutionSync  = "sync"
	ExecutionAsync = "async"
)

// Risk levels attached to persisted plans.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Plan statuses.
const (
	PlanStatusCreated   = "created"
	PlanStatusExecuting = "executing"
	PlanStatusExecuted  = "executed"
)

// PaymentResolution is the outcome of a priority-waterfall resolution before
// it is persisted as a plan. Reasons concatenate guardrail reasons first.
type PaymentResolution struct {
	Action               string           `json:"action"`
	Steps                []ResolutionStep `json:"steps"`
	ChosenRail           string           `json:"chosen_rail"`
	FallbackRail         string           `json:"fallback_rail,omitempty"`
	TopUpRequired        bool             `json:"top_up_required"`
	TopUpAmount          int64            `json:"top_up_amount"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
	PreferredCard        bool             `json:"preferred_card"`
	Reasons              []string         `json:"reasons,omitempty"`
}

// ResolutionPlan is the persisted, immutable decision for one resolution
// attempt. It is consumed exactly once by the execution engine.
type ResolutionPlan struct {
	ID                   uuid.UUID        `json:"id"`
	IntentID             uuid.UUID        `json:"intent_id"`
	UserID               uuid.UUID        `json:"user_id"`
	Status               string           `json:"status"`
	Action               string           `json:"action"`
	ChosenRail           string           `json:"chosen_rail"`
	FallbackRail         string           `json:"fallback_rail,omitempty"`
	Steps                []ResolutionStep `json:"steps"`
	TopUpRequired        bool             `json:"top_up_required"`
	TopUpAmount          int64            `json:"top_up_amount"`
	ExecutionMode        string           `json:"execution_mode"`
	ReasonCodes          []string         `json:"reason_codes,omitempty"`
	RiskLevel            string           `json:"risk_level"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// RailScore is the smart resolver's per-candidate breakdown. Sub-scores are
// in [0,100]; Total is the weighted combination, also in [0,100].
type RailScore struct {
	SourceID      uuid.UUID `json:"source_id"`
	RailName      string    `json:"rail_name"`
	SourceType    string    `json:"source_type"`
	Priority      int       `json:"priority"`
	Compatibility int       `json:"compatibility"`
	BalanceScore  int       `json:"balance_score"`
	PriorityScore int       `json:"priority_score"`
	HistoryScore  int       `json:"history_score"`
	HealthScore   int       `json:"health_score"`
	Total         float64   `json:"total"`
	RequiresTopUp bool      `json:"requires_top_up"`
	TopUpAmount   int64     `json:"top_up_amount"`
}

// SmartResolution is the smart resolver's recommendation.
type SmartResolution struct {
	Success         bool        `json:"success"`
	RecommendedRail *RailScore  `json:"recommended_rail,omitempty"`
	Alternatives    []RailScore `json:"alternatives"`
	RequiresTopUp   bool        `json:"requires_top_up"`
	TopUpAmount     int64       `json:"top_up_amount"`
	TopUpSource     *uuid.UUID  `json:"top_up_source,omitempty"`
	Explanation     string      `json:"explanation"`
}
