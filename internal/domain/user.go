/**
 * @description
 * This file defines the identity-adjacent domain models for the payment-service:
 * the user record as seen by the orchestrator, trusted devices, connector
 * consents, and per-user settings that steer resolution and execution.
 *
 * @notes
 * - The orchestrator never owns identity; it only reads the identity status
 *   supplied by the upstream identity provider and enforces it as a gate.
 * - RuntimeMode is an explicit injected value, not a hidden global, so that
 *   the permissive demo path is testable and auditable.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Identity statuses as reported by the identity provider.
const (
	IdentityStatusActive    = "active"
	IdentityStatusSuspended = "suspended"
	IdentityStatusPending   = "pending"
)

// User is the orchestrator's view of an end user.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	IdentityStatus string    `json:"identity_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// TrustedDevice records whether a device has been marked trusted for a user.
// The device-trust gate refreshes LastSeenAt on every successful check.
type TrustedDevice struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	DeviceID   string    `json:"device_id"`
	Trusted    bool      `json:"trusted"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Consent statuses.
const (
	ConsentStatusGranted = "granted"
	ConsentStatusRevoked = "revoked"
)

// Consent links a user to a connector they have authorized.
type Consent struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	ConnectorID uuid.UUID  `json:"connector_id"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether the consent has an expiry in the past.
func (c *Consent) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Fallback preferences controlling the priority resolver's behavior when the
// primary wallet cannot cover an amount.
const (
	FallbackTopUpWallet = "top_up_wallet"
	FallbackUseCard     = "use_card"
	FallbackAskEachTime = "ask_each_time"
)

// Resolution strategies selectable per user.
const (
	StrategyPriority = "priority"
	StrategySmart    = "smart"
)

// UserSettings holds the per-user switches the orchestrator consults.
type UserSettings struct {
	UserID             uuid.UUID `json:"user_id"`
	Paused             bool      `json:"paused"`
	FallbackPreference string    `json:"fallback_preference"`
	Strategy           string    `json:"strategy"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RuntimeMode widens or enforces gate behavior. Enforced treats every gate as
// a hard precondition; Permissive auto-passes and auto-registers device trust
// for frictionless demos.
type RuntimeMode string

const (
	ModeEnforced   RuntimeMode = "enforced"
	ModePermissive RuntimeMode = "permissive"
)
