/**
 * @description
 * Funding sources and connectors. A FundingSource is a user-linked rail
 * (wallet, bank, card) with an ordering priority and, for wallet types, a
 * deductible balance. A Connector is the live channel backing a rail; it is
 * a separate entity joined to the funding source by name.
 *
 * @notes
 * - Amounts are int64 cents (smallest currency unit) to avoid floating-point
 *   drift on financial data.
 * - Card balances are a credit line, not a deductible pool: resolution and
 *   execution never read or mutate them.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Funding source types.
const (
	SourceTypeWallet     = "wallet"
	SourceTypeBank       = "bank"
	SourceTypeDebitCard  = "debit_card"
	SourceTypeCreditCard = "credit_card"
)

// FundingSource is one linked rail for a user. Lower Priority is preferred.
type FundingSource struct {
	ID                    uuid.UUID `json:"id"`
	UserID                uuid.UUID `json:"user_id"`
	Name                  string    `json:"name"`
	Type                  string    `json:"type"`
	Balance               int64     `json:"balance"` // cents; wallets and banks only
	Currency              string    `json:"currency"`
	Priority              int       `json:"priority"`
	IsLinked              bool      `json:"is_linked"`
	IsAvailable           bool      `json:"is_available"`
	MaxAutoTopUp          int64     `json:"max_auto_top_up"`
	ConfirmationThreshold int64     `json:"confirmation_threshold"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// IsCard reports whether the source is a card-type rail.
func (f *FundingSource) IsCard() bool {
	return f.Type == SourceTypeDebitCard || f.Type == SourceTypeCreditCard
}

// Usable reports whether the source may participate in resolution at all.
func (f *FundingSource) Usable() bool {
	return f.IsLinked && f.IsAvailable
}

// Connector statuses.
const (
	ConnectorAvailable   = "available"
	ConnectorDegraded    = "degraded"
	ConnectorUnavailable = "unavailable"
)

// Connector capabilities.
const (
	CapabilityMerchantPayment = "merchant_payment"
	CapabilityPeerTransfer    = "peer_transfer"
	CapabilityBillPayment     = "bill_payment"
	CapabilityTopUp           = "top_up"
)

// Connector is the live integration channel behind a funding source.
type Connector struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasCapability reports whether the connector advertises the capability.
func (c *Connector) HasCapability(capability string) bool {
	for _, got := range c.Capabilities {
		if got == capability {
			return true
		}
	}
	return false
}
