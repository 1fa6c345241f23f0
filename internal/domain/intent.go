/**
 * @description
 * This file defines the payment Intent: a user's declared wish to pay a
 * merchant, send money to a contact, request money, or pay a bill. Intents
 * are created once and immutable afterward; resolution and execution always
 * reference them by id.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Intent types.
const (
	IntentPayMerchant  = "pay_merchant"
	IntentSendMoney    = "send_money"
	IntentRequestMoney = "request_money"
	IntentPayBill      = "pay_bill"
)

// Intent statuses. Open intents may be resolved; expired ones are closed by
// the expiry job and can no longer produce plans.
const (
	IntentStatusOpen    = "open"
	IntentStatusExpired = "expired"
)

// IntentMetadata carries rail hints attached at creation time. For merchant
// payments AcceptedRails lists the rail names the merchant takes; for peer
// transfers the recipient's wallet set and preferred wallet steer scoring.
type IntentMetadata struct {
	AcceptedRails      []string `json:"accepted_rails,omitempty"`
	RecipientWallets   []string `json:"recipient_wallets,omitempty"`
	PreferredWallet    string   `json:"preferred_wallet,omitempty"`
	RequiredCapability string   `json:"required_capability,omitempty"`
}

// Intent represents a single declared payment wish. Amount is in cents.
type Intent struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	Type            string         `json:"type"`
	PayeeName       string         `json:"payee_name"`
	PayeeIdentifier string         `json:"payee_identifier"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Status          string         `json:"status"`
	Metadata        IntentMetadata `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
}

// RequiredCapability returns the connector capability an intent of this type
// needs, honoring an explicit metadata override.
func (i *Intent) RequiredCapability() string {
	if i.Metadata.RequiredCapability != "" {
		return i.Metadata.RequiredCapability
	}
	switch i.Type {
	case IntentPayMerchant:
		return CapabilityMerchantPayment
	case IntentSendMoney, IntentRequestMoney:
		return CapabilityPeerTransfer
	case IntentPayBill:
		return CapabilityBillPayment
	default:
		return CapabilityPeerTransfer
	}
}
