/**
 * @description
 * Gate results and blocked codes. Gates are binary preconditions checked
 * before intent creation and resolution; their outcomes are typed values the
 * caller branches on, never errors.
 */

package domain

// Blocked codes surfaced verbatim to the user.
const (
	GateIdentityBlocked = "IDENTITY_BLOCKED"
	GateDeviceUntrusted = "DEVICE_UNTRUSTED"
	GateConsentMissing  = "CONSENT_MISSING"
	GateConsentRevoked  = "CONSENT_REVOKED"
	GateConsentExpired  = "CONSENT_EXPIRED"
)

// GateResult is the per-call decision of a single gate or a composed check.
// It is ephemeral and never persisted as an entity.
type GateResult struct {
	Passed        bool   `json:"passed"`
	BlockedReason string `json:"blocked_reason,omitempty"`
	BlockedCode   string `json:"blocked_code,omitempty"`
}

// GatePass is the shared success value.
func GatePass() GateResult {
	return GateResult{Passed: true}
}

// GateBlock builds a failed result with a code and human-readable reason.
func GateBlock(code, reason string) GateResult {
	return GateResult{Passed: false, BlockedCode: code, BlockedReason: reason}
}
