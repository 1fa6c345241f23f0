/**
 * @description
 * This package provides the connector execution surface: the single call the
 * execution engine makes to move money over a rail. Two implementations
 * exist: an HTTP client for a real rail gateway and a latency/failure
 * simulator used by default in environments without rail connectivity.
 *
 * @notes
 * - Failures are expressed as a closed FailureReason enum on the result, not
 *   as free-text error strings. An error return means the call itself could
 *   not be made (context cancelled, transport down); the caller treats that
 *   as rail unavailability.
 */
package railconnector

import "context"

// FailureReason is the closed set of reasons a connector call can fail with.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonInsufficientFunds FailureReason = "insufficient_funds"
	ReasonRailUnavailable   FailureReason = "rail_unavailable"
	ReasonDeclined          FailureReason = "declined"
)

// ExecuteRequest describes one step to run over a rail. Amount is in cents.
type ExecuteRequest struct {
	Rail      string `json:"rail"`
	Action    string `json:"action"` // "charge" or "top_up"
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

// ExecuteResult is the outcome of one connector call.
type ExecuteResult struct {
	Succeeded bool          `json:"succeeded"`
	Reference string        `json:"reference"`
	Reason    FailureReason `json:"reason,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// Client is the execution surface the engine depends on.
type Client interface {
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
}
