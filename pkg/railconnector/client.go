/**
 * @description
 * HTTP implementation of the connector surface for a real rail gateway. It
 * posts one execution per step and maps the gateway's response codes onto
 * the shared FailureReason enum so the engine never parses error strings.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package railconnector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is a client for a rail gateway API.
type HTTPClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPClient creates a new rail gateway client.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type gatewayExecutionResponse struct {
	Data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Reason    string `json:"reason"`
		Message   string `json:"message"`
	} `json:"data"`
}

// Execute posts the step to the gateway's executions endpoint.
func (c *HTTPClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/executions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create execution request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rail gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		// Gateway-side outage: surface as rail unavailability, not an error,
		// so the engine records a typed failed transaction.
		return &ExecuteResult{
			Succeeded: false,
			Reason:    ReasonRailUnavailable,
			Message:   fmt.Sprintf("rail gateway returned status %d", resp.StatusCode),
		}, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var parsed gatewayExecutionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	result := &ExecuteResult{
		Reference: parsed.Data.Reference,
		Message:   parsed.Data.Message,
	}
	switch parsed.Data.Status {
	case "successful", "completed":
		result.Succeeded = true
	default:
		result.Reason = mapGatewayReason(parsed.Data.Reason)
	}
	return result, nil
}

func mapGatewayReason(reason string) FailureReason {
	switch reason {
	case "insufficient_funds":
		return ReasonInsufficientFunds
	case "declined":
		return ReasonDeclined
	default:
		return ReasonRailUnavailable
	}
}
