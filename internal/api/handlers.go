/**
 * @description
 * HTTP handlers for the payment-service API. Handlers parse requests, call
 * the payment service facade, and translate domain outcomes and typed
 * errors into HTTP responses.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/app"
	"github.com/onetap/payment-service/internal/domain"
	"github.com/onetap/payment-service/internal/store"
)

// PaymentHandlers holds the application service that handlers use.
type PaymentHandlers struct {
	service *app.PaymentService
	logger  *slog.Logger
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service *app.PaymentService, logger *slog.Logger) *PaymentHandlers {
	return &PaymentHandlers{service: service, logger: logger}
}

type intentResponse struct {
	IntentID  string `json:"intent_id"`
	Type      string `json:"type"`
	PayeeName string `json:"payee_name"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

func buildIntentResponse(intent *domain.Intent) intentResponse {
	return intentResponse{
		IntentID:  intent.ID.String(),
		Type:      intent.Type,
		PayeeName: intent.PayeeName,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Status:    intent.Status,
	}
}

type planResponse struct {
	PlanID               string                  `json:"plan_id"`
	IntentID             string                  `json:"intent_id"`
	Action               string                  `json:"action"`
	ChosenRail           string                  `json:"chosen_rail,omitempty"`
	FallbackRail         string                  `json:"fallback_rail,omitempty"`
	Steps                []domain.ResolutionStep `json:"steps,omitempty"`
	TopUpRequired        bool                    `json:"top_up_required"`
	TopUpAmount          int64                   `json:"top_up_amount,omitempty"`
	ExecutionMode        string                  `json:"execution_mode"`
	RequiresConfirmation bool                    `json:"requires_confirmation"`
	RiskLevel            string                  `json:"risk_level"`
	Reasons              []string                `json:"reasons,omitempty"`
}

func buildPlanResponse(plan *domain.ResolutionPlan) planResponse {
	return planResponse{
		PlanID:               plan.ID.String(),
		IntentID:             plan.IntentID.String(),
		Action:               plan.Action,
		ChosenRail:           plan.ChosenRail,
		FallbackRail:         plan.FallbackRail,
		Steps:                plan.Steps,
		TopUpRequired:        plan.TopUpRequired,
		TopUpAmount:          plan.TopUpAmount,
		ExecutionMode:        plan.ExecutionMode,
		RequiresConfirmation: plan.RequiresConfirmation,
		RiskLevel:            plan.RiskLevel,
		Reasons:              plan.ReasonCodes,
	}
}

type transactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	PlanID        string          `json:"plan_id"`
	Status        string          `json:"status"`
	Amount        int64           `json:"amount"`
	FailureType   *string         `json:"failure_type,omitempty"`
	Receipt       *domain.Receipt `json:"receipt,omitempty"`
}

func buildTransactionResponse(tx *domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID: tx.ID.String(),
		PlanID:        tx.PlanID.String(),
		Status:        tx.Status,
		Amount:        tx.Amount,
		FailureType:   tx.FailureType,
		Receipt:       tx.Receipt,
	}
}

// CreateQRIntentHandler creates a pay_merchant intent from a scanned QR
// payload.
func (h *PaymentHandlers) CreateQRIntentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	intent, err := h.service.CreateIntentFromQR(r.Context(), userID, payload)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildIntentResponse(intent))
}

// CreateSendIntentHandler creates a send_money intent.
func (h *PaymentHandlers) CreateSendIntentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var body struct {
		RecipientName    string   `json:"recipient_name"`
		RecipientHandle  string   `json:"recipient_handle"`
		Amount           int64    `json:"amount"`
		Currency         string   `json:"currency"`
		RecipientWallets []string `json:"recipient_wallets"`
		PreferredWallet  string   `json:"preferred_wallet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	intent, err := h.service.CreateSendMoneyIntent(r.Context(), userID, app.SendMoneyRequest{
		RecipientName:    body.RecipientName,
		RecipientHandle:  body.RecipientHandle,
		Amount:           body.Amount,
		Currency:         body.Currency,
		RecipientWallets: body.RecipientWallets,
		PreferredWallet:  body.PreferredWallet,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildIntentResponse(intent))
}

// CreateBillIntentHandler creates a pay_bill intent.
func (h *PaymentHandlers) CreateBillIntentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var body struct {
		BillerName    string `json:"biller_name"`
		AccountNumber string `json:"account_number"`
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	intent, err := h.service.CreateBillIntent(r.Context(), userID, app.BillRequest{
		BillerName:    body.BillerName,
		AccountNumber: body.AccountNumber,
		Amount:        body.Amount,
		Currency:      body.Currency,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildIntentResponse(intent))
}

// CreateRequestIntentHandler creates a request_money intent.
func (h *PaymentHandlers) CreateRequestIntentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var body struct {
		FromName   string `json:"from_name"`
		FromHandle string `json:"from_handle"`
		Amount     int64  `json:"amount"`
		Currency   string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	intent, err := h.service.CreateRequestMoneyIntent(r.Context(), userID, app.RequestMoneyRequest{
		FromName:   body.FromName,
		FromHandle: body.FromHandle,
		Amount:     body.Amount,
		Currency:   body.Currency,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildIntentResponse(intent))
}

// ResolveIntentHandler resolves an intent into a plan.
func (h *PaymentHandlers) ResolveIntentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	intentID, err := uuid.Parse(chi.URLParam(r, "intentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid intent ID")
		return
	}

	var body struct {
		Strategy string `json:"strategy"`
	}
	if r.Body != nil {
		// An empty body means the user's configured strategy.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	plan, err := h.service.ResolveIntent(r.Context(), userID, GetDeviceID(r), intentID, body.Strategy)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildPlanResponse(plan))
}

// SmartPreviewHandler returns the smart resolver's scoring without creating
// a plan.
func (h *PaymentHandlers) SmartPreviewHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	intentID, err := uuid.Parse(chi.URLParam(r, "intentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid intent ID")
		return
	}

	preview, err := h.service.GetSmartResolutionPreview(r.Context(), userID, intentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, preview)
}

// ExecutePlanHandler runs a plan through the execution engine.
func (h *PaymentHandlers) ExecutePlanHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	var body struct {
		Confirmed bool `json:"confirmed"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	tx, err := h.service.ExecutePlan(r.Context(), app.ExecutePlanRequest{
		UserID:    userID,
		DeviceID:  GetDeviceID(r),
		PlanID:    planID,
		Confirmed: body.Confirmed,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildTransactionResponse(tx))
}

// CancelTransactionHandler cancels a pending transaction.
func (h *PaymentHandlers) CancelTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	tx, err := h.service.CancelTransaction(r.Context(), userID, transactionID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransactionResponse(tx))
}

// GetTransactionHandler returns one of the caller's transactions.
func (h *PaymentHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransactionResponse(tx))
}

// ListFundingSourcesHandler returns the caller's linked funding sources.
func (h *PaymentHandlers) ListFundingSourcesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	sources, err := h.service.ListFundingSources(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"funding_sources": sources})
}

// handleServiceError maps service-layer errors onto HTTP responses.
func (h *PaymentHandlers) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var gateErr *app.GateBlockedError
	if errors.As(err, &gateErr) {
		h.writeJSON(w, http.StatusForbidden, map[string]string{
			"error": gateErr.Result.BlockedReason,
			"code":  gateErr.Result.BlockedCode,
		})
		return
	}

	switch {
	case errors.Is(err, store.ErrIntentNotFound),
		errors.Is(err, store.ErrPlanNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrSourceNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrIntentClosed),
		errors.Is(err, store.ErrPlanAlreadyExecuted),
		errors.Is(err, store.ErrNotCancellable):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrConfirmationRequired):
		h.writeError(w, http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, app.ErrPlanNotExecutable):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		h.writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
