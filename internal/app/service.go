/**
 * @description
 * The payment service facade: intent creation, resolution, and the read
 * surface the API handlers call. It owns the glue the resolvers stay pure
 * of: gate checks, store reads, plan persistence, and the daily
 * auto-approval counter.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
	"github.com/onetap/payment-service/internal/store"
)

// ErrIntentClosed is returned when resolving an intent that is no longer
// open.
var ErrIntentClosed = errors.New("intent is no longer open")

// GateBlockedError carries a failed gate result to the transport layer so it
// can surface the code and reason.
type GateBlockedError struct {
	Result domain.GateResult
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("blocked by gate %s: %s", e.Result.BlockedCode, e.Result.BlockedReason)
}

// historyWindow is how far back rail usage counts for the smart resolver.
const historyWindow = 30 * 24 * time.Hour

// PaymentService is the facade the API layer talks to.
type PaymentService struct {
	repo       store.Repository
	gates      *GateChecker
	engine     *ExecutionEngine
	guardrails domain.GuardrailConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewPaymentService wires the facade.
func NewPaymentService(
	repo store.Repository,
	gates *GateChecker,
	engine *ExecutionEngine,
	guardrails domain.GuardrailConfig,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		repo:       repo,
		gates:      gates,
		engine:     engine,
		guardrails: guardrails,
		logger:     logger,
		now:        time.Now,
	}
}

// qrPayload is the JSON a merchant QR code encodes.
type qrPayload struct {
	MerchantName  string   `json:"merchant_name"`
	MerchantID    string   `json:"merchant_id"`
	Amount        int64    `json:"amount"`
	Currency      string   `json:"currency"`
	AcceptedRails []string `json:"accepted_rails"`
}

// CreateIntentFromQR parses a merchant QR payload into a pay_merchant
// intent.
func (s *PaymentService) CreateIntentFromQR(ctx context.Context, userID uuid.UUID, payload []byte) (*domain.Intent, error) {
	var qr qrPayload
	if err := json.Unmarshal(payload, &qr); err != nil {
		return nil, fmt.Errorf("invalid QR payload: %w", err)
	}
	if qr.MerchantName == "" {
		return nil, errors.New("QR payload is missing the merchant name")
	}
	return s.createIntent(ctx, userID, &domain.Intent{
		Type:            domain.IntentPayMerchant,
		PayeeName:       qr.MerchantName,
		PayeeIdentifier: qr.MerchantID,
		Amount:          qr.Amount,
		Currency:        qr.Currency,
		Metadata:        domain.IntentMetadata{AcceptedRails: qr.AcceptedRails},
	})
}

// SendMoneyRequest describes a peer transfer to create an intent for.
type SendMoneyRequest struct {
	RecipientName    string
	RecipientHandle  string
	Amount           int64
	Currency         string
	RecipientWallets []string
	PreferredWallet  string
}

// CreateSendMoneyIntent creates a send_money intent.
func (s *PaymentService) CreateSendMoneyIntent(ctx context.Context, userID uuid.UUID, req SendMoneyRequest) (*domain.Intent, error) {
	return s.createIntent(ctx, userID, &domain.Intent{
		Type:            domain.IntentSendMoney,
		PayeeName:       req.RecipientName,
		PayeeIdentifier: req.RecipientHandle,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Metadata: domain.IntentMetadata{
			RecipientWallets: req.RecipientWallets,
			PreferredWallet:  req.PreferredWallet,
		},
	})
}

// BillRequest describes a bill payment to create an intent for.
type BillRequest struct {
	BillerName    string
	AccountNumber string
	Amount        int64
	Currency      string
}

// CreateBillIntent creates a pay_bill intent.
func (s *PaymentService) CreateBillIntent(ctx context.Context, userID uuid.UUID, req BillRequest) (*domain.Intent, error) {
	return s.createIntent(ctx, userID, &domain.Intent{
		Type:            domain.IntentPayBill,
		PayeeName:       req.BillerName,
		PayeeIdentifier: req.AccountNumber,
		Amount:          req.Amount,
		Currency:        req.Currency,
	})
}

// RequestMoneyRequest describes an incoming money request.
type RequestMoneyRequest struct {
	FromName   string
	FromHandle string
	Amount     int64
	Currency   string
}

// CreateRequestMoneyIntent creates a request_money intent.
func (s *PaymentService) CreateRequestMoneyIntent(ctx context.Context, userID uuid.UUID, req RequestMoneyRequest) (*domain.Intent, error) {
	return s.createIntent(ctx, userID, &domain.Intent{
		Type:            domain.IntentRequestMoney,
		PayeeName:       req.FromName,
		PayeeIdentifier: req.FromHandle,
		Amount:          req.Amount,
		Currency:        req.Currency,
	})
}

func (s *PaymentService) createIntent(ctx context.Context, userID uuid.UUID, intent *domain.Intent) (*domain.Intent, error) {
	if intent.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if intent.Currency == "" {
		intent.Currency = "USD"
	}

	gate, err := s.gates.CheckIntentCreationGates(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !gate.Passed {
		return nil, &GateBlockedError{Result: gate}
	}

	intent.ID = uuid.New()
	intent.UserID = userID
	intent.Status = domain.IntentStatusOpen
	intent.CreatedAt = s.now()
	if err := s.repo.CreateIntent(ctx, intent); err != nil {
		return nil, err
	}
	s.logger.Info("intent created",
		"intent_id", intent.ID, "user_id", userID, "type", intent.Type, "amount", intent.Amount)
	return intent, nil
}

// ResolveIntent runs the chosen resolution strategy over an open intent and
// persists the outcome as a plan. An empty strategy falls back to the
// user's configured one.
func (s *PaymentService) ResolveIntent(ctx context.Context, userID uuid.UUID, deviceID string, intentID uuid.UUID, strategy string) (*domain.ResolutionPlan, error) {
	gate, err := s.gates.CheckResolutionGates(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	if !gate.Passed {
		return nil, &GateBlockedError{Result: gate}
	}

	intent, err := s.repo.FindIntentByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.UserID != userID {
		return nil, store.ErrIntentNotFound
	}
	if intent.Status != domain.IntentStatusOpen {
		return nil, ErrIntentClosed
	}

	settings, err := s.repo.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = settings.Strategy
	}
	if strategy != domain.StrategyPriority && strategy != domain.StrategySmart {
		return nil, fmt.Errorf("unknown resolution strategy %q", strategy)
	}

	sources, err := s.repo.ListFundingSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	date := ISODate(s.now())
	state, err := s.repo.GetDailyState(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	var resolution domain.PaymentResolution
	switch strategy {
	case domain.StrategySmart:
		resolution, err = s.smartResolution(ctx, intent, sources, state)
		if err != nil {
			return nil, err
		}
	default:
		resolution = ResolvePayment(ResolveRequest{
			Amount:    intent.Amount,
			Currency:  intent.Currency,
			PayeeName: intent.PayeeName,
		}, sources, s.guardrails, state, settings.FallbackPreference)
	}

	plan := s.buildPlan(intent, resolution)
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	resolutionsTotal.WithLabelValues(strategy, plan.Action).Inc()

	if planIsAutoApproved(plan) {
		if _, err := s.repo.AddToDailyState(ctx, userID, date, intent.Amount); err != nil {
			s.logger.Warn("daily counter update failed", "user_id", userID, "err", err)
		}
	}

	s.logger.Info("intent resolved",
		"intent_id", intent.ID, "plan_id", plan.ID, "strategy", strategy,
		"action", plan.Action, "rail", plan.ChosenRail)
	return plan, nil
}

// GetSmartResolutionPreview scores the intent's rails without persisting a
// plan or touching the daily counter.
func (s *PaymentService) GetSmartResolutionPreview(ctx context.Context, userID uuid.UUID, intentID uuid.UUID) (*domain.SmartResolution, error) {
	gate, err := s.gates.CheckIdentityGate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !gate.Passed {
		return nil, &GateBlockedError{Result: gate}
	}

	intent, err := s.repo.FindIntentByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.UserID != userID {
		return nil, store.ErrIntentNotFound
	}

	sctx, err := s.smartContext(ctx, intent)
	if err != nil {
		return nil, err
	}
	result := SmartResolve(*sctx)
	return &result, nil
}

// ExecutePlan delegates to the execution engine.
func (s *PaymentService) ExecutePlan(ctx context.Context, req ExecutePlanRequest) (*domain.Transaction, error) {
	return s.engine.ExecutePlan(ctx, req)
}

// CancelTransaction delegates to the execution engine.
func (s *PaymentService) CancelTransaction(ctx context.Context, userID uuid.UUID, transactionID uuid.UUID) (*domain.Transaction, error) {
	return s.engine.CancelTransaction(ctx, userID, transactionID)
}

// GetTransaction returns a transaction owned by the user.
func (s *PaymentService) GetTransaction(ctx context.Context, userID uuid.UUID, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, store.ErrTransactionNotFound
	}
	return tx, nil
}

// GetPlan returns a plan owned by the user.
func (s *PaymentService) GetPlan(ctx context.Context, userID uuid.UUID, planID uuid.UUID) (*domain.ResolutionPlan, error) {
	plan, err := s.repo.FindPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, store.ErrPlanNotFound
	}
	return plan, nil
}

// ListFundingSources returns the user's linked sources in priority order.
func (s *PaymentService) ListFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error) {
	return s.repo.ListFundingSources(ctx, userID)
}

func (s *PaymentService) smartContext(ctx context.Context, intent *domain.Intent) (*SmartContext, error) {
	sources, err := s.repo.ListFundingSources(ctx, intent.UserID)
	if err != nil {
		return nil, err
	}
	connectors, err := s.repo.ListConnectors(ctx, intent.UserID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.CountSuccessfulTransactionsByRail(ctx, intent.UserID, s.now().Add(-historyWindow))
	if err != nil {
		return nil, err
	}
	return &SmartContext{
		Intent:     intent,
		Sources:    sources,
		Connectors: connectors,
		History:    history,
	}, nil
}

// smartResolution adapts the smart resolver's scored recommendation into
// the same resolution shape the waterfall produces, with guardrails folded
// in the same way.
func (s *PaymentService) smartResolution(
	ctx context.Context,
	intent *domain.Intent,
	sources []domain.FundingSource,
	state *domain.DailyPaymentState,
) (domain.PaymentResolution, error) {
	guardrail := CheckGuardrails(intent.Amount, state, s.guardrails)
	if guardrail.Blocked {
		return domain.PaymentResolution{
			Action:  domain.ActionBlocked,
			Reasons: []string{guardrail.Reason},
		}, nil
	}

	sctx, err := s.smartContext(ctx, intent)
	if err != nil {
		return domain.PaymentResolution{}, err
	}
	sctx.Sources = sources

	smart := SmartResolve(*sctx)
	if !smart.Success {
		return domain.PaymentResolution{
			Action:  domain.ActionInsufficientFunds,
			Reasons: []string{smart.Explanation},
		}, nil
	}

	recommended := *smart.RecommendedRail
	req := ResolveRequest{Amount: intent.Amount, Currency: intent.Currency, PayeeName: intent.PayeeName}
	chargeSource := domain.FundingSource{
		ID:   recommended.SourceID,
		Name: recommended.RailName,
		Type: recommended.SourceType,
	}

	resolution := domain.PaymentResolution{
		Action:     domain.ActionUseSingleSource,
		ChosenRail: recommended.RailName,
		Steps:      []domain.ResolutionStep{chargeStep(chargeSource, req)},
		Reasons:    []string{smart.Explanation},
	}

	if smart.RequiresTopUp {
		if smart.TopUpSource == nil {
			return domain.PaymentResolution{
				Action:  domain.ActionInsufficientFunds,
				Reasons: []string{smart.Explanation},
			}, nil
		}
		from, ok := sourceByID(sources, *smart.TopUpSource)
		if !ok {
			return domain.PaymentResolution{}, store.ErrSourceNotFound
		}
		resolution.Action = domain.ActionTopUpWallet
		resolution.TopUpRequired = true
		resolution.TopUpAmount = smart.TopUpAmount
		resolution.Steps = []domain.ResolutionStep{
			topUpStep(from, chargeSource, smart.TopUpAmount),
			chargeStep(chargeSource, req),
		}
		if decision := CanAutoTopUp(smart.TopUpAmount, s.guardrails); decision.RequiresConfirmation {
			resolution.RequiresConfirmation = true
			resolution.Reasons = append(resolution.Reasons, decision.Reason)
		}
	}

	return mergeGuardrail(resolution, guardrail), nil
}

func (s *PaymentService) buildPlan(intent *domain.Intent, resolution domain.PaymentResolution) *domain.ResolutionPlan {
	riskLevel := RiskLevelFor(domain.GuardrailDecision{
		Blocked:              resolution.Action == domain.ActionBlocked,
		RequiresConfirmation: resolution.RequiresConfirmation,
	})
	return &domain.ResolutionPlan{
		ID:                   uuid.New(),
		IntentID:             intent.ID,
		UserID:               intent.UserID,
		Status:               domain.PlanStatusCreated,
		Action:               resolution.Action,
		ChosenRail:           resolution.ChosenRail,
		FallbackRail:         resolution.FallbackRail,
		Steps:                resolution.Steps,
		TopUpRequired:        resolution.TopUpRequired,
		TopUpAmount:          resolution.TopUpAmount,
		ExecutionMode:        executionModeFor(intent),
		ReasonCodes:          resolution.Reasons,
		RiskLevel:            riskLevel,
		RequiresConfirmation: resolution.RequiresConfirmation,
		CreatedAt:            s.now(),
	}
}

// executionModeFor picks the plan's execution mode. Bill payments settle
// through slow biller networks, so they run async; everything else is
// synchronous.
func executionModeFor(intent *domain.Intent) string {
	if intent.Type == domain.IntentPayBill {
		return domain.ExecutionAsync
	}
	return domain.ExecutionSync
}

// planIsAutoApproved reports whether the plan counts against the daily
// auto-approval limit.
func planIsAutoApproved(plan *domain.ResolutionPlan) bool {
	switch plan.Action {
	case domain.ActionBlocked, domain.ActionInsufficientFunds, domain.ActionRequiresConfirmation:
		return false
	}
	return !plan.RequiresConfirmation
}

func sourceByID(sources []domain.FundingSource, id uuid.UUID) (domain.FundingSource, bool) {
	for _, s := range sources {
		if s.ID == id {
			return s, true
		}
	}
	return domain.FundingSource{}, false
}
