package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
	"github.com/onetap/payment-service/internal/store"
	"github.com/onetap/payment-service/pkg/railconnector"
)

// executorRepoStub is an in-memory repository covering the execution
// pipeline. Unimplemented methods panic via the embedded interface.
type executorRepoStub struct {
	store.Repository

	plan     *domain.ResolutionPlan
	intent   *domain.Intent
	settings *domain.UserSettings
	user     *domain.User

	walletBalance int64
	claimErr      error

	claimed        bool
	executedMarked bool
	debits         []int64
	credits        []int64
	transactions   map[uuid.UUID]*domain.Transaction
	enqueuedTask   *domain.ExecutionTask
	activityCount  int
}

func newExecutorRepoStub(plan *domain.ResolutionPlan, intent *domain.Intent) *executorRepoStub {
	return &executorRepoStub{
		plan:         plan,
		intent:       intent,
		settings:     &domain.UserSettings{UserID: plan.UserID},
		transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

func (r *executorRepoStub) FindPlanByID(ctx context.Context, planID uuid.UUID) (*domain.ResolutionPlan, error) {
	if r.plan == nil || r.plan.ID != planID {
		return nil, store.ErrPlanNotFound
	}
	return r.plan, nil
}

func (r *executorRepoStub) FindIntentByID(ctx context.Context, intentID uuid.UUID) (*domain.Intent, error) {
	if r.intent == nil || r.intent.ID != intentID {
		return nil, store.ErrIntentNotFound
	}
	return r.intent, nil
}

func (r *executorRepoStub) GetUserSettings(ctx context.Context, userID uuid.UUID) (*domain.UserSettings, error) {
	return r.settings, nil
}

func (r *executorRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if r.user == nil {
		return nil, store.ErrUserNotFound
	}
	return r.user, nil
}

func (r *executorRepoStub) UpsertTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string, trusted bool) error {
	return nil
}

func (r *executorRepoStub) ClaimPlanForExecution(ctx context.Context, planID uuid.UUID) error {
	if r.claimErr != nil {
		return r.claimErr
	}
	r.claimed = true
	return nil
}

func (r *executorRepoStub) MarkPlanExecuted(ctx context.Context, planID uuid.UUID) error {
	r.executedMarked = true
	return nil
}

func (r *executorRepoStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.transactions[tx.ID] = tx
	return nil
}

func (r *executorRepoStub) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, ok := r.transactions[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return tx, nil
}

func (r *executorRepoStub) MarkTransactionSuccess(ctx context.Context, transactionID uuid.UUID, receipt *domain.Receipt) error {
	tx, ok := r.transactions[transactionID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	tx.Status = domain.TxStatusSuccess
	tx.Receipt = receipt
	return nil
}

func (r *executorRepoStub) MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, failureType string) error {
	tx, ok := r.transactions[transactionID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	tx.Status = domain.TxStatusFailed
	tx.FailureType = &failureType
	return nil
}

func (r *executorRepoStub) CancelTransaction(ctx context.Context, transactionID uuid.UUID, userID uuid.UUID) error {
	tx, ok := r.transactions[transactionID]
	if !ok || tx.UserID != userID {
		return store.ErrTransactionNotFound
	}
	if tx.Status != domain.TxStatusPending {
		return store.ErrNotCancellable
	}
	tx.Status = domain.TxStatusCancelled
	return nil
}

func (r *executorRepoStub) DebitWalletBalance(ctx context.Context, sourceID uuid.UUID, amount int64) error {
	if r.walletBalance < amount {
		return store.ErrInsufficientFunds
	}
	r.walletBalance -= amount
	r.debits = append(r.debits, amount)
	return nil
}

func (r *executorRepoStub) CreditWalletBalance(ctx context.Context, sourceID uuid.UUID, amount int64) error {
	r.walletBalance += amount
	r.credits = append(r.credits, amount)
	return nil
}

func (r *executorRepoStub) EnqueueExecutionTask(ctx context.Context, task *domain.ExecutionTask) error {
	r.enqueuedTask = task
	return nil
}

func (r *executorRepoStub) AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	return nil
}

func (r *executorRepoStub) AppendActivityEntry(ctx context.Context, entry *domain.ActivityEntry) error {
	r.activityCount++
	return nil
}

type connectorResult struct {
	res *railconnector.ExecuteResult
	err error
}

// connectorStub returns scripted results in order, then succeeds.
type connectorStub struct {
	calls     []railconnector.ExecuteRequest
	results   []connectorResult
	onExecute func(railconnector.ExecuteRequest)
}

func (c *connectorStub) Execute(ctx context.Context, req railconnector.ExecuteRequest) (*railconnector.ExecuteResult, error) {
	c.calls = append(c.calls, req)
	if c.onExecute != nil {
		c.onExecute(req)
	}
	if len(c.results) > 0 {
		next := c.results[0]
		c.results = c.results[1:]
		return next.res, next.err
	}
	return &railconnector.ExecuteResult{Succeeded: true, Reference: req.Reference}, nil
}

func newTestEngine(repo *executorRepoStub, connector railconnector.Client, mode domain.RuntimeMode) *ExecutionEngine {
	logger := discardLogger()
	gates := NewGateChecker(repo, mode, logger)
	security := NewSecurityService(nil, &signerStub{}, &recordingAuditSink{}, logger, 10, time.Minute)
	return NewExecutionEngine(repo, gates, security, connector, nil, logger, 30*time.Second)
}

func walletChargePlan(userID uuid.UUID, intentID uuid.UUID, amount int64) *domain.ResolutionPlan {
	return &domain.ResolutionPlan{
		ID:            uuid.New(),
		IntentID:      intentID,
		UserID:        userID,
		Status:        domain.PlanStatusCreated,
		Action:        domain.ActionUseSingleSource,
		ChosenRail:    "OneTap Wallet",
		ExecutionMode: domain.ExecutionSync,
		Steps: []domain.ResolutionStep{
			{Action: domain.StepCharge, SourceID: uuid.New(), SourceType: domain.SourceTypeWallet, Amount: amount, Description: "Charge wallet"},
		},
	}
}

func paymentIntent(userID uuid.UUID, amount int64) *domain.Intent {
	return &domain.Intent{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.IntentPayMerchant,
		PayeeName: "Corner Cafe",
		Amount:    amount,
		Currency:  "USD",
		Status:    domain.IntentStatusOpen,
	}
}

func TestExecutePlan_SyncSuccessDebitsWalletAndSettlesPlan(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	repo.walletBalance = 10000
	connector := &connectorStub{}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusSuccess {
		t.Fatalf("expected success, got %q", tx.Status)
	}
	if tx.Receipt == nil || tx.Receipt.SignatureID == "" || tx.Receipt.Rail != "OneTap Wallet" {
		t.Fatalf("unexpected receipt %+v", tx.Receipt)
	}
	if !repo.claimed || !repo.executedMarked {
		t.Fatalf("plan lifecycle incomplete: claimed=%v executed=%v", repo.claimed, repo.executedMarked)
	}
	if repo.walletBalance != 5000 || len(repo.debits) != 1 {
		t.Fatalf("expected one debit of 5000, balance=%d debits=%v", repo.walletBalance, repo.debits)
	}
	if len(connector.calls) != 1 {
		t.Fatalf("expected one connector call, got %d", len(connector.calls))
	}
}

func TestExecutePlan_SyncWritesOnlyTerminalRow(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	repo.walletBalance = 10000
	connector := &connectorStub{}
	rowsDuringStep := -1
	connector.onExecute = func(railconnector.ExecuteRequest) {
		rowsDuringStep = len(repo.transactions)
	}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rowsDuringStep != 0 {
		t.Fatalf("sync execution must not persist a transaction before settlement, saw %d rows mid-step", rowsDuringStep)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected a single settled row, got %d", len(repo.transactions))
	}
	if stored := repo.transactions[tx.ID]; stored == nil || stored.Status != domain.TxStatusSuccess {
		t.Fatalf("expected the stored row to be terminal, got %+v", stored)
	}
}

func TestExecutePlan_StepsRunOverTheirSourceRail(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	plan.Action = domain.ActionTopUpWallet
	plan.Steps = []domain.ResolutionStep{
		{Action: domain.StepTopUp, SourceID: uuid.New(), SourceType: domain.SourceTypeBank, Rail: "First Bank", Amount: 3000, Description: "Top up wallet"},
		{Action: domain.StepCharge, SourceID: uuid.New(), SourceType: domain.SourceTypeWallet, Rail: "OneTap Wallet", Amount: 5000, Description: "Charge wallet"},
	}
	repo := newExecutorRepoStub(plan, intent)
	repo.walletBalance = 2000
	connector := &connectorStub{}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusSuccess {
		t.Fatalf("expected success, got %q", tx.Status)
	}
	if len(connector.calls) != 2 {
		t.Fatalf("expected two connector calls, got %d", len(connector.calls))
	}
	if connector.calls[0].Rail != "First Bank" {
		t.Fatalf("the top-up must run over the bank's rail, got %q", connector.calls[0].Rail)
	}
	if connector.calls[1].Rail != "OneTap Wallet" {
		t.Fatalf("the charge must run over the wallet's rail, got %q", connector.calls[1].Rail)
	}
}

func TestExecutePlan_TopUpCreditsWalletBeforeDebit(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	bankID := uuid.New()
	plan.Action = domain.ActionTopUpWallet
	plan.Steps = append([]domain.ResolutionStep{
		{Action: domain.StepTopUp, SourceID: bankID, SourceType: domain.SourceTypeBank, Amount: 3000, Description: "Top up wallet"},
	}, plan.Steps...)
	repo := newExecutorRepoStub(plan, intent)
	repo.walletBalance = 2000
	engine := newTestEngine(repo, &connectorStub{}, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusSuccess {
		t.Fatalf("expected success, got %q with failure %v", tx.Status, tx.FailureType)
	}
	if len(repo.credits) != 1 || repo.credits[0] != 3000 {
		t.Fatalf("expected a single 3000 credit, got %v", repo.credits)
	}
	if repo.walletBalance != 0 {
		t.Fatalf("expected the debit to consume the topped-up balance, got %d", repo.walletBalance)
	}
}

func TestExecutePlan_StepFailureLeavesBalancesUntouched(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	repo.walletBalance = 10000
	connector := &connectorStub{results: []connectorResult{
		{res: &railconnector.ExecuteResult{Succeeded: false, Reason: railconnector.ReasonInsufficientFunds}},
	}}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusFailed || tx.FailureType == nil || *tx.FailureType != domain.FailureInsufficientFunds {
		t.Fatalf("expected insufficient_funds failure, got status=%q failure=%v", tx.Status, tx.FailureType)
	}
	if len(repo.debits) != 0 || len(repo.credits) != 0 {
		t.Fatalf("a failed step must not move balances: debits=%v credits=%v", repo.debits, repo.credits)
	}
	if !repo.executedMarked {
		t.Fatal("a failed execution still consumes the plan")
	}
}

func TestExecutePlan_TransportErrorMapsToConnectorUnavailable(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	repo.walletBalance = 10000
	connector := &connectorStub{results: []connectorResult{
		{err: errors.New("dial tcp: connection refused")},
	}}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.FailureType == nil || *tx.FailureType != domain.FailureConnectorUnavailable {
		t.Fatalf("expected connector_unavailable, got %v", tx.FailureType)
	}
}

func TestExecutePlan_ConfirmationRequired(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 80000)
	plan := walletChargePlan(userID, intent.ID, 80000)
	plan.RequiresConfirmation = true
	repo := newExecutorRepoStub(plan, intent)
	engine := newTestEngine(repo, &connectorStub{}, domain.ModePermissive)

	if _, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID}); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if repo.claimed {
		t.Fatal("an unconfirmed plan must not be claimed")
	}

	repo.walletBalance = 100000
	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID, Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error on confirmed execute: %v", err)
	}
	if tx.Status != domain.TxStatusSuccess {
		t.Fatalf("expected success after confirmation, got %q", tx.Status)
	}
}

func TestExecutePlan_BlockedPlanIsNotExecutable(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	plan.Action = domain.ActionBlocked
	plan.Steps = nil
	repo := newExecutorRepoStub(plan, intent)
	engine := newTestEngine(repo, &connectorStub{}, domain.ModePermissive)

	if _, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID}); !errors.Is(err, ErrPlanNotExecutable) {
		t.Fatalf("expected ErrPlanNotExecutable, got %v", err)
	}
}

func TestExecutePlan_OwnershipMismatchLooksLikeNotFound(t *testing.T) {
	owner := uuid.New()
	intent := paymentIntent(owner, 5000)
	plan := walletChargePlan(owner, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	engine := newTestEngine(repo, &connectorStub{}, domain.ModePermissive)

	if _, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: uuid.New(), DeviceID: "dev-1", PlanID: plan.ID}); !errors.Is(err, store.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound for a foreign plan, got %v", err)
	}
}

func TestExecutePlan_PausedUserFailsWithoutClaimingPlan(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	repo.settings.Paused = true
	connector := &connectorStub{}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusFailed || *tx.FailureType != domain.FailureUserPaused {
		t.Fatalf("expected user_paused failure, got status=%q failure=%v", tx.Status, tx.FailureType)
	}
	if repo.claimed {
		t.Fatal("a paused precheck must leave the plan claimable")
	}
	if len(connector.calls) != 0 {
		t.Fatal("no connector call should happen for a paused user")
	}
}

func TestExecutePlan_GateBlockFailsWithoutClaimingPlan(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	// No user record, so the enforced identity gate blocks.
	engine := newTestEngine(repo, &connectorStub{}, domain.ModeEnforced)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusFailed || *tx.FailureType != domain.FailureIdentityBlocked {
		t.Fatalf("expected identity_blocked failure, got status=%q failure=%v", tx.Status, tx.FailureType)
	}
	if repo.claimed {
		t.Fatal("a gate block must leave the plan claimable")
	}
}

func TestExecutePlan_DoubleClaimSurfacesAlreadyExecuted(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	repo.claimErr = store.ErrPlanAlreadyExecuted
	engine := newTestEngine(repo, &connectorStub{}, domain.ModePermissive)

	if _, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID}); !errors.Is(err, store.ErrPlanAlreadyExecuted) {
		t.Fatalf("expected ErrPlanAlreadyExecuted, got %v", err)
	}
}

func TestExecutePlan_SecurityRejectionConsumesPlan(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	connector := &connectorStub{}
	logger := discardLogger()
	gates := NewGateChecker(repo, domain.ModePermissive, logger)
	security := NewSecurityService(nil, &signerStub{err: ErrSigningUnavailable}, &recordingAuditSink{}, logger, 10, time.Minute)
	engine := NewExecutionEngine(repo, gates, security, connector, nil, logger, 30*time.Second)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusFailed || *tx.FailureType != domain.FailureRiskBlocked {
		t.Fatalf("expected risk_blocked failure, got status=%q failure=%v", tx.Status, tx.FailureType)
	}
	if !repo.claimed || !repo.executedMarked {
		t.Fatal("a security rejection after the claim must consume the plan")
	}
	if len(connector.calls) != 0 {
		t.Fatal("no connector call after a security rejection")
	}
}

func TestExecutePlan_AsyncCreatesPendingTransactionAndTask(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	plan.ExecutionMode = domain.ExecutionAsync
	repo := newExecutorRepoStub(plan, intent)
	connector := &connectorStub{}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	tx, err := engine.ExecutePlan(context.Background(), ExecutePlanRequest{UserID: userID, DeviceID: "dev-1", PlanID: plan.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusPending {
		t.Fatalf("async execution must return a pending transaction, got %q", tx.Status)
	}
	if repo.enqueuedTask == nil || repo.enqueuedTask.TransactionID != tx.ID || repo.enqueuedTask.Status != domain.TaskStatusQueued {
		t.Fatalf("expected a queued task for the transaction, got %+v", repo.enqueuedTask)
	}
	if repo.enqueuedTask.SignatureID == "" {
		t.Fatal("the queued task must carry the claim-time signature id")
	}
	if !repo.enqueuedTask.AvailableAt.After(time.Now()) {
		t.Fatalf("task must be delayed, available at %v", repo.enqueuedTask.AvailableAt)
	}
	if len(connector.calls) != 0 {
		t.Fatal("async execution must not touch the connector inline")
	}
}

func TestFinishPendingTransaction_SettlesQueuedWork(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	repo.walletBalance = 10000
	engine := newTestEngine(repo, &connectorStub{}, domain.ModePermissive)

	pending := &domain.Transaction{ID: uuid.New(), IntentID: intent.ID, PlanID: plan.ID, UserID: userID, Status: domain.TxStatusPending, Amount: 5000}
	repo.transactions[pending.ID] = pending

	tx, err := engine.FinishPendingTransaction(context.Background(), domain.ExecutionTask{
		ID: uuid.New(), PlanID: plan.ID, TransactionID: pending.ID, SignatureID: "sig_task", Status: domain.TaskStatusProcessing,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusSuccess {
		t.Fatalf("expected success, got %q", tx.Status)
	}
	if tx.Receipt == nil || tx.Receipt.SignatureID != "sig_task" {
		t.Fatalf("async settlement must carry the signature captured at claim time, got %+v", tx.Receipt)
	}
	if repo.walletBalance != 5000 {
		t.Fatalf("expected the wallet debit, balance=%d", repo.walletBalance)
	}
}

func TestFinishPendingTransaction_SkipsSettledTransaction(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	connector := &connectorStub{}
	engine := newTestEngine(repo, connector, domain.ModePermissive)

	cancelled := &domain.Transaction{ID: uuid.New(), IntentID: intent.ID, PlanID: plan.ID, UserID: userID, Status: domain.TxStatusCancelled, Amount: 5000}
	repo.transactions[cancelled.ID] = cancelled

	tx, err := engine.FinishPendingTransaction(context.Background(), domain.ExecutionTask{
		ID: uuid.New(), PlanID: plan.ID, TransactionID: cancelled.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusCancelled {
		t.Fatalf("a settled transaction must be left alone, got %q", tx.Status)
	}
	if len(connector.calls) != 0 {
		t.Fatal("no connector call for a settled transaction")
	}
}

func TestCancelTransaction_OnlyPendingIsCancellable(t *testing.T) {
	userID := uuid.New()
	intent := paymentIntent(userID, 5000)
	plan := walletChargePlan(userID, intent.ID, 5000)
	repo := newExecutorRepoStub(plan, intent)
	engine := newTestEngine(repo, &connectorStub{}, domain.ModePermissive)

	pending := &domain.Transaction{ID: uuid.New(), IntentID: intent.ID, PlanID: plan.ID, UserID: userID, Status: domain.TxStatusPending, Amount: 5000}
	repo.transactions[pending.ID] = pending

	tx, err := engine.CancelTransaction(context.Background(), userID, pending.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != domain.TxStatusCancelled {
		t.Fatalf("expected cancelled, got %q", tx.Status)
	}

	if _, err := engine.CancelTransaction(context.Background(), userID, pending.ID); !errors.Is(err, store.ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable on a second cancel, got %v", err)
	}
}
