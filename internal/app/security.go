/**
 * @description
 * The security layer wrapped around plan execution. Three concerns run in a
 * fixed order: rate limiting (fails open on infrastructure errors), payload
 * signing (fails closed), and audit logging (best-effort). A rejected check
 * carries the audit action that was recorded for it.
 */

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
)

// RateLimiter is the distributed limiter the security service consults
// before execution.
type RateLimiter interface {
	Check(ctx context.Context, scope, subject string, limit int, window time.Duration) (allowed bool, remaining int, retryAfterSeconds int, err error)
	Consume(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

const executeRateLimitScope = "execute"

// SecurityCheckResult is the outcome of the pre-payment security pass.
type SecurityCheckResult struct {
	Approved          bool
	Reason            string
	RetryAfterSeconds int
	Signature         *domain.TransactionSignature
}

// SecurityService runs the pre- and post-payment security passes.
type SecurityService struct {
	limiter RateLimiter
	signer  Signer
	audit   AuditSink
	logger  *slog.Logger

	executeLimit  int
	executeWindow time.Duration
}

// NewSecurityService wires the security pass. A nil limiter disables rate
// limiting; signing and auditing are always active.
func NewSecurityService(limiter RateLimiter, signer Signer, audit AuditSink, logger *slog.Logger, executeLimit int, executeWindow time.Duration) *SecurityService {
	return &SecurityService{
		limiter:       limiter,
		signer:        signer,
		audit:         audit,
		logger:        logger,
		executeLimit:  executeLimit,
		executeWindow: executeWindow,
	}
}

// PrePaymentSecurityCheck runs rate limiting, signing, and the initiation
// audit entry for a plan about to execute.
func (s *SecurityService) PrePaymentSecurityCheck(ctx context.Context, userID uuid.UUID, planID uuid.UUID, amount int64) (*SecurityCheckResult, error) {
	subject := userID.String()

	allowed := true
	retryAfter := 0
	if s.limiter != nil {
		var err error
		allowed, _, retryAfter, err = s.limiter.Check(ctx, executeRateLimitScope, subject, s.executeLimit, s.executeWindow)
		if err != nil {
			// Limiter outage must not block payments.
			s.logger.Warn("rate limiter unavailable; allowing execution", "user_id", subject, "err", err)
			allowed = true
			retryAfter = 0
		}
	}

	if !allowed {
		s.audit.Record(ctx, domain.AuditEntry{
			UserID:    userID,
			PlanID:    &planID,
			Action:    domain.AuditRateLimitExceeded,
			Outcome:   "rejected",
			RiskScore: 50,
			Detail: map[string]string{
				"retry_after_seconds": fmt.Sprintf("%d", retryAfter),
			},
		})
		return &SecurityCheckResult{
			Approved:          false,
			Reason:            "Too many payment attempts. Please wait before trying again.",
			RetryAfterSeconds: retryAfter,
		}, nil
	}

	signature, err := s.signer.Sign(ctx, SignaturePayload{UserID: userID, PlanID: planID, Amount: amount})
	if err != nil {
		s.audit.Record(ctx, domain.AuditEntry{
			UserID:    userID,
			PlanID:    &planID,
			Action:    domain.AuditSignatureRejected,
			Outcome:   "rejected",
			RiskScore: 80,
			Detail:    map[string]string{"error": err.Error()},
		})
		return &SecurityCheckResult{
			Approved: false,
			Reason:   "Payment could not be securely signed.",
		}, nil
	}

	if s.limiter != nil {
		if _, _, err := s.limiter.Consume(ctx, executeRateLimitScope, subject, s.executeLimit, s.executeWindow); err != nil {
			s.logger.Warn("rate limit consume failed", "user_id", subject, "err", err)
		}
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:  userID,
		PlanID:  &planID,
		Action:  domain.AuditPaymentInitiated,
		Outcome: "approved",
		Detail: map[string]string{
			"signature_id": signature.ID,
			"amount":       fmt.Sprintf("%d", amount),
		},
	})

	return &SecurityCheckResult{Approved: true, Signature: signature}, nil
}

// PostPaymentAuditLog records the terminal audit entry for an execution.
func (s *SecurityService) PostPaymentAuditLog(ctx context.Context, userID uuid.UUID, planID uuid.UUID, succeeded bool, detail map[string]string) {
	action := domain.AuditPaymentCompleted
	outcome := "success"
	risk := 0
	if !succeeded {
		action = domain.AuditPaymentFailed
		outcome = "failed"
		risk = 30
	}
	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    userID,
		PlanID:    &planID,
		Action:    action,
		Outcome:   outcome,
		RiskScore: risk,
		Detail:    detail,
	})
}
