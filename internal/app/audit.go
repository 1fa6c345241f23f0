/**
 * @description
 * The audit sink: append-only audit records persisted in the store and
 * fanned out over RabbitMQ. Both paths are best-effort; an audit failure
 * is logged and absorbed, never surfaced to the payment flow.
 */

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
	"github.com/onetap/payment-service/internal/store"
	"github.com/onetap/payment-service/pkg/rabbitmq"
)

// AuditSink records audit entries around payment execution.
type AuditSink interface {
	Record(ctx context.Context, entry domain.AuditEntry)
}

// StoreAuditSink writes entries to the audit_log table and publishes them to
// the payment events exchange.
type StoreAuditSink struct {
	repo      store.Repository
	publisher rabbitmq.Publisher
	logger    *slog.Logger
}

// NewStoreAuditSink creates the default audit sink. The publisher may be a
// fallback; persistence and fan-out degrade independently.
func NewStoreAuditSink(repo store.Repository, publisher rabbitmq.Publisher, logger *slog.Logger) *StoreAuditSink {
	return &StoreAuditSink{repo: repo, publisher: publisher, logger: logger}
}

// Record appends the entry, swallowing failures on both paths.
func (s *StoreAuditSink) Record(ctx context.Context, entry domain.AuditEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := s.repo.AppendAuditEntry(ctx, &entry); err != nil {
		s.logger.Warn("audit entry persistence failed", "user_id", entry.UserID, "action", entry.Action, "err", err)
	}

	if s.publisher == nil {
		return
	}
	event := rabbitmq.AuditEvent{
		UserID:    entry.UserID,
		PlanID:    entry.PlanID,
		Action:    entry.Action,
		Outcome:   entry.Outcome,
		RiskScore: entry.RiskScore,
		Detail:    entry.Detail,
		Timestamp: entry.CreatedAt,
	}
	if err := s.publisher.PublishAuditEvent(ctx, event); err != nil {
		s.logger.Warn("audit event publish failed", "user_id", entry.UserID, "action", entry.Action, "err", err)
	}
}
