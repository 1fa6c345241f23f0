/**
 * @description
 * The Gate Checker: binary access-control predicates evaluated before any
 * intent is created or resolved. Three independent gates (identity, device
 * trust, consent) and two composed checks. Gate outcomes are typed values;
 * an error return means the check itself could not run.
 *
 * @notes
 * - RuntimeMode is injected at construction. Permissive mode auto-passes and
 *   auto-registers device trust for frictionless demos; enforced mode treats
 *   every gate as a hard precondition with no bypass.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
	"github.com/onetap/payment-service/internal/store"
)

// GateChecker evaluates access-control gates against the store.
type GateChecker struct {
	repo   store.Repository
	mode   domain.RuntimeMode
	logger *slog.Logger
	now    func() time.Time
}

// NewGateChecker creates a gate checker for the given runtime mode.
func NewGateChecker(repo store.Repository, mode domain.RuntimeMode, logger *slog.Logger) *GateChecker {
	return &GateChecker{
		repo:   repo,
		mode:   mode,
		logger: logger,
		now:    time.Now,
	}
}

// Mode returns the runtime mode the checker was built with.
func (g *GateChecker) Mode() domain.RuntimeMode {
	return g.mode
}

// CheckIdentityGate fails with IDENTITY_BLOCKED when the user record is
// missing or its identity status is not active.
func (g *GateChecker) CheckIdentityGate(ctx context.Context, userID uuid.UUID) (domain.GateResult, error) {
	if g.mode == domain.ModePermissive {
		return domain.GatePass(), nil
	}
	user, err := g.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.GateBlock(domain.GateIdentityBlocked, "no identity record found for this user"), nil
		}
		return domain.GateResult{}, fmt.Errorf("identity gate lookup failed: %w", err)
	}
	if user.IdentityStatus != domain.IdentityStatusActive {
		return domain.GateBlock(domain.GateIdentityBlocked,
			fmt.Sprintf("identity status is %q, payments require an active identity", user.IdentityStatus)), nil
	}
	return domain.GatePass(), nil
}

// CheckDeviceTrustGate fails with DEVICE_UNTRUSTED when the trust record is
// missing or marked untrusted. On success it refreshes the device's
// last-seen timestamp; that write is best-effort.
func (g *GateChecker) CheckDeviceTrustGate(ctx context.Context, userID uuid.UUID, deviceID string) (domain.GateResult, error) {
	if g.mode == domain.ModePermissive {
		// Auto-register trust so demo devices pass every later check too.
		if err := g.repo.UpsertTrustedDevice(ctx, userID, deviceID, true); err != nil {
			g.logger.Warn("permissive device auto-registration failed", "user_id", userID, "err", err)
		}
		return domain.GatePass(), nil
	}
	device, err := g.repo.FindTrustedDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return domain.GateBlock(domain.GateDeviceUntrusted, "this device has not been registered as trusted"), nil
		}
		return domain.GateResult{}, fmt.Errorf("device trust gate lookup failed: %w", err)
	}
	if !device.Trusted {
		return domain.GateBlock(domain.GateDeviceUntrusted, "this device is marked untrusted"), nil
	}
	if err := g.repo.TouchTrustedDevice(ctx, userID, deviceID); err != nil {
		g.logger.Warn("device last-seen refresh failed", "user_id", userID, "device_id", deviceID, "err", err)
	}
	return domain.GatePass(), nil
}

// CheckConsentGate fails with CONSENT_MISSING, CONSENT_REVOKED, or
// CONSENT_EXPIRED depending on the consent record's state.
func (g *GateChecker) CheckConsentGate(ctx context.Context, userID uuid.UUID, connectorID uuid.UUID) (domain.GateResult, error) {
	if g.mode == domain.ModePermissive {
		return domain.GatePass(), nil
	}
	consent, err := g.repo.FindConsent(ctx, userID, connectorID)
	if err != nil {
		if errors.Is(err, store.ErrConsentNotFound) {
			return domain.GateBlock(domain.GateConsentMissing, "no consent on file for this connector"), nil
		}
		return domain.GateResult{}, fmt.Errorf("consent gate lookup failed: %w", err)
	}
	if consent.Status == domain.ConsentStatusRevoked {
		return domain.GateBlock(domain.GateConsentRevoked, "consent for this connector was revoked"), nil
	}
	if consent.Expired(g.now()) {
		return domain.GateBlock(domain.GateConsentExpired, "consent for this connector has expired"), nil
	}
	return domain.GatePass(), nil
}

// CheckIntentCreationGates runs the checks required before creating an
// intent: the identity gate only.
func (g *GateChecker) CheckIntentCreationGates(ctx context.Context, userID uuid.UUID) (domain.GateResult, error) {
	return g.CheckIdentityGate(ctx, userID)
}

// CheckResolutionGates runs identity then device trust, short-circuiting on
// the first failure.
func (g *GateChecker) CheckResolutionGates(ctx context.Context, userID uuid.UUID, deviceID string) (domain.GateResult, error) {
	result, err := g.CheckIdentityGate(ctx, userID)
	if err != nil || !result.Passed {
		return result, err
	}
	return g.CheckDeviceTrustGate(ctx, userID, deviceID)
}
