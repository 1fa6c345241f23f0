/**
 * @description
 * Transaction payload signing. The signer produces an HMAC-signed JWT over
 * the plan's identifying facts so the audit trail can prove what was
 * approved for execution. Signing is the one security concern that fails
 * closed: no signature, no payment.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: HMAC token construction.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
)

// ErrSigningUnavailable is returned when the signer has no usable key.
var ErrSigningUnavailable = errors.New("transaction signing unavailable")

// SignaturePayload is the set of facts the signature covers.
type SignaturePayload struct {
	UserID uuid.UUID
	PlanID uuid.UUID
	Amount int64
}

// Signer produces proof-of-integrity artifacts for transaction payloads.
type Signer interface {
	Sign(ctx context.Context, payload SignaturePayload) (*domain.TransactionSignature, error)
}

// HMACSigner signs payloads with a symmetric key.
type HMACSigner struct {
	keyID  string
	secret []byte
	now    func() time.Time
}

// NewHMACSigner creates a signer. An empty secret yields a signer that
// always fails closed.
func NewHMACSigner(keyID string, secret string) *HMACSigner {
	return &HMACSigner{
		keyID:  keyID,
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Sign builds and signs the payload claims.
func (s *HMACSigner) Sign(ctx context.Context, payload SignaturePayload) (*domain.TransactionSignature, error) {
	if len(s.secret) == 0 {
		return nil, ErrSigningUnavailable
	}

	signedAt := s.now()
	signatureID := "sig_" + uuid.NewString()
	claims := jwt.MapClaims{
		"jti":     signatureID,
		"sub":     payload.UserID.String(),
		"plan_id": payload.PlanID.String(),
		"amount":  payload.Amount,
		"iat":     signedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction payload: %w", err)
	}

	return &domain.TransactionSignature{
		ID:       signatureID,
		KeyID:    s.keyID,
		Token:    signed,
		SignedAt: signedAt,
	}, nil
}
