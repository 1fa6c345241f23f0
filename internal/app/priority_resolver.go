/**
 * @description
 * The priority resolver: a deterministic waterfall over the user's ordered
 * funding sources. Use the first source that can cover the amount; else top
 * up the wallet from a non-card source; else fall back to a linked card;
 * else fail. Pure over its inputs so every branch is unit-testable.
 *
 * @notes
 * - The sufficiency boundary is inclusive: balance == amount is sufficient.
 * - Card balances are never consulted; a card represents a credit line, not
 *   a deductible pool. Only wallet and bank balances gate top-up logic.
 * - Guardrail confirmation merges with path confirmation by logical OR, and
 *   the guardrail reason always leads the reason list.
 */

package app

import (
	"fmt"
	"sort"

	"github.com/onetap/payment-service/internal/domain"
)

// ResolveRequest carries the intent facts the waterfall needs.
type ResolveRequest struct {
	Amount    int64
	Currency  string
	PayeeName string
}

// ResolvePayment runs the waterfall and returns the resolution outcome.
func ResolvePayment(
	req ResolveRequest,
	sources []domain.FundingSource,
	cfg domain.GuardrailConfig,
	state *domain.DailyPaymentState,
	fallbackPreference string,
) domain.PaymentResolution {
	guardrail := CheckGuardrails(req.Amount, state, cfg)
	if guardrail.Blocked {
		return domain.PaymentResolution{
			Action:  domain.ActionBlocked,
			Reasons: []string{guardrail.Reason},
		}
	}

	usable := usableByPriority(sources)
	if len(usable) == 0 {
		return mergeGuardrail(domain.PaymentResolution{
			Action:  domain.ActionInsufficientFunds,
			Reasons: []string{"no linked and available funding sources"},
		}, guardrail)
	}

	primary := usable[0]
	if sufficient(primary, req.Amount) {
		return mergeGuardrail(domain.PaymentResolution{
			Action:     domain.ActionUseSingleSource,
			ChosenRail: primary.Name,
			Steps:      []domain.ResolutionStep{chargeStep(primary, req)},
		}, guardrail)
	}

	if primary.Type == domain.SourceTypeWallet {
		shortfall := req.Amount - primary.Balance

		switch fallbackPreference {
		case domain.FallbackAskEachTime:
			// No steps: the caller re-resolves after the user picks a fallback.
			return mergeGuardrail(domain.PaymentResolution{
				Action:     domain.ActionRequiresConfirmation,
				ChosenRail: primary.Name,
				Reasons: []string{fmt.Sprintf(
					"wallet %s is short by %d and fallback preference is ask_each_time", primary.Name, shortfall)},
				RequiresConfirmation: true,
			}, guardrail)

		case domain.FallbackUseCard:
			if card := defaultCard(usable[1:]); card != nil {
				// Charge the card directly; top-up is bypassed entirely.
				return mergeGuardrail(domain.PaymentResolution{
					Action:        domain.ActionUseFallback,
					ChosenRail:    primary.Name,
					FallbackRail:  card.Name,
					PreferredCard: true,
					Steps:         []domain.ResolutionStep{chargeStep(*card, req)},
				}, guardrail)
			}
		}

		if topUp := bestTopUpSource(usable[1:], shortfall); topUp != nil {
			resolution := domain.PaymentResolution{
				Action:        domain.ActionTopUpWallet,
				ChosenRail:    primary.Name,
				TopUpRequired: true,
				TopUpAmount:   shortfall,
				Steps: []domain.ResolutionStep{
					topUpStep(*topUp, primary, shortfall),
					chargeStep(primary, req),
				},
			}
			if decision := CanAutoTopUp(shortfall, cfg); decision.RequiresConfirmation {
				resolution.RequiresConfirmation = true
				resolution.Reasons = append(resolution.Reasons, decision.Reason)
			}
			return mergeGuardrail(resolution, guardrail)
		}
	}

	return mergeGuardrail(genericFallback(req, primary, usable[1:]), guardrail)
}

// genericFallback tries the remaining sources in priority order, preferring
// any card, else the first source with sufficient balance.
func genericFallback(req ResolveRequest, primary domain.FundingSource, rest []domain.FundingSource) domain.PaymentResolution {
	for _, s := range rest {
		if s.IsCard() {
			return domain.PaymentResolution{
				Action:       domain.ActionUseFallback,
				ChosenRail:   primary.Name,
				FallbackRail: s.Name,
				Steps:        []domain.ResolutionStep{chargeStep(s, req)},
			}
		}
	}
	for _, s := range rest {
		if s.Balance >= req.Amount {
			return domain.PaymentResolution{
				Action:       domain.ActionUseFallback,
				ChosenRail:   primary.Name,
				FallbackRail: s.Name,
				Steps:        []domain.ResolutionStep{chargeStep(s, req)},
			}
		}
	}
	return domain.PaymentResolution{
		Action:  domain.ActionInsufficientFunds,
		Reasons: []string{fmt.Sprintf("no funding source can cover %d", req.Amount)},
	}
}

// usableByPriority filters to linked+available sources and sorts ascending
// by priority. The sort is stable, so equal priorities keep input order.
func usableByPriority(sources []domain.FundingSource) []domain.FundingSource {
	usable := make([]domain.FundingSource, 0, len(sources))
	for _, s := range sources {
		if s.Usable() {
			usable = append(usable, s)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Priority < usable[j].Priority
	})
	return usable
}

// sufficient reports whether a source can cover the amount. The boundary is
// inclusive, and cards are always sufficient.
func sufficient(s domain.FundingSource, amount int64) bool {
	if s.IsCard() {
		return true
	}
	return s.Balance >= amount
}

// defaultCard returns the card with the lowest priority number, or nil when
// no card is linked.
func defaultCard(sources []domain.FundingSource) *domain.FundingSource {
	var best *domain.FundingSource
	for i := range sources {
		if !sources[i].IsCard() {
			continue
		}
		if best == nil || sources[i].Priority < best.Priority {
			best = &sources[i]
		}
	}
	return best
}

// bestTopUpSource returns the highest-priority non-card source whose balance
// covers the shortfall.
func bestTopUpSource(sources []domain.FundingSource, shortfall int64) *domain.FundingSource {
	for i := range sources {
		if !sources[i].IsCard() && sources[i].Balance >= shortfall {
			return &sources[i]
		}
	}
	return nil
}

func chargeStep(s domain.FundingSource, req ResolveRequest) domain.ResolutionStep {
	return domain.ResolutionStep{
		Action:      domain.StepCharge,
		SourceID:    s.ID,
		SourceType:  s.Type,
		Rail:        s.Name,
		Amount:      req.Amount,
		Description: fmt.Sprintf("Charge %d from %s for %s", req.Amount, s.Name, req.PayeeName),
	}
}

func topUpStep(from domain.FundingSource, wallet domain.FundingSource, amount int64) domain.ResolutionStep {
	return domain.ResolutionStep{
		Action:      domain.StepTopUp,
		SourceID:    from.ID,
		SourceType:  from.Type,
		Rail:        from.Name,
		Amount:      amount,
		Description: fmt.Sprintf("Top up %s with %d from %s", wallet.Name, amount, from.Name),
	}
}

// mergeGuardrail folds the guardrail decision into the path outcome: the
// confirmation flags OR together and the guardrail reason wins first place.
func mergeGuardrail(resolution domain.PaymentResolution, guardrail domain.GuardrailDecision) domain.PaymentResolution {
	if guardrail.RequiresConfirmation {
		resolution.RequiresConfirmation = true
		resolution.Reasons = append([]string{guardrail.Reason}, resolution.Reasons...)
	}
	return resolution
}
