/**
 * @description
 * The smart scoring resolver. Each connected rail gets five sub-scores in
 * [0,100] (compatibility, balance, priority, history, health), combined
 * with fixed weights summing to 100. The top-scoring candidate becomes the
 * recommendation, the rest the alternatives.
 *
 * @notes
 * - Candidates with compatibility 0 or health 0 are excluded before ranking;
 *   an incompatible or dead rail can never be recommended, whatever its
 *   other sub-scores.
 * - Tie-break is deterministic: equal weighted totals rank by lower
 *   funding-source priority, then by source id. Insertion order never
 *   decides the recommendation.
 */

package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
)

// Scoring weights; they sum to 100.
const (
	weightCompatibility = 35
	weightBalance       = 30
	weightPriority      = 15
	weightHistory       = 10
	weightHealth        = 10
)

// SmartContext is everything the scoring resolver reads.
type SmartContext struct {
	Intent     *domain.Intent
	Sources    []domain.FundingSource
	Connectors []domain.Connector
	// History maps rail name to successful-transaction count over the last
	// 30 days. A nil or empty map means the user has no history yet.
	History map[string]int64
}

// SmartResolve scores every connected rail and recommends the best one.
func SmartResolve(sctx SmartContext) domain.SmartResolution {
	connectorsByName := make(map[string]*domain.Connector, len(sctx.Connectors))
	for i := range sctx.Connectors {
		connectorsByName[sctx.Connectors[i].Name] = &sctx.Connectors[i]
	}

	var totalHistory int64
	for _, count := range sctx.History {
		totalHistory += count
	}

	var candidates []domain.RailScore
	for _, source := range sctx.Sources {
		if !source.Usable() {
			continue
		}
		connector := connectorsByName[source.Name]

		compatibility := compatibilityScore(sctx.Intent, &source, connector)
		health := healthScore(connector)
		if compatibility == 0 || health == 0 {
			continue
		}

		balance, requiresTopUp, topUpAmount := balanceScore(&source, sctx.Intent.Amount)
		score := domain.RailScore{
			SourceID:      source.ID,
			RailName:      source.Name,
			SourceType:    source.Type,
			Priority:      source.Priority,
			Compatibility: compatibility,
			BalanceScore:  balance,
			PriorityScore: priorityScore(source.Priority),
			HistoryScore:  historyScore(source.Name, sctx.History, totalHistory),
			HealthScore:   health,
			RequiresTopUp: requiresTopUp,
			TopUpAmount:   topUpAmount,
		}
		score.Total = weightedTotal(score)
		candidates = append(candidates, score)
	}

	if len(candidates) == 0 {
		return domain.SmartResolution{
			Success:      false,
			Alternatives: []domain.RailScore{},
			Explanation:  noCandidateExplanation(sctx.Intent),
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Total != candidates[j].Total {
			return candidates[i].Total > candidates[j].Total
		}
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].SourceID.String() < candidates[j].SourceID.String()
	})

	recommended := candidates[0]
	resolution := domain.SmartResolution{
		Success:         true,
		RecommendedRail: &recommended,
		Alternatives:    candidates[1:],
		RequiresTopUp:   recommended.RequiresTopUp,
		TopUpAmount:     recommended.TopUpAmount,
		Explanation: fmt.Sprintf("%s scored %.1f: compatibility %d, balance %d, priority %d, history %d, health %d",
			recommended.RailName, recommended.Total, recommended.Compatibility, recommended.BalanceScore,
			recommended.PriorityScore, recommended.HistoryScore, recommended.HealthScore),
	}

	if recommended.RequiresTopUp {
		if topUpSource := findTopUpSource(sctx.Sources, recommended, recommended.TopUpAmount); topUpSource != nil {
			resolution.TopUpSource = topUpSource
		}
		// A missing top-up source never fails the resolution.
	}

	return resolution
}

// compatibilityScore rates how well a rail fits the intent. Zero means the
// rail can never serve it.
func compatibilityScore(intent *domain.Intent, source *domain.FundingSource, connector *domain.Connector) int {
	if connector == nil || !connector.HasCapability(intent.RequiredCapability()) {
		return 0
	}
	switch intent.Type {
	case domain.IntentPayMerchant:
		for _, rail := range intent.Metadata.AcceptedRails {
			if rail == source.Name {
				return 100
			}
		}
		return 0
	case domain.IntentSendMoney, domain.IntentRequestMoney:
		if intent.Metadata.PreferredWallet != "" && source.Name == intent.Metadata.PreferredWallet {
			return 100
		}
		for _, wallet := range intent.Metadata.RecipientWallets {
			if wallet == source.Name {
				return 80
			}
		}
		return 30
	default:
		return 70
	}
}

// balanceScore rates coverage of the amount. Cards have no balance
// dependency and always score 100.
func balanceScore(source *domain.FundingSource, amount int64) (score int, requiresTopUp bool, topUpAmount int64) {
	if source.IsCard() {
		return 100, false, 0
	}
	if amount <= 0 || source.Balance >= amount {
		return 100, false, 0
	}
	coverage := float64(source.Balance) / float64(amount)
	shortfall := amount - source.Balance
	if coverage >= 0.5 {
		return int(math.Round(coverage * 60)), true, shortfall
	}
	return int(math.Round(coverage * 30)), true, shortfall
}

// priorityScore is a stepped lookup over the user's source ordering.
func priorityScore(priority int) int {
	switch {
	case priority <= 1:
		return 100
	case priority == 2:
		return 80
	case priority == 3:
		return 60
	case priority == 4:
		return 40
	default:
		return 20
	}
}

// historyScore is the rail's share of the user's successful transactions
// over the last 30 days, or 50 (neutral) with no history at all.
func historyScore(railName string, history map[string]int64, total int64) int {
	if total == 0 {
		return 50
	}
	return int(math.Round(float64(history[railName]) / float64(total) * 100))
}

// healthScore maps connector status onto a score. A missing connector row is
// treated as unavailable.
func healthScore(connector *domain.Connector) int {
	if connector == nil {
		return 0
	}
	switch connector.Status {
	case domain.ConnectorAvailable:
		return 100
	case domain.ConnectorDegraded:
		return 50
	default:
		return 0
	}
}

func weightedTotal(s domain.RailScore) float64 {
	return float64(weightCompatibility*s.Compatibility+
		weightBalance*s.BalanceScore+
		weightPriority*s.PriorityScore+
		weightHistory*s.HistoryScore+
		weightHealth*s.HealthScore) / 100
}

// findTopUpSource locates a best-effort source to fund the recommended
// rail's shortfall: prefer a bank, else any non-card source with sufficient
// balance, never the recommended rail itself.
func findTopUpSource(sources []domain.FundingSource, recommended domain.RailScore, shortfall int64) *uuid.UUID {
	var fallback *uuid.UUID
	for i := range sources {
		s := &sources[i]
		if s.ID == recommended.SourceID || s.IsCard() || !s.Usable() || s.Balance < shortfall {
			continue
		}
		if s.Type == domain.SourceTypeBank {
			id := s.ID
			return &id
		}
		if fallback == nil {
			id := s.ID
			fallback = &id
		}
	}
	return fallback
}

func noCandidateExplanation(intent *domain.Intent) string {
	if intent.Type == domain.IntentPayMerchant && len(intent.Metadata.AcceptedRails) > 0 {
		return fmt.Sprintf("%s only accepts: %s; none of your connected rails qualify",
			intent.PayeeName, strings.Join(intent.Metadata.AcceptedRails, ", "))
	}
	return "no connected rail is compatible and healthy enough to recommend"
}
