package app

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/onetap/payment-service/internal/domain"
)

func namedSource(name, sourceType string, balance int64, priority int) domain.FundingSource {
	return domain.FundingSource{
		ID:          uuid.New(),
		Name:        name,
		Type:        sourceType,
		Balance:     balance,
		Priority:    priority,
		IsLinked:    true,
		IsAvailable: true,
	}
}

func connector(name, status string, capabilities ...string) domain.Connector {
	return domain.Connector{
		ID:           uuid.New(),
		Name:         name,
		Status:       status,
		Capabilities: capabilities,
	}
}

func merchantIntent(amount int64, acceptedRails ...string) *domain.Intent {
	return &domain.Intent{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Type:      domain.IntentPayMerchant,
		PayeeName: "City Grocer",
		Amount:    amount,
		Currency:  "USD",
		Metadata:  domain.IntentMetadata{AcceptedRails: acceptedRails},
	}
}

func TestSmartResolve_RecommendsAcceptedHealthyRail(t *testing.T) {
	walletSource := namedSource("OneTap Wallet", domain.SourceTypeWallet, 20000, 1)
	bankSource := namedSource("First Bank", domain.SourceTypeBank, 100000, 2)
	result := SmartResolve(SmartContext{
		Intent:  merchantIntent(5000, "OneTap Wallet"),
		Sources: []domain.FundingSource{walletSource, bankSource},
		Connectors: []domain.Connector{
			connector("OneTap Wallet", domain.ConnectorAvailable, domain.CapabilityMerchantPayment),
			connector("First Bank", domain.ConnectorAvailable, domain.CapabilityMerchantPayment),
		},
	})

	if !result.Success {
		t.Fatalf("expected a recommendation, got %+v", result)
	}
	if result.RecommendedRail.RailName != "OneTap Wallet" {
		t.Fatalf("expected the accepted wallet, got %s", result.RecommendedRail.RailName)
	}
	// The bank is not in the merchant's accepted list, compatibility 0.
	if len(result.Alternatives) != 0 {
		t.Fatalf("expected no alternatives, got %+v", result.Alternatives)
	}
}

func TestSmartResolve_ExclusionInvariant(t *testing.T) {
	sources := []domain.FundingSource{
		namedSource("OneTap Wallet", domain.SourceTypeWallet, 20000, 1),
		namedSource("Dead Rail", domain.SourceTypeBank, 100000, 2),
		namedSource("Foreign Rail", domain.SourceTypeBank, 100000, 3),
	}
	result := SmartResolve(SmartContext{
		Intent:  merchantIntent(5000, "OneTap Wallet", "Dead Rail"),
		Sources: sources,
		Connectors: []domain.Connector{
			connector("OneTap Wallet", domain.ConnectorAvailable, domain.CapabilityMerchantPayment),
			// Accepted by the merchant but hard down.
			connector("Dead Rail", domain.ConnectorUnavailable, domain.CapabilityMerchantPayment),
			// Healthy but not accepted.
			connector("Foreign Rail", domain.ConnectorAvailable, domain.CapabilityMerchantPayment),
		},
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	seen := append([]domain.RailScore{*result.RecommendedRail}, result.Alternatives...)
	for _, score := range seen {
		if score.RailName == "Dead Rail" || score.RailName == "Foreign Rail" {
			t.Fatalf("excluded rail %s leaked into the ranking", score.RailName)
		}
	}
}

func TestSmartResolve_WeightedTotalStaysInRange(t *testing.T) {
	sources := []domain.FundingSource{
		namedSource("OneTap Wallet", domain.SourceTypeWallet, 100, 1),
		namedSource("First Bank", domain.SourceTypeBank, 1000000, 5),
		namedSource("Visa Card", domain.SourceTypeDebitCard, 0, 2),
	}
	result := SmartResolve(SmartContext{
		Intent:  &domain.Intent{Type: domain.IntentPayBill, Amount: 40000, PayeeName: "Power Co"},
		Sources: sources,
		Connectors: []domain.Connector{
			connector("OneTap Wallet", domain.ConnectorAvailable, domain.CapabilityBillPayment),
			connector("First Bank", domain.ConnectorDegraded, domain.CapabilityBillPayment),
			connector("Visa Card", domain.ConnectorAvailable, domain.CapabilityBillPayment),
		},
		History: map[string]int64{"Visa Card": 7, "First Bank": 3},
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	for _, score := range append([]domain.RailScore{*result.RecommendedRail}, result.Alternatives...) {
		if score.Total < 0 || score.Total > 100 {
			t.Fatalf("total %.2f out of [0,100] for %s", score.Total, score.RailName)
		}
		for name, sub := range map[string]int{
			"compatibility": score.Compatibility,
			"balance":       score.BalanceScore,
			"priority":      score.PriorityScore,
			"history":       score.HistoryScore,
			"health":        score.HealthScore,
		} {
			if sub < 0 || sub > 100 {
				t.Fatalf("%s sub-score %d out of [0,100] for %s", name, sub, score.RailName)
			}
		}
	}
}

func TestSmartResolve_NoCompatibleRailNamesAcceptedOnes(t *testing.T) {
	result := SmartResolve(SmartContext{
		Intent: merchantIntent(5000, "X"),
		Sources: []domain.FundingSource{
			namedSource("Y", domain.SourceTypeWallet, 100000, 1),
			namedSource("Z", domain.SourceTypeBank, 100000, 2),
		},
		Connectors: []domain.Connector{
			connector("Y", domain.ConnectorAvailable, domain.CapabilityMerchantPayment),
			connector("Z", domain.ConnectorAvailable, domain.CapabilityMerchantPayment),
		},
	})

	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !strings.Contains(result.Explanation, "X") {
		t.Fatalf("explanation must name the accepted rail, got %q", result.Explanation)
	}
}

func TestSmartResolve_TieBreakIsDeterministic(t *testing.T) {
	// Identical in every scored dimension, so the weighted totals tie and
	// the priority values tie too; the source id decides.
	first := namedSource("Wallet A", domain.SourceTypeWallet, 100000, 1)
	second := namedSource("Wallet B", domain.SourceTypeWallet, 100000, 1)
	intent := &domain.Intent{
		Type:     domain.IntentSendMoney,
		Amount:   5000,
		Metadata: domain.IntentMetadata{RecipientWallets: []string{"Wallet A", "Wallet B"}},
	}
	connectors := []domain.Connector{
		connector("Wallet A", domain.ConnectorAvailable, domain.CapabilityPeerTransfer),
		connector("Wallet B", domain.ConnectorAvailable, domain.CapabilityPeerTransfer),
	}

	expected := first.ID
	if second.ID.String() < first.ID.String() {
		expected = second.ID
	}

	// Present in both orders; the outcome must not depend on insertion order.
	for _, sources := range [][]domain.FundingSource{{first, second}, {second, first}} {
		result := SmartResolve(SmartContext{
			Intent:     intent,
			Sources:    sources,
			Connectors: connectors,
		})
		if !result.Success {
			t.Fatalf("expected success, got %+v", result)
		}
		if result.RecommendedRail.SourceID != expected {
			t.Fatalf("tie-break depended on insertion order: got %s", result.RecommendedRail.RailName)
		}
	}
}

func TestSmartResolve_TieOnTotalPrefersLowerPriority(t *testing.T) {
	// Same rails, but the priority sub-score is neutralized by giving both
	// the same priority bucket values and differing only in raw Priority
	// underneath the same stepped score (priority 0 and 1 both score 100).
	first := namedSource("Wallet A", domain.SourceTypeWallet, 100000, 0)
	second := namedSource("Wallet B", domain.SourceTypeWallet, 100000, 1)
	intent := &domain.Intent{
		Type:     domain.IntentSendMoney,
		Amount:   5000,
		Metadata: domain.IntentMetadata{RecipientWallets: []string{"Wallet A", "Wallet B"}},
	}
	result := SmartResolve(SmartContext{
		Intent:  intent,
		Sources: []domain.FundingSource{second, first},
		Connectors: []domain.Connector{
			connector("Wallet A", domain.ConnectorAvailable, domain.CapabilityPeerTransfer),
			connector("Wallet B", domain.ConnectorAvailable, domain.CapabilityPeerTransfer),
		},
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.RecommendedRail.RailName != "Wallet A" {
		t.Fatalf("expected the lower priority value to win the tie, got %s", result.RecommendedRail.RailName)
	}
}

func TestSmartResolve_ShortBalanceYieldsTopUpPlanFromBank(t *testing.T) {
	walletSource := namedSource("OneTap Wallet", domain.SourceTypeWallet, 4000, 1)
	bankSource := namedSource("First Bank", domain.SourceTypeBank, 100000, 4)
	result := SmartResolve(SmartContext{
		Intent:  merchantIntent(5000, "OneTap Wallet"),
		Sources: []domain.FundingSource{walletSource, bankSource},
		Connectors: []domain.Connector{
			connector("OneTap Wallet", domain.ConnectorAvailable, domain.CapabilityMerchantPayment),
		},
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if !result.RequiresTopUp || result.TopUpAmount != 1000 {
		t.Fatalf("expected a 1000 top-up, got %+v", result)
	}
	if result.TopUpSource == nil || *result.TopUpSource != bankSource.ID {
		t.Fatalf("expected the bank as top-up source, got %v", result.TopUpSource)
	}
}

func TestSmartResolve_HistoryShiftsRanking(t *testing.T) {
	walletA := namedSource("Wallet A", domain.SourceTypeWallet, 100000, 1)
	walletB := namedSource("Wallet B", domain.SourceTypeWallet, 100000, 1)
	intent := &domain.Intent{
		Type:     domain.IntentSendMoney,
		Amount:   5000,
		Metadata: domain.IntentMetadata{RecipientWallets: []string{"Wallet A", "Wallet B"}},
	}
	connectors := []domain.Connector{
		connector("Wallet A", domain.ConnectorAvailable, domain.CapabilityPeerTransfer),
		connector("Wallet B", domain.ConnectorAvailable, domain.CapabilityPeerTransfer),
	}

	result := SmartResolve(SmartContext{
		Intent:     intent,
		Sources:    []domain.FundingSource{walletA, walletB},
		Connectors: connectors,
		History:    map[string]int64{"Wallet B": 10},
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.RecommendedRail.RailName != "Wallet B" {
		t.Fatalf("expected history to lift Wallet B, got %s", result.RecommendedRail.RailName)
	}
}
