package railconnector

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func noSleep(ctx context.Context, d time.Duration) error {
	return nil
}

func TestSimulator_ZeroFailureRateAlwaysSucceeds(t *testing.T) {
	sim := NewSimulator(WithFailureRate(0), WithSleepFunc(noSleep))
	for i := 0; i < 100; i++ {
		result, err := sim.Execute(context.Background(), ExecuteRequest{Rail: "OneTap Wallet", Action: "charge", Amount: 1000})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Succeeded || result.Reason != ReasonNone {
			t.Fatalf("call %d failed unexpectedly: %+v", i, result)
		}
		if result.Reference == "" {
			t.Fatal("every call must carry a reference")
		}
	}
}

func TestSimulator_FullFailureRateAlwaysFailsWithTypedReason(t *testing.T) {
	sim := NewSimulator(WithFailureRate(1), WithSleepFunc(noSleep), WithRandSource(rand.NewSource(7)))
	for i := 0; i < 100; i++ {
		result, err := sim.Execute(context.Background(), ExecuteRequest{Rail: "First Bank", Action: "top_up", Amount: 1000})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Succeeded {
			t.Fatalf("call %d succeeded despite a full failure rate", i)
		}
		switch result.Reason {
		case ReasonRailUnavailable, ReasonDeclined:
		default:
			t.Fatalf("call %d carries an unknown reason %q", i, result.Reason)
		}
		if result.Message == "" {
			t.Fatalf("call %d has no failure message", i)
		}
	}
}

func TestSimulator_DeterministicWithSeededSource(t *testing.T) {
	run := func() []bool {
		sim := NewSimulator(WithFailureRate(0.5), WithSleepFunc(noSleep), WithRandSource(rand.NewSource(42)))
		outcomes := make([]bool, 0, 50)
		for i := 0; i < 50; i++ {
			result, err := sim.Execute(context.Background(), ExecuteRequest{Rail: "Rail", Action: "charge"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			outcomes = append(outcomes, result.Succeeded)
		}
		return outcomes
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("outcome %d differs between seeded runs", i)
		}
	}
}

func TestSimulator_CancelledContextAbortsCall(t *testing.T) {
	sim := NewSimulator(WithFailureRate(0), WithLatencyRange(time.Second, 2*time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sim.Execute(ctx, ExecuteRequest{Rail: "Rail", Action: "charge"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
