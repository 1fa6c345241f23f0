/**
 * @description
 * A simulated connector used wherever real rail connectivity is absent. It
 * resolves every call within bounded latency (100-500ms by default) and fails
 * a configurable fraction of calls (~5% by default) with a typed reason.
 *
 * @notes
 * - The random source and sleep function are injectable so tests can drive
 *   deterministic success and failure without waiting on timers.
 */
package railconnector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Simulator implements Client with random latency and failures.
type Simulator struct {
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithFailureRate overrides the default 5% failure rate.
func WithFailureRate(rate float64) SimulatorOption {
	return func(s *Simulator) {
		if rate >= 0 && rate <= 1 {
			s.failureRate = rate
		}
	}
}

// WithLatencyRange overrides the default 100-500ms latency window.
func WithLatencyRange(min, max time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if min >= 0 && max >= min {
			s.minLatency = min
			s.maxLatency = max
		}
	}
}

// WithRandSource makes the simulator deterministic for tests.
func WithRandSource(src rand.Source) SimulatorOption {
	return func(s *Simulator) {
		s.rng = rand.New(src)
	}
}

// WithSleepFunc replaces the latency sleep, letting tests skip it.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) SimulatorOption {
	return func(s *Simulator) {
		s.sleep = fn
	}
}

// NewSimulator creates a simulator with the default failure and latency
// profile.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		failureRate: 0.05,
		minLatency:  100 * time.Millisecond,
		maxLatency:  500 * time.Millisecond,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepWithContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute resolves the call after simulated latency. Failed calls carry a
// typed reason; the split between unavailability and declines is weighted
// toward unavailability, matching what real rails report most often.
func (s *Simulator) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	s.mu.Lock()
	latency := s.minLatency
	if s.maxLatency > s.minLatency {
		latency += time.Duration(s.rng.Int63n(int64(s.maxLatency - s.minLatency)))
	}
	roll := s.rng.Float64()
	reasonRoll := s.rng.Float64()
	s.mu.Unlock()

	if err := s.sleep(ctx, latency); err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("sim_%s_%d", req.Action, time.Now().UnixNano())
	if roll < s.failureRate {
		reason := ReasonRailUnavailable
		message := fmt.Sprintf("rail %s is unavailable", req.Rail)
		if reasonRoll < 0.3 {
			reason = ReasonDeclined
			message = fmt.Sprintf("rail %s declined the %s", req.Rail, req.Action)
		}
		return &ExecuteResult{
			Succeeded: false,
			Reference: reference,
			Reason:    reason,
			Message:   message,
		}, nil
	}

	return &ExecuteResult{Succeeded: true, Reference: reference}, nil
}
