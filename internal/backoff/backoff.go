// Package backoff implements the exponential backoff used by the disk
// provider when a block read fails transiently, with jitter applied to
// spread retries across concurrently reading controllers.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// jitterFraction is the fraction of the computed delay randomized away from
// it in either direction, following the teacher's polling-interval jitter
// (proxy/stream/buffer/coordinator_m3u8.go): "±10% to prevent thundering
// herd" applied there to HLS poll intervals, here to read retries.
const jitterFraction = 0.10

// Strategy doubles its delay on every call to Next, capped at max. A zero
// max means "never cap" — Next always returns initial, jittered.
type Strategy struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// New creates a Strategy starting at initial and capped at max.
func New(initial, max time.Duration) *Strategy {
	return &Strategy{initial: initial, max: max, current: initial}
}

// Next returns the delay to wait before the next retry and advances state.
// The returned delay is jittered ±jitterFraction around the computed value
// so that many controllers backing off at once don't retry in lockstep.
func (s *Strategy) Next() time.Duration {
	if s.max == 0 {
		return jitter(s.initial)
	}

	current := s.current
	s.current *= 2
	if s.current > s.max {
		s.current = s.max
	}
	return jitter(current)
}

// jitter scales d by a random factor in [1-jitterFraction, 1+jitterFraction].
func jitter(d time.Duration) time.Duration {
	factor := 1 - jitterFraction + 2*jitterFraction*rand.Float64()
	return time.Duration(float64(d) * factor)
}

// Sleep waits for Next() or until ctx is done, whichever comes first.
func (s *Strategy) Sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.Next()):
	}
}

// Reset returns the strategy to its initial delay.
func (s *Strategy) Reset() {
	if s.max > 0 {
		s.current = s.initial
	}
}
