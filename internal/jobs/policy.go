package jobs

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxRetryDelay caps a single retry wait.
const maxRetryDelay = 12 * time.Hour

// RetryPolicy describes exponential backoff for failed analysis jobs.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

// DefaultRetryPolicy retries three times after 2s, 4s and 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, Multiplier: 2}
}

// Delay is the wait before retry n (0-based): BaseDelay * Multiplier^n.
func (p RetryPolicy) Delay(n int) time.Duration {
	bo := p.backOff()
	d := bo.NextBackOff()
	for i := 0; i < n; i++ {
		d = bo.NextBackOff()
	}
	return d
}

// Schedule lists the delays of every retry.
func (p RetryPolicy) Schedule() []time.Duration {
	out := make([]time.Duration, 0, max(p.MaxRetries, 0))
	bo := p.backOff()
	for i := 0; i < p.MaxRetries; i++ {
		out = append(out, bo.NextBackOff())
	}
	return out
}

// backOff is a jitter-free exponential sequence starting at BaseDelay.
func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = max(p.Multiplier, 1)
	bo.MaxInterval = maxRetryDelay
	bo.Reset()
	return bo
}
