package retry

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy holds the backoff parameters for retried operations. A Policy is
// immutable once constructed; NewPolicy validates every field.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	JitterFraction  float64
}

// NewPolicy validates the parameters and returns a Policy.
func NewPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, exponentialBase, jitterFraction float64) (Policy, error) {
	p := Policy{
		MaxAttempts:     maxAttempts,
		BaseDelay:       baseDelay,
		MaxDelay:        maxDelay,
		ExponentialBase: exponentialBase,
		JitterFraction:  jitterFraction,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// TransactionDefaults returns the backoff preset used for chain submission.
func TransactionDefaults() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		JitterFraction:  0.25,
	}
}

// Validate checks every numeric field of the policy.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("maxAttempts must be greater than 0, got %d", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("baseDelay must be greater than 0, got %v", p.BaseDelay)
	}
	if p.MaxDelay <= 0 {
		return fmt.Errorf("maxDelay must be greater than 0, got %v", p.MaxDelay)
	}
	if p.ExponentialBase <= 0 {
		return fmt.Errorf("exponentialBase must be greater than 0, got %v", p.ExponentialBase)
	}
	if p.JitterFraction < 0 || p.JitterFraction >= 1 {
		return fmt.Errorf("jitterFraction must be in [0,1), got %v", p.JitterFraction)
	}
	return nil
}

// Delay computes the backoff before the attempt following attempt n. Attempt
// numbering starts at 1. The exponential term saturates at MaxDelay before
// jitter is added, and MaxDelay stays a hard ceiling afterwards.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	delay += delay * p.JitterFraction * rand.Float64()
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}
