// Package retry provides exponential-backoff retry for model calls.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"appbuilder/pkg/agent/llmerrors"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts   int           `yaml:"max_attempts" json:"max_attempts"`     // including the first call
	InitialDelay  time.Duration `yaml:"initial_delay" json:"initial_delay"`   // before the first retry
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`           // cap on any single wait
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"` // growth per retry
	Jitter        bool          `yaml:"jitter" json:"jitter"`                 // +/-10% randomization
}

// DefaultConfig provides the defaults used when no retry block is configured.
//
//nolint:gochecknoglobals // default config pattern
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  time.Second,
	MaxDelay:      30 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Classifier determines whether an error should be retried.
type Classifier func(error) bool

// ShouldRetry is the default classifier. Classified model errors decide for
// themselves; caller cancellation and unclassified errors are final.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Policy pairs a Config with a Classifier.
type Policy struct {
	Classifier Classifier
	Config     Config
}

// NewPolicy creates a policy; a nil classifier means ShouldRetry. Non-positive
// attempt counts are raised to one.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Policy{Config: config, Classifier: classifier}
}

// CalculateDelay returns the wait before the given attempt; attempt 1 never waits.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := time.Duration(float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2)))
	if p.Config.MaxDelay > 0 && delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}
	if p.Config.Jitter && delay > 0 {
		spread := float64(delay) * 0.1
		delay += time.Duration(spread * (2*rand.Float64() - 1)) //nolint:gosec // jitter needs no crypto randomness
	}
	return delay
}

// ShouldRetry applies the policy's classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
