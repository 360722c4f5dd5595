package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests calls were seen.
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Breaker fails fast while a backend keeps failing.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	next Summarizer
}

func WithBreaker(cfg BreakerConfig, next Summarizer, log *slog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		// Malformed output and caller cancellation say nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrMalformedOutput)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state is changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &Breaker{
		cb:   gobreaker.NewCircuitBreaker(settings),
		next: next,
	}
}

func (b *Breaker) Summarize(ctx context.Context, input Input) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Summarize(ctx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}

		return "", err
	}

	summary, _ := out.(string)

	return summary, nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
