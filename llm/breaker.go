// Package llm holds generation helpers shared by every model provider.
package llm

import (
	"context"
	"errors"
	"log/slog"

	gobreaker "github.com/sony/gobreaker/v2"

	"canteenadvisor"
)

// BreakerCompleter fails fast while its backend keeps failing. It does not retry.
type BreakerCompleter struct {
	next canteenadvisor.Completer
	cb   *gobreaker.CircuitBreaker[string]
}

// NewBreakerCompleter wraps next in a circuit breaker named name.
func NewBreakerCompleter(name string, next canteenadvisor.Completer, cfg canteenadvisor.BreakerConfig) *BreakerCompleter {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about backend health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("LLM_CLIENT: Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerCompleter{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[string](settings),
	}
}

func (b *BreakerCompleter) Complete(ctx context.Context, messages []canteenadvisor.Message) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.next.Complete(ctx, messages)
	})
}

// State reports the breaker state, mainly for diagnostics.
func (b *BreakerCompleter) State() gobreaker.State {
	return b.cb.State()
}
