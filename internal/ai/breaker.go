package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
)

type extractResult struct {
	content string
	raw     []byte
}

// BreakerClient stops calling the provider after repeated outages and
// fails fast with ErrUnavailable until the cooldown elapses.
type BreakerClient struct {
	next    Client
	breaker *gobreaker.CircuitBreaker[extractResult]
}

// StateObserver receives breaker transitions as 0 closed, 1 half-open, 2 open.
type StateObserver func(name string, state int)

// NewBreakerClient оборачивает клиента в circuit breaker.
func NewBreakerClient(next Client, name string, failures int, cooldown time.Duration, observers ...StateObserver) *BreakerClient {
	if failures <= 0 {
		failures = 1
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return !isProviderFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("ai circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			for _, observe := range observers {
				observe(name, int(to))
			}
		},
	}

	return &BreakerClient{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[extractResult](settings),
	}
}

// Extract вызывает провайдера через circuit breaker.
func (c *BreakerClient) Extract(ctx context.Context, systemPrompt, userPrompt string, doc Document) (string, []byte, error) {
	result, err := c.breaker.Execute(func() (extractResult, error) {
		content, raw, err := c.next.Extract(ctx, systemPrompt, userPrompt, doc)
		return extractResult{content: content, raw: raw}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return result.content, result.raw, err
}

func isProviderFailure(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
