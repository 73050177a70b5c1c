package embedder

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Circuit breaker settings for remote providers.
const (
	breakerMinRequests    = 3
	breakerFailureRatio   = 0.6
	breakerOpenTimeout    = 30 * time.Second
	breakerHalfOpenProbes = 1
)

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker[[]*Embedding] {
	if logger == nil {
		logger = zap.NewNop()
	}

	return gobreaker.NewCircuitBreaker[[]*Embedding](gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerHalfOpenProbes,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// A rejected request says nothing about provider health.
			var p *permanentError
			return err == nil || errors.As(err, &p)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding provider circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
