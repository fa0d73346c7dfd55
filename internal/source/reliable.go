package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/engine"
)

// ReliabilityConfig — параметры защиты сетевого источника.
type ReliabilityConfig struct {
	Attempts       uint          // Попыток на одну загрузку (включая первую)
	AttemptTimeout time.Duration // Таймаут одной попытки
	RateLimit      float64       // Запросов в секунду к источнику
	RateBurst      int
	CBMaxRequests  uint32        // Пробных запросов в half-open
	CBInterval     time.Duration // Окно сброса счетчиков в closed
	CBTimeout      time.Duration // Через сколько open пробует закрыться
	CBFailures     uint32        // Подряд ошибок до размыкания
}

// ReliableSource оборачивает источник: rate limiter → circuit breaker → retry.
type ReliableSource struct {
	next           DataSource
	cb             *gobreaker.CircuitBreaker
	limiter        *rate.Limiter
	attempts       uint
	attemptTimeout time.Duration
	logger         *zap.Logger
}

func NewReliableSource(next DataSource, cfg ReliabilityConfig, metrics *engine.Metrics, logger *zap.Logger) *ReliableSource {
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.CBFailures == 0 {
		cfg.CBFailures = 5
	}

	name := next.Describe()
	logger = logger.Named("reliable-source").With(zap.String("source", name))

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CBFailures
		},
		// 404 и битый JSON — не сбой канала, предохранитель на них не реагирует
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return &ReliableSource{
		next:           next,
		cb:             cb,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		attempts:       cfg.Attempts,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         logger,
	}
}

func (s *ReliableSource) Fetch(ctx context.Context) ([]byte, error) {
	// 1. Rate Limiter
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	result, err := s.cb.Execute(func() (interface{}, error) {
		var data []byte

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(s.attempts),
			retry.LastErrorOnly(true),
			retry.RetryIf(isRetryable),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Сервер сам назвал паузу (Retry-After)
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
			retry.OnRetry(func(n uint, err error) {
				s.logger.Debug("source fetch retry", zap.Uint("attempt", n+1), zap.Error(err))
			}),
		)

		retryErr := r.Do(func() error {
			attemptCtx := ctx
			if s.attemptTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
				defer cancel()
			}

			var fetchErr error
			data, fetchErr = s.next.Fetch(attemptCtx)
			return fetchErr
		})

		return data, retryErr
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

func (s *ReliableSource) Describe() string      { return s.next.Describe() }
func (s *ReliableSource) Origin() domain.Origin { return s.next.Origin() }

// State — текущее состояние предохранителя (для health и тестов).
func (s *ReliableSource) State() gobreaker.State {
	return s.cb.State()
}
