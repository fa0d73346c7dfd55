package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/engine"
)

// Payload: результат разрешения ресурса.
type Payload struct {
	Resource Resource
	Raw      []byte
	Origin   domain.Origin
	Source   string        // Describe() источника, отдавшего данные
	Cause    error         // Почему ушли на пример (nil — первичный источник отработал)
	Duration time.Duration // Сколько заняло разрешение целиком
}

// Fallback: политика "первичный источник, иначе встроенный пример".
type Fallback struct {
	resource Resource
	primary  DataSource // nil: первичного источника нет
	bundle   DataSource
	metrics  *engine.Metrics
	logger   *zap.Logger
}

func NewFallback(resource Resource, primary, bundle DataSource, metrics *engine.Metrics, logger *zap.Logger) *Fallback {
	return &Fallback{
		resource: resource,
		primary:  primary,
		bundle:   bundle,
		metrics:  metrics,
		logger:   logger.Named("source").With(zap.String("resource", string(resource))),
	}
}

func (f *Fallback) Resource() Resource { return f.resource }

// Resolve отдает данные первичного источника, а при ошибке или невалидном JSON —
// встроенный пример. Ошибка возвращается, только если не прочитался и пример.
func (f *Fallback) Resolve(ctx context.Context) (Payload, error) {
	started := time.Now()

	var cause error
	if f.primary != nil {
		raw, err := f.fetchPrimary(ctx)
		if err == nil {
			f.observe(f.primary.Origin())
			return Payload{
				Resource: f.resource,
				Raw:      raw,
				Origin:   f.primary.Origin(),
				Source:   f.primary.Describe(),
				Duration: time.Since(started),
			}, nil
		}
		cause = err
		f.logger.Warn("primary source failed, using bundled sample",
			zap.String("source", f.primary.Describe()), zap.Error(err))
	} else {
		cause = fmt.Errorf("no primary source configured")
	}

	raw, err := f.bundle.Fetch(ctx)
	if err != nil {
		return Payload{}, fmt.Errorf("resolve %s: %w", f.resource, err)
	}
	f.observe(domain.OriginSample)

	return Payload{
		Resource: f.resource,
		Raw:      raw,
		Origin:   domain.OriginSample,
		Source:   f.bundle.Describe(),
		Cause:    cause,
		Duration: time.Since(started),
	}, nil
}

func (f *Fallback) fetchPrimary(ctx context.Context) ([]byte, error) {
	started := time.Now()
	raw, err := f.primary.Fetch(ctx)
	if err == nil && !json.Valid(raw) {
		err = fmt.Errorf("%s: %w", f.primary.Describe(), ErrInvalidPayload)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	f.metrics.SourceFetchDuration.WithLabelValues(string(f.resource), status).Observe(time.Since(started).Seconds())
	return raw, err
}

func (f *Fallback) observe(origin domain.Origin) {
	f.metrics.SourceFetchTotal.WithLabelValues(string(f.resource), string(origin)).Inc()
	fallback := 0.0
	if origin == domain.OriginSample {
		fallback = 1
	}
	f.metrics.SourceFallback.WithLabelValues(string(f.resource)).Set(fallback)
}
