package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/soc-dashboard/internal/audit"
	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/source"
)

// Resolver — политика разрешения одного ресурса (source.Fallback).
type Resolver interface {
	Resolve(ctx context.Context) (source.Payload, error)
}

// Loader параллельно загружает три ресурса и собирает Snapshot.
// Загрузка никогда не завершается ошибкой: сбой источника означает fallback
// этого ресурса на пример, сбой всей пачки дает Snapshot.Err и примеры для всех ресурсов.
type Loader struct {
	resolvers map[source.Resource]Resolver
	recorder  audit.Recorder
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func New(
	decisions, responses, history Resolver,
	recorder audit.Recorder,
	timeout time.Duration,
	logger *zap.Logger,
) *Loader {
	return &Loader{
		resolvers: map[source.Resource]Resolver{
			source.ResourceDecisions: decisions,
			source.ResourceResponses: responses,
			source.ResourceHistory:   history,
		},
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.Named("loader"),
		now:      time.Now,
	}
}

// Load выполняет одну загрузку. trigger попадает в журнал (startup, api, ticker...).
func (l *Loader) Load(ctx context.Context, trigger string) *Snapshot {
	loadID := uuid.NewString()
	logger := l.logger.With(zap.String("load_id", loadID), zap.String("trigger", trigger))

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	// 1. Параллельное разрешение ресурсов, каждый независимо: ошибка одного
	// не отменяет остальные (errgroup без общего контекста)
	payloads := make([]source.Payload, len(source.Resources))
	errs := make([]error, len(source.Resources))
	var g errgroup.Group
	for i, res := range source.Resources {
		i := i
		resolver := l.resolvers[res]
		g.Go(func() error {
			payloads[i], errs[i] = resolver.Resolve(ctx)
			return nil
		})
	}
	_ = g.Wait()

	// 2. Ресурс, который не удалось разрешить даже примером, заменяется примером здесь
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		logger.Warn("resource resolve failed, using bundled sample",
			zap.String("resource", string(source.Resources[i])), zap.Error(err))
		payloads[i] = samplePayloads(err)[i]
	}

	// Провал пачки: не ответил ни один ресурс, либо время загрузки вышло
	// и ни один первичный источник не успел. Тогда примеры целиком и Err
	var batchErr error
	switch {
	case failed == len(source.Resources):
		batchErr = fmt.Errorf("load batch: %w", errors.Join(errs...))
	case ctx.Err() != nil && allSamples(payloads):
		batchErr = fmt.Errorf("load batch: %w", context.Cause(ctx))
	}
	if batchErr != nil {
		logger.Error("data load failed, falling back to bundled samples", zap.Error(batchErr))
		payloads = samplePayloads(batchErr)
	}

	// 3. Сборка снапшота
	snap := l.assemble(payloads)
	snap.LoadID = loadID
	snap.Trigger = trigger
	snap.Err = batchErr

	l.journal(snap, payloads)

	logger.Info("snapshot loaded",
		zap.String("fingerprint", snap.Fingerprint),
		zap.Bool("using_samples", snap.UsingSamples),
		zap.Int("decisions", len(snap.Decisions)),
		zap.Int("responses", len(snap.Responses)),
		zap.Int("history", len(snap.History)),
	)
	return snap
}

// samplePayloads — встроенные примеры для всех ресурсов.
func samplePayloads(cause error) []source.Payload {
	payloads := make([]source.Payload, 0, len(source.Resources))
	for _, res := range source.Resources {
		raw, err := source.Sample(res)
		if err != nil {
			raw = []byte("[]")
		}
		payloads = append(payloads, source.Payload{
			Resource: res,
			Raw:      raw,
			Origin:   domain.OriginSample,
			Source:   "bundle:" + string(res),
			Cause:    cause,
		})
	}
	return payloads
}

func allSamples(payloads []source.Payload) bool {
	for _, p := range payloads {
		if p.Origin != domain.OriginSample {
			return false
		}
	}
	return true
}

func (l *Loader) assemble(payloads []source.Payload) *Snapshot {
	snap := &Snapshot{
		Decisions: make([]domain.RiskDecision, 0),
		Responses: make([]domain.ResponseAction, 0),
		History:   make([]domain.ScanHistoryEntry, 0),
		Origins:   make(map[string]domain.Origin, len(payloads)),
		LoadedAt:  l.now().UTC(),
	}

	digest := xxhash.New()
	for i := range payloads {
		p := &payloads[i]

		if err := decodeInto(snap, p); err != nil {
			// Первичный источник прошел json.Valid, но не разобрался — уходим на пример
			l.logger.Warn("payload decode failed, using bundled sample",
				zap.String("resource", string(p.Resource)), zap.Error(err))
			*p = samplePayloads(err)[indexOf(p.Resource)]
			_ = decodeInto(snap, p)
		}

		if p.Cause != nil {
			snap.Fallbacks = multierror.Append(snap.Fallbacks, fmt.Errorf("%s: %w", p.Resource, p.Cause))
		}
		snap.Origins[string(p.Resource)] = p.Origin
		if p.Origin == domain.OriginSample {
			snap.UsingSamples = true
		}

		_, _ = digest.WriteString(string(p.Resource))
		_, _ = digest.Write([]byte{0})
		_, _ = digest.Write(p.Raw)
		_, _ = digest.Write([]byte{0})
	}
	snap.Fingerprint = fmt.Sprintf("%016x", digest.Sum64())

	return snap
}

func decodeInto(snap *Snapshot, p *source.Payload) error {
	switch p.Resource {
	case source.ResourceDecisions:
		d, err := domain.DecodeDecisions(p.Raw)
		if err != nil {
			return err
		}
		snap.Decisions = d
	case source.ResourceResponses:
		r, err := domain.DecodeResponses(p.Raw)
		if err != nil {
			return err
		}
		snap.Responses = r
	case source.ResourceHistory:
		h, err := domain.DecodeHistory(p.Raw)
		if err != nil {
			return err
		}
		snap.History = h
	default:
		return fmt.Errorf("unknown resource %q", p.Resource)
	}
	return nil
}

func indexOf(res source.Resource) int {
	for i, r := range source.Resources {
		if r == res {
			return i
		}
	}
	return 0
}

func (l *Loader) journal(snap *Snapshot, payloads []source.Payload) {
	if l.recorder == nil {
		return
	}
	for _, p := range payloads {
		event := audit.LoadEvent{
			ID:          uuid.NewString(),
			LoadID:      snap.LoadID,
			Trigger:     snap.Trigger,
			Resource:    string(p.Resource),
			Origin:      string(p.Origin),
			Source:      p.Source,
			Bytes:       len(p.Raw),
			Records:     records(snap, p.Resource),
			Fingerprint: snap.Fingerprint,
			DurationMs:  p.Duration.Milliseconds(),
			Timestamp:   snap.LoadedAt,
		}
		if p.Cause != nil {
			event.Error = p.Cause.Error()
		}
		l.recorder.Record(event)
	}
}

func records(snap *Snapshot, res source.Resource) int {
	switch res {
	case source.ResourceDecisions:
		return len(snap.Decisions)
	case source.ResourceResponses:
		return len(snap.Responses)
	case source.ResourceHistory:
		return len(snap.History)
	}
	return 0
}
