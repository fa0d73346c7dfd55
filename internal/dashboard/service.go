package dashboard

/*
Пакет dashboard держит текущий снапшот данных и строит по нему представления.

Снапшот заменяется целиком (RW-lock на указатель), поэтому читатели никогда
не видят частично обновленные коллекции. Представления кэшируются по паре
(fingerprint снапшота, scan id): новый снапшот с другими данными никогда не
попадет в старую запись кэша.
*/

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/aggregate"
	"github.com/xela07ax/soc-dashboard/internal/cache"
	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/engine"
	"github.com/xela07ax/soc-dashboard/internal/loader"
	"github.com/xela07ax/soc-dashboard/internal/risk"
)

// Триггеры перезагрузки (журнал и метрики).
const (
	TriggerStartup   = "startup"
	TriggerAPI       = "api"
	TriggerBroadcast = "broadcast"
	TriggerTicker    = "ticker"
	TriggerReconnect = "reconnect"
)

// SnapshotLoader отдает снапшоты (loader.Loader).
type SnapshotLoader interface {
	Load(ctx context.Context, trigger string) *loader.Snapshot
}

// Broadcaster рассылает сигнал перезагрузки остальным инстансам.
type Broadcaster interface {
	Broadcast(ctx context.Context) error
}

type Service struct {
	mu   sync.RWMutex
	snap  *loader.Snapshot    // nil, пока первая загрузка не завершилась
	scans map[string]struct{} // scan id истории снапшота: только они попадают в кэш

	reloadMu sync.Mutex // Перезагрузки выполняются по одной

	loader      SnapshotLoader
	cache       *cache.Memo
	broadcaster Broadcaster // nil для одиночного инстанса
	metrics     *engine.Metrics
	logger      *zap.Logger
}

func NewService(l SnapshotLoader, memo *cache.Memo, metrics *engine.Metrics, logger *zap.Logger) *Service {
	return &Service{
		loader:  l,
		cache:   memo,
		metrics: metrics,
		logger:  logger.Named("dashboard"),
	}
}

// WithBroadcaster включает рассылку сигнала перезагрузки.
func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.broadcaster = b
	return s
}

// Snapshot возвращает текущий снапшот (nil до завершения первой загрузки).
func (s *Service) Snapshot() *loader.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Loading истинно, пока первая загрузка не завершилась.
func (s *Service) Loading() bool {
	return s.Snapshot() == nil
}

// Reload загружает новый снапшот и атомарно подменяет текущий.
func (s *Service) Reload(ctx context.Context, trigger string) *loader.Snapshot {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap := s.loader.Load(ctx, trigger)
	scanIDs := aggregate.ScanIDs(snap.History)
	known := make(map[string]struct{}, len(scanIDs))
	for _, id := range scanIDs {
		known[id] = struct{}{}
	}

	s.mu.Lock()
	prev := s.snap
	s.snap = snap
	s.scans = known
	s.mu.Unlock()

	status := "ok"
	switch {
	case snap.Err != nil:
		status = "failed"
	case snap.UsingSamples:
		status = "degraded"
	}
	s.metrics.ReloadTotal.WithLabelValues(trigger, status).Inc()

	// Старые записи кэша больше не достижимы: ключ содержит fingerprint
	purged := s.cache.Purge(snap.Fingerprint)

	changed := prev == nil || prev.Fingerprint != snap.Fingerprint
	if changed {
		scans := append([]string{aggregate.AllScans}, scanIDs...)
		s.cache.Warmup(ctx, snap.Fingerprint, scans, func(scanID string) domain.DashboardView {
			return s.build(snap, scanID)
		})
	}

	s.logger.Info("snapshot swapped",
		zap.String("trigger", trigger),
		zap.String("fingerprint", snap.Fingerprint),
		zap.Bool("changed", changed),
		zap.Int("purged", purged),
		zap.String("status", status),
	)
	return snap
}

// RequestReload перезагружает данные по запросу оператора: локально и на всех инстансах.
// Отключение клиента не прерывает загрузку: время ограничивает loader.timeout.
func (s *Service) RequestReload(ctx context.Context) *loader.Snapshot {
	ctx = context.WithoutCancel(ctx)
	snap := s.Reload(ctx, TriggerAPI)
	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(ctx); err != nil {
			s.logger.Warn("reload broadcast failed", zap.Error(err))
		}
	}
	return snap
}

// Run периодически перезагружает данные до отмены контекста. interval <= 0 выключает тикер.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reload(ctx, TriggerTicker)
		}
	}
}

// NormalizeScan: пустой выбор означает "все сканы".
func NormalizeScan(scanID string) string {
	scanID = strings.TrimSpace(scanID)
	if scanID == "" {
		return aggregate.AllScans
	}
	return scanID
}

// View строит представление дашборда для выбранного скана.
func (s *Service) View(ctx context.Context, scanID string) domain.DashboardView {
	scanID = NormalizeScan(scanID)
	s.mu.RLock()
	snap, scans := s.snap, s.scans
	s.mu.RUnlock()
	if snap == nil {
		view := emptyView(scanID)
		view.Loading = true
		return view
	}

	var view domain.DashboardView
	if _, known := scans[scanID]; known || scanID == aggregate.AllScans {
		view = s.cache.Get(ctx, snap.Fingerprint, scanID, func() domain.DashboardView {
			return s.build(snap, scanID)
		})
	} else {
		// Неизвестный скан дает пустое представление; в L1/L2 его не кладем
		view = s.build(snap, scanID)
	}

	// Состояние загрузки относится к снапшоту, а не к данным: в кэш не попадает
	view.ScanID = scanID
	view.Loading = false
	view.UsingSamples = snap.UsingSamples
	view.Error = snap.ErrorMessage()
	view.Warnings = snap.Warnings()
	view.Origins = snap.OriginsView()
	loadedAt := snap.LoadedAt
	view.LoadedAt = &loadedAt
	return view
}

// build вычисляет данные представления (без полей состояния).
func (s *Service) build(snap *loader.Snapshot, scanID string) domain.DashboardView {
	started := time.Now()
	defer func() {
		s.metrics.AggregationDuration.Observe(time.Since(started).Seconds())
	}()

	f := aggregate.FilterBySelectedScan(scanID, snap.Decisions, snap.Responses, snap.History)

	return domain.DashboardView{
		ScanID:       scanID,
		Warnings:     make([]string, 0),
		Origins:      make(map[string]domain.Origin),
		Decisions:    f.Decisions,
		Responses:    f.Responses,
		History:      f.History,
		Aggregates:   f.Aggregates,
		Summary:      aggregate.Summarize(f.Decisions, f.Responses),
		Distribution: risk.Distribution(f.Aggregates.ByLevel),
		Trend:        aggregate.Trend(f.History),
		// Селектор сканов всегда строится по полной истории
		Scans: domain.ScanIndex{
			Scans:  aggregate.ScanIDs(snap.History),
			Lookup: aggregate.BuildScanLookup(snap.History),
		},
	}
}

func emptyView(scanID string) domain.DashboardView {
	aggregates := aggregate.Compute(nil, nil)
	return domain.DashboardView{
		ScanID:       scanID,
		Warnings:     make([]string, 0),
		Origins:      make(map[string]domain.Origin),
		Decisions:    make([]domain.RiskDecision, 0),
		Responses:    make([]domain.ResponseAction, 0),
		History:      make([]domain.ScanHistoryEntry, 0),
		Aggregates:   aggregates,
		Distribution: risk.Distribution(aggregates.ByLevel),
		Trend:        make([]domain.TrendPoint, 0),
		Scans: domain.ScanIndex{
			Scans:  make([]string, 0),
			Lookup: make(map[string]string),
		},
	}
}
