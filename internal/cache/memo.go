package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/engine"
	"github.com/xela07ax/soc-dashboard/internal/infra"
)

// ComputeFunc строит представление, если его нет ни в L1, ни в L2.
type ComputeFunc func() domain.DashboardView

// Memo: кэш представлений, ключ (fingerprint снапшота, scan id).
// L1: память процесса, L2 (опционально) — Redis.
// Возвращаемые представления общие для всех читателей: их нельзя модифицировать.
type Memo struct {
	mu    sync.RWMutex
	views map[string]*domain.DashboardView // "fingerprint\x00scan" -> view
	order []string                         // Порядок вставки для вытеснения (FIFO)

	group      singleflight.Group
	maxEntries int

	store   ViewStore // nil: только L1
	ttl     time.Duration
	metrics *engine.Metrics
	logger  *zap.Logger
}

func NewMemo(store ViewStore, ttl time.Duration, maxEntries int, metrics *engine.Metrics, logger *zap.Logger) *Memo {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Memo{
		views:      make(map[string]*domain.DashboardView),
		maxEntries: maxEntries,
		store:      store,
		ttl:        ttl,
		metrics:    metrics,
		logger:     logger.Named("view-cache"),
	}
}

func memoKey(fingerprint, scanID string) string {
	return fingerprint + "\x00" + scanID
}

// Get отдает представление из L1, затем из L2, иначе вычисляет его.
// Одновременные промахи по одному ключу вычисляются один раз.
func (m *Memo) Get(ctx context.Context, fingerprint, scanID string, compute ComputeFunc) domain.DashboardView {
	key := memoKey(fingerprint, scanID)

	// 1. L1 (Hot Path)
	m.mu.RLock()
	view, ok := m.views[key]
	m.mu.RUnlock()
	if ok {
		m.metrics.CacheLookups.WithLabelValues("l1", "hit").Inc()
		return *view
	}
	m.metrics.CacheLookups.WithLabelValues("l1", "miss").Inc()

	v, _, _ := m.group.Do(key, func() (interface{}, error) {
		// 2. L2
		if cached, ok := m.fromStore(ctx, fingerprint, scanID); ok {
			m.put(key, cached)
			return cached, nil
		}

		// 3. Вычисление
		computed := compute()
		m.put(key, &computed)
		m.toStore(ctx, fingerprint, scanID, &computed)
		return &computed, nil
	})
	return *v.(*domain.DashboardView)
}

func (m *Memo) put(key string, view *domain.DashboardView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.views[key]; ok {
		m.views[key] = view
		return
	}
	// Сверх лимита вытесняем самую старую запись
	for len(m.views) >= m.maxEntries && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.views, oldest)
	}
	m.views[key] = view
	m.order = append(m.order, key)
}

func (m *Memo) fromStore(ctx context.Context, fingerprint, scanID string) (*domain.DashboardView, bool) {
	if m.store == nil {
		return nil, false
	}
	data, err := m.store.Get(ctx, infra.ViewKey(fingerprint, scanID))
	if errors.Is(err, ErrMiss) {
		m.metrics.CacheLookups.WithLabelValues("l2", "miss").Inc()
		return nil, false
	}
	if err != nil {
		m.metrics.CacheLookups.WithLabelValues("l2", "error").Inc()
		m.logger.Warn("l2 read failed, recomputing", zap.Error(err))
		return nil, false
	}

	var view domain.DashboardView
	if err := json.Unmarshal(data, &view); err != nil {
		m.metrics.CacheLookups.WithLabelValues("l2", "error").Inc()
		m.logger.Warn("l2 entry corrupted, recomputing", zap.Error(err))
		return nil, false
	}
	m.metrics.CacheLookups.WithLabelValues("l2", "hit").Inc()
	return &view, true
}

func (m *Memo) toStore(ctx context.Context, fingerprint, scanID string, view *domain.DashboardView) {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		m.logger.Warn("view marshal failed", zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, infra.ViewKey(fingerprint, scanID), data, m.ttl); err != nil {
		m.logger.Warn("l2 write failed", zap.Error(err))
	}
}

// Purge удаляет из L1 все записи, кроме записей снапшота keep. Возвращает число удаленных.
// В L2 устаревшие записи доживают свой TTL.
func (m *Memo) Purge(keep string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	prefix := keep + "\x00"
	kept := m.order[:0]
	for _, key := range m.order {
		if strings.HasPrefix(key, prefix) {
			kept = append(kept, key)
			continue
		}
		delete(m.views, key)
		removed++
	}
	m.order = kept
	return removed
}

// Len: число записей в L1.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.views)
}

// Warmup прогревает кэш нового снапшота для перечисленных сканов.
// L1 греется всегда; в L2 пишет только инстанс, захвативший блокировку (SetNX).
func (m *Memo) Warmup(ctx context.Context, fingerprint string, scanIDs []string, compute func(scanID string) domain.DashboardView) {
	writeL2 := false
	if m.store != nil {
		ok, err := m.store.TryLock(ctx, infra.WarmupLockKey(fingerprint), 30*time.Second)
		if err != nil {
			m.logger.Warn("warm-up lock failed, warming L1 only", zap.Error(err))
		}
		writeL2 = ok
	}

	for _, scanID := range scanIDs {
		key := memoKey(fingerprint, scanID)
		m.mu.RLock()
		_, cached := m.views[key]
		m.mu.RUnlock()
		if cached {
			continue
		}

		view := compute(scanID)
		m.put(key, &view)
		if writeL2 {
			m.toStore(ctx, fingerprint, scanID, &view)
		}
	}

	m.logger.Debug("view cache warmed",
		zap.String("fingerprint", fingerprint), zap.Int("scans", len(scanIDs)), zap.Bool("l2", writeL2))
}
