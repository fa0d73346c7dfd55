package audit

/*
Файл journal.go реализует журнал загрузок — асинхронную запись LoadEvent
в хранилище (PostgreSQL или структурный лог).

- Non-blocking: загрузчик отдает событие в буферизованный канал и не ждет БД.
  При переполнении событие сбрасывается в лог (Load Shedding).
- Batching: события копятся и пишутся пачкой по таймеру или по размеру пачки.
- Drain: Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/engine"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []LoadEvent) error
}

type Recorder interface {
	Record(event LoadEvent)
}

// JournalConfig: размеры буфера и частота сброса.
type JournalConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Journal struct {
	ch      chan LoadEvent
	repo    StorageInterface
	cfg     JournalConfig
	metrics *engine.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup

	// closeMu защищает закрытие канала от конкурентного Record
	closeMu sync.RWMutex
	closed  bool
}

func NewJournal(repo StorageInterface, cfg JournalConfig, metrics *engine.Metrics, logger *zap.Logger) *Journal {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Journal{
		ch:      make(chan LoadEvent, cfg.BufferSize),
		repo:    repo,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.Named("journal"),
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (j *Journal) Stop() {
	j.closeMu.Lock()
	if j.closed {
		j.closeMu.Unlock()
		return
	}
	j.closed = true
	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	j.closeMu.Unlock()

	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

func (j *Journal) Record(event LoadEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	j.closeMu.RLock()
	defer j.closeMu.RUnlock()

	if j.closed {
		j.logger.Warn("load event dropped: journal is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case j.ch <- event:
		j.metrics.JournalBufferFill.Set(float64(len(j.ch)))
	default:
		// Буфер переполнен (Backpressure): событие уходит хотя бы в лог
		j.logger.Error("journal_buffer_overflow",
			zap.String("load_id", event.LoadID),
			zap.String("resource", event.Resource),
			zap.String("origin", event.Origin),
		)
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]LoadEvent, 0, j.cfg.BatchSize)
	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: к моменту финального flush контекст приложения уже отменен
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := j.repo.WriteBatch(ctx, batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		j.metrics.JournalBufferFill.Set(float64(len(j.ch)))
	}

	for {
		select {
		case event, ok := <-j.ch:
			if !ok {
				// Канал закрыт в Stop(): все, что было в очереди, уже вычитано
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= j.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
