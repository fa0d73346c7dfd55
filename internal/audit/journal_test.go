package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/soc-dashboard/internal/engine"
)

type memStorage struct {
	mu      sync.Mutex
	batches [][]LoadEvent
	err     error
}

func (m *memStorage) WriteBatch(_ context.Context, events []LoadEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]LoadEvent, len(events))
	copy(cp, events)
	m.batches = append(m.batches, cp)
	return m.err
}

func (m *memStorage) events() []LoadEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []LoadEvent
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

func newTestJournal(t *testing.T, repo StorageInterface, cfg JournalConfig) *Journal {
	return NewJournal(repo, cfg, engine.NewMetrics(nil), zaptest.NewLogger(t))
}

func TestJournal_DrainOnStop(t *testing.T) {
	repo := &memStorage{}
	j := newTestJournal(t, repo, JournalConfig{FlushInterval: time.Hour})
	j.Start()

	for i := 0; i < 25; i++ {
		j.Record(LoadEvent{ID: fmt.Sprintf("ev-%d", i), Resource: "ia_decisions"})
	}
	j.Stop()

	got := repo.events()
	require.Len(t, got, 25)
	assert.Equal(t, "ev-0", got[0].ID)
	assert.Equal(t, "ev-24", got[24].ID)
	for _, e := range got {
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestJournal_FlushByBatchSize(t *testing.T) {
	repo := &memStorage{}
	j := newTestJournal(t, repo, JournalConfig{BatchSize: 3, FlushInterval: time.Hour})
	j.Start()
	defer j.Stop()

	for i := 0; i < 3; i++ {
		j.Record(LoadEvent{ID: fmt.Sprintf("ev-%d", i)})
	}

	assert.Eventually(t, func() bool { return len(repo.events()) == 3 }, time.Second, 10*time.Millisecond)
}

func TestJournal_FlushByTicker(t *testing.T) {
	repo := &memStorage{}
	j := newTestJournal(t, repo, JournalConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	j.Start()
	defer j.Stop()

	j.Record(LoadEvent{ID: "lonely"})

	assert.Eventually(t, func() bool { return len(repo.events()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestJournal_RecordAfterStop(t *testing.T) {
	repo := &memStorage{}
	j := newTestJournal(t, repo, JournalConfig{})
	j.Start()
	j.Stop()

	assert.NotPanics(t, func() { j.Record(LoadEvent{ID: "late"}) })
	assert.NotPanics(t, j.Stop)
	assert.Empty(t, repo.events())
}

func TestJournal_Overflow(t *testing.T) {
	repo := &memStorage{}
	j := newTestJournal(t, repo, JournalConfig{BufferSize: 2, FlushInterval: time.Hour})

	// Воркер еще не запущен: лишние события отбрасываются, Record не блокируется
	for i := 0; i < 5; i++ {
		j.Record(LoadEvent{ID: fmt.Sprintf("ev-%d", i)})
	}
	j.Start()
	j.Stop()

	assert.Len(t, repo.events(), 2)
}

func TestJournal_StorageErrorIsNotFatal(t *testing.T) {
	repo := &memStorage{err: errors.New("db down")}
	j := newTestJournal(t, repo, JournalConfig{})
	j.Start()

	j.Record(LoadEvent{ID: "ev"})
	j.Stop()

	assert.Len(t, repo.events(), 1)
}

func TestLogStorage_WriteBatch(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogStorage(zap.New(core))

	err := s.WriteBatch(context.Background(), []LoadEvent{
		{ID: "1", Resource: "ia_decisions", Origin: "remote"},
		{ID: "2", Resource: "scan_history", Origin: "sample", Error: "status 503"},
	})

	require.NoError(t, err)
	entries := logs.FilterMessage("resource loaded").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "sample", entries[1].ContextMap()["origin"])
	assert.Equal(t, "status 503", entries[1].ContextMap()["error"])
}
