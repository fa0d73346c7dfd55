package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogStorage пишет события в структурный лог. Используется, когда БД не настроена.
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	return &LogStorage{logger: logger.Named("load-journal")}
}

func (s *LogStorage) WriteBatch(_ context.Context, events []LoadEvent) error {
	for _, e := range events {
		s.logger.Info("resource loaded",
			zap.String("id", e.ID),
			zap.String("load_id", e.LoadID),
			zap.String("trigger", e.Trigger),
			zap.String("resource", e.Resource),
			zap.String("origin", e.Origin),
			zap.String("source", e.Source),
			zap.Int("bytes", e.Bytes),
			zap.Int("records", e.Records),
			zap.String("fingerprint", e.Fingerprint),
			zap.String("error", e.Error),
			zap.Int64("duration_ms", e.DurationMs),
			zap.Time("timestamp", e.Timestamp),
		)
	}
	return nil
}
