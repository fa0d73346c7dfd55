package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/engine"
)

const reloadSignalPrefix = "reload:"

// RedisBroadcaster публикует сигнал "reload:<instance_id>" в канал Pub/Sub.
type RedisBroadcaster struct {
	rdb        redis.Cmdable
	channel    string
	instanceID string
}

func NewRedisBroadcaster(rdb redis.Cmdable, channel, instanceID string) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: channel, instanceID: instanceID}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context) error {
	if err := b.rdb.Publish(ctx, b.channel, reloadSignalPrefix+b.instanceID).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// ParseReloadSignal разбирает "reload:<instance_id>".
func ParseReloadSignal(payload string) (string, bool) {
	if !strings.HasPrefix(payload, reloadSignalPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(payload, reloadSignalPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}

// Listen подписывается на сигналы перезагрузки других инстансов.
// Блокирует до отмены контекста.
func (s *Service) Listen(ctx context.Context, sub engine.Subscriber, channel, instanceID string) {
	logger := s.logger.With(zap.String("chan", channel))
	connected := false

	engine.ListenResilient(ctx, sub, logger, channel,
		func() error {
			// Первая подписка совпадает со стартом; после разрыва сигналы могли потеряться
			if connected {
				s.Reload(ctx, TriggerReconnect)
			}
			connected = true
			return nil
		},
		s.handleSignal(ctx, instanceID),
	)
}

func (s *Service) handleSignal(ctx context.Context, instanceID string) func(payload string) {
	return func(payload string) {
		from, ok := ParseReloadSignal(payload)
		if !ok {
			s.logger.Error("invalid signal format", zap.String("payload", payload))
			return
		}
		if from == instanceID {
			return // Свой сигнал: локальная перезагрузка уже выполнена
		}
		s.logger.Info("reload requested by peer", zap.String("peer", from))
		s.Reload(ctx, TriggerBroadcast)
	}
}
