package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscriber: часть redis.Client, нужная слушателю.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// ListenResilient: универсальный цикл для "живучей" подписки на сигналы Redis.
// Обрабатывает переподключения и логирование; разбор сообщения — забота onMessage.
func ListenResilient(
	ctx context.Context,
	rdb Subscriber,
	logger *zap.Logger,
	channel string,
	onReconnect func() error, // Callback для синхронизации при (пере)подключении
	onMessage func(payload string), // Callback для обработки сообщения
) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}

		// Вызываем синхронизацию при каждом успешном коннекте: сигналы,
		// пропущенные за время разрыва, не доставляются повторно
		if onReconnect != nil {
			if err := onReconnect(); err != nil {
				logger.Error("sync failed on reconnect", zap.Error(err))
			}
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				onMessage(msg.Payload)
			}
		}

		pubsub.Close()
		logger.Warn("subscription lost, reconnecting", zap.String("chan", channel))
		if !sleepCtx(ctx, 1*time.Second) {
			return
		}
	}
}

// sleepCtx ждет d или отмены контекста. false — контекст отменен.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
