package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "socdash"
)

// Ключи (кэш представлений)
const (
	RedisKeyViewPrefix = RedisNamespace + ":view:"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanDashboardReload: сигнал всем инстансам перечитать источники.
	RedisChanDashboardReload = RedisNamespace + ":dashboard:reload"
)

// ViewKey: ключ L2-кэша для представления снапшота по скану.
func ViewKey(fingerprint, scanID string) string {
	return fmt.Sprintf("%s%s:%s", RedisKeyViewPrefix, fingerprint, scanID)
}

// WarmupLockKey: блокировка прогрева L2 для снапшота.
func WarmupLockKey(fingerprint string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, fingerprint)
}
