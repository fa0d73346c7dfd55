package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config корневая структура конфигурации дашборда.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Loader   LoaderConfig   `mapstructure:"loader"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr возвращает адрес для http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetricsConfig задает отдельный листенер для Prometheus. Пустой addr отключает экспорт.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SourcesConfig задает расположение трех ресурсов: http(s)://... или путь к файлу.
// Пустое значение: сразу встроенный пример.
type SourcesConfig struct {
	IADecisions     string        `mapstructure:"ia_decisions"`
	ResponseActions string        `mapstructure:"response_actions"`
	ScanHistory     string        `mapstructure:"scan_history"`
	Timeout         time.Duration `mapstructure:"timeout"` // Таймаут одного HTTP-запроса
}

// LoaderConfig настраивает загрузчик и защиту сетевых источников.
type LoaderConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`          // На всю загрузку
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 выключает периодическое обновление
	RetryAttempts   uint          `mapstructure:"retry_attempts"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`

	// Настройки Circuit Breaker для сетевых источников
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
}

// RedisConfig описывает подключение к Redis (L2 кэш и Pub/Sub). Пустой addr отключает оба.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig настраивает кэш представлений.
type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`         // Время жизни записи в Redis
	MaxEntries int           `mapstructure:"max_entries"` // Лимит L1 на один снапшот
}

// DatabaseConfig описывает подключение к PostgreSQL. При пустом url журнал пишется в лог.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// JournalConfig настраивает буфер журнала загрузок.
type JournalConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// AuthConfig содержит путь к публичному RSA ключу. Без ключа reload открыт.
type AuthConfig struct {
	PublicKeyPath string        `mapstructure:"public_key_path"`
	Issuer        string        `mapstructure:"issuer"`   // Пусто: iss не проверяется
	Audience      string        `mapstructure:"audience"` // Пусто: aud не проверяется
	Leeway        time.Duration `mapstructure:"leeway"`
	PublicKey     []byte
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// path — явный путь из флага --config (если пусто, ищем config.yaml).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")    // имя файла без расширения
		v.SetConfigType("yaml")      // формат
		v.AddConfigPath(".")         // ищем в корне
		v.AddConfigPath("./configs") // и в папке с конфигами
	}

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: SOURCES_IA_DECISIONS=... перекроет sources.ia_decisions
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ из ENV (для Docker/K8s) или из файла
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

// setDefaults задает значения по умолчанию. Ключ должен быть известен viper,
// иначе AutomaticEnv не подхватит его при Unmarshal, поэтому дефолты есть у всех.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("sources.ia_decisions", "")
	v.SetDefault("sources.response_actions", "")
	v.SetDefault("sources.scan_history", "")
	v.SetDefault("sources.timeout", 5*time.Second)

	v.SetDefault("loader.timeout", 30*time.Second)
	v.SetDefault("loader.refresh_interval", time.Duration(0))
	v.SetDefault("loader.retry_attempts", 3)
	v.SetDefault("loader.rate_limit", 5.0)
	v.SetDefault("loader.rate_burst", 3)
	v.SetDefault("loader.cb_max_requests", 1)
	v.SetDefault("loader.cb_interval", time.Minute)
	v.SetDefault("loader.cb_timeout", 30*time.Second)
	v.SetDefault("loader.cb_failures", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.max_entries", 256)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 1)

	v.SetDefault("journal.buffer_size", 1000)
	v.SetDefault("journal.batch_size", 100)
	v.SetDefault("journal.flush_interval", 1*time.Second)

	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "socdash")
	v.SetDefault("auth.leeway", 30*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource читает ключ прямо из ENV (PEM) или из файла по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
