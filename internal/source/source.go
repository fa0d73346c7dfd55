package source

/*
Пакет source отвечает за получение сырых JSON-ресурсов дашборда.

Источник данных — абстракция DataSource с несколькими реализациями:
- RemoteSource — HTTP API (или статика за веб-сервером);
- FileSource — локальные файлы аудита пайплайна;
- BundleSource — примеры, вшитые в бинарник.

Выбор между ними делает политика Fallback: сначала первичный источник,
при любой ошибке — встроенный пример. Надежность сетевого источника
(rate limit, retry, circuit breaker) добавляется декоратором ReliableSource.
*/

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/engine"
)

// Resource имя одного из трех ресурсов дашборда.
type Resource string

const (
	ResourceDecisions Resource = "ia_decisions"
	ResourceResponses Resource = "response_actions"
	ResourceHistory   Resource = "scan_history"
)

// Resources: порядок ресурсов фиксирован (от него зависит fingerprint снапшота).
var Resources = []Resource{ResourceDecisions, ResourceResponses, ResourceHistory}

// DataSource — поставщик сырого JSON одного ресурса.
type DataSource interface {
	Fetch(ctx context.Context) ([]byte, error)
	Describe() string
	Origin() domain.Origin
}

// Options содержит общие зависимости для сборки источников.
type Options struct {
	HTTPClient  *http.Client
	Timeout     time.Duration      // Таймаут одного HTTP-запроса
	Reliability *ReliabilityConfig // nil: сетевой источник без обертки
	Metrics     *engine.Metrics
	Logger      *zap.Logger
}

// New собирает политику Fallback для ресурса по строке location:
// http(s)://... — RemoteSource, непустой путь — FileSource, пусто — только примеры.
func New(resource Resource, location string, opts Options) *Fallback {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = engine.NewMetrics(nil)
	}

	var primary DataSource
	location = strings.TrimSpace(location)
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: opts.Timeout}
		}
		primary = NewRemoteSource(location, client)
		if opts.Reliability != nil {
			primary = NewReliableSource(primary, *opts.Reliability, opts.Metrics, opts.Logger)
		}
	case location != "":
		primary = NewFileSource(location)
	}

	return NewFallback(resource, primary, NewBundleSource(resource), opts.Metrics, opts.Logger)
}
