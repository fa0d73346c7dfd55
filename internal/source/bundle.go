package source

import (
	"context"
	"embed"
	"fmt"

	"github.com/xela07ax/soc-dashboard/internal/domain"
)

//go:embed samples/*.json
var samples embed.FS

// Sample возвращает встроенный пример ресурса.
func Sample(resource Resource) ([]byte, error) {
	data, err := samples.ReadFile("samples/" + string(resource) + ".json")
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", resource, err)
	}
	return data, nil
}

// BundleSource отдает встроенный пример. Сеть и диск не используются.
type BundleSource struct {
	resource Resource
}

func NewBundleSource(resource Resource) *BundleSource {
	return &BundleSource{resource: resource}
}

// Fetch не смотрит на контекст: чтение из бинарника не блокируется, а пример
// должен оставаться доступным, когда первичный источник упал по таймауту.
func (s *BundleSource) Fetch(context.Context) ([]byte, error) {
	return Sample(s.resource)
}

func (s *BundleSource) Describe() string      { return "bundle:" + string(s.resource) }
func (s *BundleSource) Origin() domain.Origin { return domain.OriginSample }
