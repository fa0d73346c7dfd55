package loader

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/source"
)

// Snapshot: неизменяемый результат одной загрузки. После публикации
// никто не модифицирует ни его поля, ни слайсы.
type Snapshot struct {
	LoadID  string
	Trigger string

	Decisions []domain.RiskDecision
	Responses []domain.ResponseAction
	History   []domain.ScanHistoryEntry

	Origins      map[string]domain.Origin
	UsingSamples bool

	// Fallbacks: причины, по которым ресурсы ушли на примеры
	Fallbacks *multierror.Error
	// Err: провал загрузки целиком (все три ресурса заменены примерами)
	Err error

	Fingerprint string
	LoadedAt    time.Time
}

// Warnings: причины fallback в виде строк (пустой слайс, если их нет).
func (s *Snapshot) Warnings() []string {
	warnings := make([]string, 0)
	if s == nil || s.Fallbacks == nil {
		return warnings
	}
	for _, err := range s.Fallbacks.Errors {
		warnings = append(warnings, err.Error())
	}
	return warnings
}

// ErrorMessage: текст ошибки для презентационного слоя.
func (s *Snapshot) ErrorMessage() string {
	if s == nil || s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// OriginsView: копия карты источников (Snapshot остается неизменяемым).
func (s *Snapshot) OriginsView() map[string]domain.Origin {
	origins := make(map[string]domain.Origin, len(source.Resources))
	if s == nil {
		return origins
	}
	for k, v := range s.Origins {
		origins[k] = v
	}
	return origins
}
