package domain

import (
	"time"

	"github.com/xela07ax/soc-dashboard/internal/risk"
)

// CveRow: одна строка CVE-таблицы: пара (решение × CVE).
type CveRow struct {
	Host      string   `json:"host"`
	RiskLevel string   `json:"risk_level"`
	RiskScore *float64 `json:"risk_score"`
	CVE       string   `json:"cve"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// AggregateView: производная модель для презентационного слоя.
// Поля и их имена фиксированы контрактом с фронтендом.
type AggregateView struct {
	ByLevel     risk.Counts `json:"byLevel"`
	AvgScore    int         `json:"avgScore"`
	LastUpdated string      `json:"lastUpdated,omitempty"` // Пусто, если нет ни одной валидной метки времени
	CveTable    []CveRow    `json:"cveTable"`
}

// Summary: KPI-карточки дашборда.
type Summary struct {
	TotalHosts       int `json:"total_hosts"`
	UniqueHosts      int `json:"unique_hosts"`
	HighAndCritical  int `json:"high_and_critical"`
	ActionsTriggered int `json:"actions_triggered"`
}

// TrendPoint точка графика "risk timeline".
type TrendPoint struct {
	ScanID    string  `json:"scan_id,omitempty"`
	Host      string  `json:"host,omitempty"`
	Timestamp string  `json:"timestamp"`
	RiskScore float64 `json:"risk_score"`

	// Серии по уровням из снапшота анализатора (nil, если запись их не несет)
	Levels    risk.Counts `json:"levels,omitempty"`
	HostCount int         `json:"host_count,omitempty"`
}

// ScanIndex: список сканов для селектора и аннотация host → scan_id.
type ScanIndex struct {
	Scans  []string          `json:"scans"`
	Lookup map[string]string `json:"scan_lookup"`
}

// Origin: откуда фактически пришли данные ресурса.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginFile   Origin = "file"
	OriginSample Origin = "sample" // Встроенные примеры (fallback)
)

// DashboardView: полный ответ /api/v1/dashboard для выбранного скана.
type DashboardView struct {
	ScanID       string            `json:"scan_id"`
	Loading      bool              `json:"loading"`
	UsingSamples bool              `json:"using_samples"`
	Error        string            `json:"error,omitempty"`
	Warnings     []string          `json:"warnings"`
	Origins      map[string]Origin `json:"origins"`
	LoadedAt     *time.Time        `json:"loaded_at,omitempty"`

	Decisions []RiskDecision     `json:"decisions"`
	Responses []ResponseAction   `json:"responses"`
	History   []ScanHistoryEntry `json:"history"`

	Aggregates   AggregateView `json:"aggregates"`
	Summary      Summary       `json:"summary"`
	Distribution []risk.Share  `json:"distribution"`
	Trend        []TrendPoint  `json:"trend"`
	Scans        ScanIndex     `json:"scans"`
}
