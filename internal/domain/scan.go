package domain

import (
	"encoding/json"

	"github.com/xela07ax/soc-dashboard/internal/risk"
)

// RiskDecision: вердикт IA-движка по одному хосту в рамках одного скана.
type RiskDecision struct {
	Host        string   `json:"host"`
	RiskLevel   string   `json:"risk_level"`          // Сырой уровень, как пришел из пайплайна
	RiskScore   *float64 `json:"risk_score"`          // nil: значение отсутствует или некорректно
	Timestamp   string   `json:"timestamp,omitempty"` // ISO-8601, опционально
	CVEs        []string `json:"cves"`                // Порядок значим (CVE-таблица)
	ScanID      string   `json:"scan_id,omitempty"`   // Связь со сканом
	Services    []string `json:"services"`            // Только для отображения
	TopFindings []string `json:"top_findings"`        // Только для отображения
}

// Score: числовой риск с подстановкой 0 для отсутствующего значения.
func (d RiskDecision) Score() float64 {
	if d.RiskScore == nil {
		return 0
	}
	return *d.RiskScore
}

func (d *RiskDecision) UnmarshalJSON(data []byte) error {
	*d = RiskDecision{CVEs: []string{}, Services: []string{}, TopFindings: []string{}}
	if !isObject(data) {
		return nil
	}

	var raw struct {
		Host        json.RawMessage `json:"host"`
		RiskLevel   json.RawMessage `json:"risk_level"`
		RiskScore   json.RawMessage `json:"risk_score"`
		Timestamp   json.RawMessage `json:"timestamp"`
		CVEs        json.RawMessage `json:"cves"`
		ScanID      json.RawMessage `json:"scan_id"`
		Services    json.RawMessage `json:"services"`
		TopFindings json.RawMessage `json:"top_findings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Host = coerceString(raw.Host)
	d.RiskLevel = coerceString(raw.RiskLevel)
	d.RiskScore = coerceNumber(raw.RiskScore)
	d.Timestamp = coerceString(raw.Timestamp)
	d.CVEs = coerceStrings(raw.CVEs)
	d.ScanID = coerceString(raw.ScanID)
	d.Services = coerceStrings(raw.Services)
	d.TopFindings = coerceStrings(raw.TopFindings)
	return nil
}

// ResponseAction: запись журнала response engine (block / notify / log).
type ResponseAction struct {
	IP        string `json:"ip"`
	Action    string `json:"action"`
	RiskLevel string `json:"risk_level"`
	Timestamp string `json:"timestamp,omitempty"`
	ScanID    string `json:"scan_id,omitempty"`
	Details   string `json:"details,omitempty"`
}

func (a *ResponseAction) UnmarshalJSON(data []byte) error {
	*a = ResponseAction{}
	if !isObject(data) {
		return nil
	}

	var raw struct {
		IP        json.RawMessage `json:"ip"`
		Host      json.RawMessage `json:"host"`
		Action    json.RawMessage `json:"action"`
		RiskLevel json.RawMessage `json:"risk_level"`
		Timestamp json.RawMessage `json:"timestamp"`
		ScanID    json.RawMessage `json:"scan_id"`
		Details   json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.IP = coerceString(raw.IP)
	if a.IP == "" {
		// responder пишет адрес в поле host
		a.IP = coerceString(raw.Host)
	}
	a.Action = coerceString(raw.Action)
	a.RiskLevel = coerceString(raw.RiskLevel)
	a.Timestamp = coerceString(raw.Timestamp)
	a.ScanID = coerceString(raw.ScanID)
	a.Details = coerceString(raw.Details)
	return nil
}

// ScanHistoryEntry: точка истории сканов. Используется и для трендов,
// и для сопоставления хоста со сканом.
type ScanHistoryEntry struct {
	Host         string   `json:"host,omitempty"`
	ScanID       string   `json:"scan_id,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
	RiskScore    *float64 `json:"risk_score"`
	AverageScore *float64 `json:"average_score,omitempty"` // Снапшот анализатора по всему скану
	HostCount    int      `json:"host_count,omitempty"`
	Critical     int      `json:"critical,omitempty"`
	High         int      `json:"high,omitempty"`
	Medium       int      `json:"medium,omitempty"`
	Low          int      `json:"low,omitempty"`
}

// TrendScore: risk_score, иначе average_score, иначе 0.
func (h ScanHistoryEntry) TrendScore() float64 {
	switch {
	case h.RiskScore != nil:
		return *h.RiskScore
	case h.AverageScore != nil:
		return *h.AverageScore
	default:
		return 0
	}
}

// LevelCounts отдает счетчики по уровням, если запись их содержит.
func (h ScanHistoryEntry) LevelCounts() (risk.Counts, bool) {
	if h.Critical == 0 && h.High == 0 && h.Medium == 0 && h.Low == 0 {
		return nil, false
	}
	return risk.Counts{risk.Critical: h.Critical, risk.High: h.High, risk.Medium: h.Medium, risk.Low: h.Low}, true
}

func (h *ScanHistoryEntry) UnmarshalJSON(data []byte) error {
	*h = ScanHistoryEntry{}
	if !isObject(data) {
		return nil
	}

	var raw struct {
		Host         json.RawMessage `json:"host"`
		ScanID       json.RawMessage `json:"scan_id"`
		Timestamp    json.RawMessage `json:"timestamp"`
		RiskScore    json.RawMessage `json:"risk_score"`
		AverageScore json.RawMessage `json:"average_score"`
		HostCount    json.RawMessage `json:"host_count"`
		Critical     json.RawMessage `json:"critical"`
		High         json.RawMessage `json:"high"`
		Medium       json.RawMessage `json:"medium"`
		Low          json.RawMessage `json:"low"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	h.Host = coerceString(raw.Host)
	h.ScanID = coerceString(raw.ScanID)
	h.Timestamp = coerceString(raw.Timestamp)
	h.RiskScore = coerceNumber(raw.RiskScore)
	h.AverageScore = coerceNumber(raw.AverageScore)
	h.HostCount = coerceInt(raw.HostCount)
	h.Critical = coerceInt(raw.Critical)
	h.High = coerceInt(raw.High)
	h.Medium = coerceInt(raw.Medium)
	h.Low = coerceInt(raw.Low)
	return nil
}

// DecodeDecisions разбирает ресурс "ia decisions".
func DecodeDecisions(data []byte) ([]RiskDecision, error) {
	return decodeCollection(data, func(raw json.RawMessage) RiskDecision {
		var d RiskDecision
		if err := d.UnmarshalJSON(raw); err != nil {
			_ = d.UnmarshalJSON(nil)
		}
		return d
	})
}

// DecodeResponses разбирает ресурс "response actions".
func DecodeResponses(data []byte) ([]ResponseAction, error) {
	return decodeCollection(data, func(raw json.RawMessage) ResponseAction {
		var a ResponseAction
		if err := a.UnmarshalJSON(raw); err != nil {
			a = ResponseAction{}
		}
		return a
	})
}

// DecodeHistory разбирает ресурс "scan history".
func DecodeHistory(data []byte) ([]ScanHistoryEntry, error) {
	return decodeCollection(data, func(raw json.RawMessage) ScanHistoryEntry {
		var h ScanHistoryEntry
		if err := h.UnmarshalJSON(raw); err != nil {
			h = ScanHistoryEntry{}
		}
		return h
	})
}
