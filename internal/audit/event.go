package audit

import "time"

// LoadEvent — запись журнала о разрешении одного ресурса при загрузке снапшота.
type LoadEvent struct {
	ID          string    `json:"id"`          // UUID события
	LoadID      string    `json:"load_id"`     // Сквозной ID загрузки (один на три ресурса)
	Trigger     string    `json:"trigger"`     // startup, api, broadcast, ticker
	Resource    string    `json:"resource"`    // ia_decisions, response_actions, scan_history
	Origin      string    `json:"origin"`      // remote, file, sample
	Source      string    `json:"source"`      // URL, путь или bundle:<resource>
	Bytes       int       `json:"bytes"`       // Размер сырого ответа
	Records     int       `json:"records"`     // Сколько записей разобрано
	Fingerprint string    `json:"fingerprint"` // Отпечаток всего снапшота
	Error       string    `json:"error"`       // Причина fallback (пусто — без ошибок)
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}
