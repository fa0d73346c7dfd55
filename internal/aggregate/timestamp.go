package aggregate

import (
	"strings"
	"time"
)

// CanonicalLayout — ISO-8601 instant в UTC с миллисекундами.
const CanonicalLayout = "2006-01-02T15:04:05.000Z"

// Форматы, которые реально пишет пайплайн: isoformat() питона (с офсетом и без),
// "Z"-формат IA-движка, а также даты без времени.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp разбирает метку времени; наивные значения трактуются как UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp приводит момент времени к каноническому виду.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(CanonicalLayout)
}
