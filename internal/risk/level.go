package risk

import (
	"math"
	"strings"
)

// Level: порядковая классификация риска хоста.
type Level string

const (
	Low      Level = "low"
	Medium   Level = "medium"
	High     Level = "high"
	Critical Level = "critical"
)

// Levels перечисляет уровни в порядке отображения (от самого опасного).
var Levels = []Level{Critical, High, Medium, Low}

// Parse приводит сырое значение к одному из четырех уровней без учета регистра.
// Пробелы не отбрасываются: " high " не распознается, как и в исходных данных дашборда.
// Пустые и нераспознанные значения возвращают ok == false.
func Parse(raw string) (Level, bool) {
	switch Level(strings.ToLower(raw)) {
	case Low:
		return Low, true
	case Medium:
		return Medium, true
	case High:
		return High, true
	case Critical:
		return Critical, true
	default:
		return "", false
	}
}

// IsSevere: high или critical (KPI "критичные/высокие").
func (l Level) IsSevere() bool {
	return l == High || l == Critical
}

// Counts: счетчики по уровням. Ключи всегда ровно четыре.
type Counts map[Level]int

// NewCounts создает счетчики, проинициализированные нулями.
func NewCounts() Counts {
	return Counts{Low: 0, Medium: 0, High: 0, Critical: 0}
}

// Total: сумма по всем уровням.
func (c Counts) Total() int {
	total := 0
	for _, lvl := range Levels {
		total += c[lvl]
	}
	return total
}

// Share: доля уровня в распределении.
type Share struct {
	Level   Level `json:"level"`
	Count   int   `json:"count"`
	Percent int   `json:"percent"`
}

// Distribution считает процент хостов на каждом уровне (для donut-графика).
// Порядок — Levels; при нулевом итоге все проценты равны 0.
func Distribution(c Counts) []Share {
	total := c.Total()
	shares := make([]Share, 0, len(Levels))
	for _, lvl := range Levels {
		pct := 0
		if total > 0 {
			pct = int(math.Floor(float64(c[lvl])/float64(total)*100 + 0.5))
		}
		shares = append(shares, Share{Level: lvl, Count: c[lvl], Percent: pct})
	}
	return shares
}
