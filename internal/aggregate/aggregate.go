package aggregate

/*
Пакет aggregate — ядро дашборда. Превращает три независимых коллекции
(решения IA по хостам, журнал response engine, история сканов) в производные
модели представления.

Все функции чистые: не держат состояния, не мутируют входные слайсы,
не возвращают ошибок. Любое отсутствие данных деградирует до нейтрального
значения (0, пустая строка, исключение из производного набора).
*/

import (
	"math"
	"sort"
	"time"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/risk"
)

// AllScans — сентинел "без фильтра по скану".
const AllScans = "all"

// Compute строит AggregateView по решениям и истории.
func Compute(decisions []domain.RiskDecision, history []domain.ScanHistoryEntry) domain.AggregateView {
	view := domain.AggregateView{
		ByLevel:  risk.NewCounts(),
		CveTable: make([]domain.CveRow, 0),
	}

	var sum float64
	var latest time.Time
	var haveLatest bool

	track := func(raw string) {
		t, ok := ParseTimestamp(raw)
		if !ok {
			return
		}
		if !haveLatest || t.After(latest) {
			latest, haveLatest = t, true
		}
	}

	for _, d := range decisions {
		// 1. Счетчики по уровням: нераспознанный уровень просто не попадает в корзину
		if lvl, ok := risk.Parse(d.RiskLevel); ok {
			view.ByLevel[lvl]++
		}

		// 2. Сумма для среднего (отсутствующий score = 0, запись не отбрасывается)
		sum += d.Score()

		// 3. Плоская CVE-таблица в исходном порядке
		for _, cve := range d.CVEs {
			view.CveTable = append(view.CveTable, domain.CveRow{
				Host:      d.Host,
				RiskLevel: d.RiskLevel,
				RiskScore: d.RiskScore,
				CVE:       cve,
				Timestamp: d.Timestamp,
			})
		}

		track(d.Timestamp)
	}

	for _, h := range history {
		track(h.Timestamp)
	}

	if len(decisions) > 0 {
		view.AvgScore = roundHalfUp(sum / float64(len(decisions)))
	}
	if haveLatest {
		view.LastUpdated = FormatTimestamp(latest)
	}

	return view
}

// roundHalfUp — округление к ближайшему, .5 вверх (как Math.round на фронте).
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Filtered результат фильтрации по скану.
type Filtered struct {
	Decisions  []domain.RiskDecision
	Responses  []domain.ResponseAction
	History    []domain.ScanHistoryEntry
	Aggregates domain.AggregateView
}

// FilterBySelectedScan оставляет записи выбранного скана.
//
// Запись попадает в выборку, если ее scan_id совпадает с выбранным, либо (fallback)
// если ее хост закреплен за этим сканом в истории. Закрепление берется из
// BuildScanLookup, поэтому хост принадлежит ровно одному скану и фильтр
// согласован с аннотацией в таблице.
//
// Для AllScans (и пустой строки) коллекции возвращаются как есть.
func FilterBySelectedScan(
	scanID string,
	decisions []domain.RiskDecision,
	responses []domain.ResponseAction,
	history []domain.ScanHistoryEntry,
) Filtered {
	if scanID == AllScans || scanID == "" {
		return Filtered{
			Decisions:  decisions,
			Responses:  responses,
			History:    history,
			Aggregates: Compute(decisions, history),
		}
	}

	hosts := HostsOfScan(scanID, history)

	fd := make([]domain.RiskDecision, 0)
	for _, d := range decisions {
		if d.ScanID == scanID || member(hosts, d.Host) {
			fd = append(fd, d)
		}
	}

	fr := make([]domain.ResponseAction, 0)
	for _, r := range responses {
		if r.ScanID == scanID || member(hosts, r.IP) {
			fr = append(fr, r)
		}
	}

	fh := make([]domain.ScanHistoryEntry, 0)
	for _, h := range history {
		if h.ScanID == scanID {
			fh = append(fh, h)
		}
	}

	return Filtered{
		Decisions:  fd,
		Responses:  fr,
		History:    fh,
		Aggregates: Compute(fd, fh),
	}
}

func member(set map[string]struct{}, host string) bool {
	if host == "" {
		return false
	}
	_, ok := set[host]
	return ok
}

// HostsOfScan собирает хосты, закрепленные за сканом (по правилу last-write-wins).
func HostsOfScan(scanID string, history []domain.ScanHistoryEntry) map[string]struct{} {
	hosts := make(map[string]struct{})
	for host, sid := range BuildScanLookup(history) {
		if sid == scanID {
			hosts[host] = struct{}{}
		}
	}
	return hosts
}

// BuildScanLookup строит host → scan_id. Более поздние записи истории
// перекрывают ранние (порядок входа определяет приоритет).
func BuildScanLookup(history []domain.ScanHistoryEntry) map[string]string {
	lookup := make(map[string]string)
	for _, h := range history {
		if h.Host == "" {
			continue
		}
		lookup[h.Host] = h.ScanID
	}
	return lookup
}

// ScanIDs возвращает уникальные scan_id истории в порядке первого появления.
func ScanIDs(history []domain.ScanHistoryEntry) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, h := range history {
		if h.ScanID == "" {
			continue
		}
		if _, ok := seen[h.ScanID]; ok {
			continue
		}
		seen[h.ScanID] = struct{}{}
		ids = append(ids, h.ScanID)
	}
	return ids
}

// Summarize считает KPI-карточки.
func Summarize(decisions []domain.RiskDecision, responses []domain.ResponseAction) domain.Summary {
	unique := make(map[string]struct{})
	severe := 0
	for _, d := range decisions {
		if d.Host != "" {
			unique[d.Host] = struct{}{}
		}
		if lvl, ok := risk.Parse(d.RiskLevel); ok && lvl.IsSevere() {
			severe++
		}
	}
	return domain.Summary{
		TotalHosts:       len(decisions),
		UniqueHosts:      len(unique),
		HighAndCritical:  severe,
		ActionsTriggered: len(responses),
	}
}

// Trend возвращает точки истории по возрастанию времени. Сортировка стабильная,
// записи без валидной метки уходят в конец в исходном порядке.
func Trend(history []domain.ScanHistoryEntry) []domain.TrendPoint {
	type point struct {
		domain.TrendPoint
		at    int64
		valid bool
	}

	points := make([]point, 0, len(history))
	for _, h := range history {
		p := point{TrendPoint: domain.TrendPoint{
			ScanID:    h.ScanID,
			Host:      h.Host,
			Timestamp: h.Timestamp,
			RiskScore: h.TrendScore(),
			HostCount: h.HostCount,
		}}
		if levels, ok := h.LevelCounts(); ok {
			p.Levels = levels
		}
		if t, ok := ParseTimestamp(h.Timestamp); ok {
			p.at, p.valid = t.UnixNano(), true
		}
		points = append(points, p)
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].valid != points[j].valid {
			return points[i].valid
		}
		return points[i].valid && points[i].at < points[j].at
	})

	result := make([]domain.TrendPoint, 0, len(points))
	for _, p := range points {
		result = append(result, p.TrendPoint)
	}
	return result
}
