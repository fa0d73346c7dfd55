package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/loader"
)

// DashboardService Описываем, что нам нужно от сервиса
type DashboardService interface {
	View(ctx context.Context, scanID string) domain.DashboardView
	RequestReload(ctx context.Context) *loader.Snapshot
	Loading() bool
}

type DashboardHandler struct {
	service DashboardService
	logger  *zap.Logger
}

func NewDashboardHandler(s DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, logger: logger.Named("dashboard-handler")}
}

// view — представление для ?scan= (пусто или "all" — без фильтра).
func (h *DashboardHandler) view(r *http.Request) domain.DashboardView {
	return h.service.View(r.Context(), r.URL.Query().Get("scan"))
}

func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view(r))
}

func (h *DashboardHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view(r).Aggregates)
}

func (h *DashboardHandler) GetCves(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view(r).Aggregates.CveTable)
}

func (h *DashboardHandler) GetHosts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view(r).Decisions)
}

func (h *DashboardHandler) GetResponses(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view(r).Responses)
}

func (h *DashboardHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view(r).History)
}

func (h *DashboardHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view(r).Trend)
}

// GetSummary — KPI-карточки и распределение по уровням.
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	v := h.view(r)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":      v.Summary,
		"distribution": v.Distribution,
	})
}

func (h *DashboardHandler) GetScans(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.View(r.Context(), "").Scans)
}

type reloadResponse struct {
	Status       string    `json:"status"`
	LoadID       string    `json:"load_id"`
	Fingerprint  string    `json:"fingerprint"`
	UsingSamples bool      `json:"using_samples"`
	Error        string    `json:"error,omitempty"`
	Warnings     []string  `json:"warnings"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// Reload перечитывает источники на этом инстансе и рассылает сигнал остальным.
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	snap := h.service.RequestReload(r.Context())

	status := "reloaded"
	if snap.Err != nil {
		status = "fallback"
	}
	h.writeJSON(w, http.StatusOK, reloadResponse{
		Status:       status,
		LoadID:       snap.LoadID,
		Fingerprint:  snap.Fingerprint,
		UsingSamples: snap.UsingSamples,
		Error:        snap.ErrorMessage(),
		Warnings:     snap.Warnings(),
		LoadedAt:     snap.LoadedAt,
	})
}

func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"loading": h.service.Loading(),
	})
}

func (h *DashboardHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("response encode failed", zap.Error(err))
	}
}
