package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/console/handler"
	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/engine"
	"github.com/xela07ax/soc-dashboard/internal/infra/auth"
)

type ConsoleServer struct {
	router  *chi.Mux
	logger  *zap.Logger
	metrics *engine.Metrics

	// Проверка токенов (RS256). nil — reload не защищен (локальный режим)
	authValidator auth.TokenValidator

	dashHandler *handler.DashboardHandler // /api/v1/dashboard
}

// NewConsoleServer инициализирует API дашборда со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	metrics *engine.Metrics,
	validator auth.TokenValidator,
	dashH *handler.DashboardHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		metrics:       metrics,
		authValidator: validator,
		dashHandler:   dashH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(engine.AccessLog(s.logger, s.metrics))
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (чтение) ---
	r.Get("/health", s.dashHandler.Health)

	r.Route("/api/v1/dashboard", func(r chi.Router) {
		r.Get("/", s.dashHandler.GetDashboard)
		r.Get("/aggregates", s.dashHandler.GetAggregates)
		r.Get("/cves", s.dashHandler.GetCves)
		r.Get("/hosts", s.dashHandler.GetHosts)
		r.Get("/responses", s.dashHandler.GetResponses)
		r.Get("/history", s.dashHandler.GetHistory)
		r.Get("/trend", s.dashHandler.GetTrend)
		r.Get("/summary", s.dashHandler.GetSummary)
		r.Get("/scans", s.dashHandler.GetScans)

		// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (RS256 токен со scope dashboard.reload) ---
		r.Group(func(r chi.Router) {
			if s.authValidator != nil {
				r.Use(auth.NewMiddleware(s.authValidator, s.logger))
				r.Use(auth.RequireScope(domain.ScopeReload, s.logger))
			} else {
				s.logger.Warn("auth public key not configured: reload endpoint is unprotected")
			}
			r.Post("/reload", s.dashHandler.Reload)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
