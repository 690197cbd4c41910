package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/iago/review-radar-back/internal/http/handlers"
	"github.com/iago/review-radar-back/internal/http/middleware"
	"go.uber.org/zap"
)

type RouterDependencies struct {
	API         *handlers.API
	Logger      *zap.Logger
	CORSOrigins []string
}

// NewRouter serves every route both at the root and under /api.
func NewRouter(deps RouterDependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Trace(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           600,
	}))

	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	mountRoutes(router, deps.API)
	router.Route("/api", func(api chi.Router) {
		api.NotFound(handlers.NotFound)
		api.MethodNotAllowed(handlers.MethodNotAllowed)
		mountRoutes(api, deps.API)
	})

	return router
}

func mountRoutes(router chi.Router, api *handlers.API) {
	router.Get("/health", api.Health)
	router.Get("/ready", api.Ready)
	router.Post("/analyze", api.Analyze)
	router.Get("/analysis/{id}", api.GetAnalysis)
	router.Get("/analysis/{id}/status", api.AnalysisStatus)
	router.Get("/analyses/recent", api.RecentAnalyses)
}
