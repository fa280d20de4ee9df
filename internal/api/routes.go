package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/content-signals/internal/pkg/httputil"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", httputil.OwnerHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Route("/taxonomy", func(r chi.Router) {
			r.Get("/", h.GetTaxonomy)
			r.Get("/count", h.GetTaxonomyCount)
			r.Get("/stats", h.GetTaxonomyStats)
			r.Get("/debug", h.GetTaxonomyDebug)
			r.Post("/reload", h.ReloadTaxonomy)
		})

		r.Post("/classify", h.Classify)
		r.Post("/classify/bulk", h.ClassifyBulk)
		r.Get("/classifications", h.GetClassification)

		r.Route("/attribution", func(r chi.Router) {
			r.Post("/upload", h.UploadAttribution)
			r.Post("/import/snowflake", h.ImportSnowflake)
		})

		r.Post("/merge", h.Merge)

		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.ListSegments)
			r.Post("/", h.CreateSegment)
			r.Post("/evaluate", h.EvaluateSegment)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSegment)
				r.Put("/", h.UpdateSegment)
				r.Delete("/", h.DeleteSegment)
				r.Get("/preview", h.PreviewSegment)
			})
		})
	})

	return r
}
