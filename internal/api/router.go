// Package api wires the HTTP handlers into a chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-indicators/internal/api/handlers"
	"github.com/dvloznov/balance-indicators/internal/api/middleware"
	"github.com/dvloznov/balance-indicators/internal/jobs"
)

// Deps are the collaborators the router serves from.
type Deps struct {
	Read          handlers.ReadModel
	Publisher     jobs.Publisher
	Jobs          jobs.JobStore
	Metrics       http.Handler
	MaxUpload     int64
	DefaultLayout string
	Log           zerolog.Logger
}

// NewRouter builds the HTTP handler with the standard middleware chain.
func NewRouter(d Deps) http.Handler {
	uploads := handlers.NewUploadsHandler(d.Publisher, d.MaxUpload, d.DefaultLayout, d.Log)
	records := handlers.NewRecordsHandler(d.Read, d.Publisher, d.Log)
	indicators := handlers.NewIndicatorsHandler(d.Read, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, d.Log)

	r := chi.NewRouter()
	r.Use(
		middleware.Recovery(d.Log),
		middleware.Logger(d.Log),
		middleware.RequestID(d.Log),
		middleware.CORS,
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", handlers.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads", uploads.Upload)
		r.Post("/ingest", uploads.Ingest)

		r.Get("/records", records.ListRecords)
		r.Delete("/records", records.DeleteAll)

		r.Get("/indicators", indicators.GetIndicators)
		r.Get("/indicators.xlsx", indicators.GetWorkbook)
		r.Get("/composition", indicators.GetComposition)

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{jobID}", jobsHandler.GetJob)
	})

	return r
}
