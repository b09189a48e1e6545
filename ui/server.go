package ui

import (
	"net/http"
	"time"

	"histfit/adapters/excel"
	"histfit/app"
	"histfit/internal"
	"histfit/internal/report"
	"histfit/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the inference services over an HTTP JSON API.
type Server struct {
	router   chi.Router
	fits     *app.FitService
	scans    *app.ScanService
	reader   ports.ResultReaderPort
	reports  *report.Generator
	exporter *excel.ResultWriter
	log      *internal.Logger
}

// NewServer wires the services into a chi router.
func NewServer(fits *app.FitService, scans *app.ScanService, reader ports.ResultReaderPort) *Server {
	s := &Server{
		fits:     fits,
		scans:    scans,
		reader:   reader,
		reports:  report.NewGenerator(),
		exporter: excel.NewResultWriter(),
		log:      internal.DefaultLogger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)
		r.Post("/fit", s.handleFit)
		r.Post("/scan", s.handleScan)

		r.Get("/fits", s.handleListFits)
		r.Get("/fits/{id}", s.handleGetFit)
		r.Get("/fits/{id}/report", s.handleFitReport)
		r.Get("/fits/{id}/export", s.handleFitExport)

		r.Get("/scans", s.handleListScans)
		r.Get("/scans/{id}", s.handleGetScan)
		r.Get("/scans/{id}/report", s.handleScanReport)
		r.Get("/scans/{id}/export", s.handleScanExport)
	})
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts serving on the given port.
func (s *Server) ListenAndServe(port string) error {
	s.log.Info("listening on :%s", port)
	return http.ListenAndServe(":"+port, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
