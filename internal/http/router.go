package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/notcool100/financial-management-system/internal/http/auth"
	"github.com/notcool100/financial-management-system/internal/http/importcsv"
	"github.com/notcool100/financial-management-system/internal/http/journal"
	"github.com/notcool100/financial-management-system/internal/http/loan"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Timeout        time.Duration
}

func New(
	opts Options,
	loansV1 *loan.Handler,
	journalV1 *journal.Handler,
	importV1 *importcsv.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(opts.JWTSecret))

		r.Route("/loans", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			loansV1.Routes(r)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			journalV1.AccountRoutes(r)
		})

		r.Route("/journal-entries", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			journalV1.EntryRoutes(r)
		})

		r.Get("/trial-balance", journalV1.TrialBalance)

		r.Route("/import", importV1.Routes)
	})

	return router
}
