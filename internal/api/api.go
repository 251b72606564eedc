// Package api exposes the aggregation and series engines over HTTP.
// It is a thin query boundary: handlers translate URL parameters into
// predicates and engine calls, and render results as JSON.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/housepulse/housepulse/internal/database"
	"github.com/housepulse/housepulse/internal/model"
)

// Server serves analytical queries over a transaction store.
type Server struct {
	store  database.Store
	schema *model.Schema
}

// NewServer creates a query server backed by the given store.
func NewServer(store database.Store) *Server {
	return &Server{
		store:  store,
		schema: model.TransactionSchema(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/fields", s.handleFields)
		r.Get("/aggregate", s.handleAggregate)
		r.Get("/series/yoy", s.handleYearOverYear)
		r.Get("/series/rolling", s.handleRolling)
	})
	return r
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

type errorResponse struct {
	Error string `json:"error"`
}

// renderError maps engine and dataset errors onto HTTP status codes.
// Validation failures are the caller's fault; everything else is ours.
func renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
