// Package api exposes the persisted relationship graph over a read-only
// HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthco/mailgraph/internal/store"
)

// Server serves graph queries from the store.
type Server struct {
	store store.Store
}

func NewServer(st store.Store) *Server {
	return &Server{store: st}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/people", s.handleListPeople)
		r.Get("/people/{personID}", s.handleGetPerson)
		r.Get("/people/{personID}/expertise", s.handleListExpertise)
		r.Get("/interactions", s.handleListInteractions)
		r.Get("/relationships", s.handleListRelationships)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("api: shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("api: starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	people, err := s.store.ListPeople(r.Context(), store.PersonFilter{
		CompanyDomain: r.URL.Query().Get("company_domain"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := s.store.GetPerson(r.Context(), chi.URLParam(r, "personID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if person == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "person not found"})
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (s *Server) handleListExpertise(w http.ResponseWriter, r *http.Request) {
	expertise, err := s.store.ListExpertise(r.Context(), chi.URLParam(r, "personID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expertise)
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	interactions, err := s.store.ListInteractions(r.Context(), store.InteractionFilter{
		PersonEmail: r.URL.Query().Get("person_email"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interactions)
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rels, err := s.store.ListRelationships(r.Context(), store.RelationshipFilter{
		PersonEmail: r.URL.Query().Get("person_email"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("api: request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
