package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/services"
)

// RecordStore is the primary-store surface the API writes through.
type RecordStore interface {
	Create(ctx context.Context, table models.Table, data map[string]any) (*models.Record, error)
	Get(ctx context.Context, table models.Table, id uuid.UUID) (*models.Record, error)
	List(ctx context.Context, table models.Table) ([]*models.Record, error)
	Update(ctx context.Context, table models.Table, id uuid.UUID, data map[string]any) (*models.Record, error)
	Delete(ctx context.Context, table models.Table, id uuid.UUID) error
	Import(ctx context.Context, table models.Table, rows []map[string]any) (*services.ImportResult, error)
}

type EventLister interface {
	ListRecent(ctx context.Context, status models.SyncStatus, limit int) ([]*models.SyncEvent, error)
}

type TokenVerifier interface {
	VerifyToken(token string) (*services.TokenClaims, error)
}

type Server struct {
	records RecordStore
	syncer  services.Syncer
	events  EventLister
	auth    TokenVerifier
}

func NewServer(records RecordStore, syncer services.Syncer, events EventLister, auth TokenVerifier) *Server {
	return &Server{
		records: records,
		syncer:  syncer,
		events:  events,
		auth:    auth,
	}
}

func (s *Server) Router(requestTimeout time.Duration) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		router.Use(middleware.Timeout(requestTimeout))
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/records/{table}", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
		})

		r.Post("/sync", s.handleSync)
		r.Get("/sync/events", s.handleEvents)
		r.Post("/import/{table}", s.handleImport)
	})

	return router
}
