// Package web provides the HTTP transport shim for the import service:
// upload intake, job status queries, and customer CRUD. All pipeline
// semantics live in internal/importer; handlers only translate HTTP to
// store and queue calls.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/crmtools/customer-import/internal/customer"
	"github.com/crmtools/customer-import/internal/importer"
	"github.com/crmtools/customer-import/internal/web/middleware"
)

// JobStore is the slice of the job store the handlers need.
type JobStore interface {
	Create(ctx context.Context) (*customer.ImportJob, error)
	Find(ctx context.Context, id uuid.UUID) (*customer.ImportJob, error)
}

// CustomerStore is the slice of the customer store the handlers need.
type CustomerStore interface {
	List(ctx context.Context, limit, offset int) ([]customer.Customer, int, error)
	Get(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	Update(ctx context.Context, id uuid.UUID, rec customer.Record) (*customer.Customer, error)
	Patch(ctx context.Context, id uuid.UUID, p customer.Patch) (*customer.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Enqueuer hands accepted import jobs to the dispatch queue.
type Enqueuer interface {
	Enqueue(task importer.Task) error
}

// Server is the HTTP server for the import service.
type Server struct {
	jobs      JobStore
	customers CustomerStore
	queue     Enqueuer
	router    *chi.Mux
	server    *http.Server

	uploadDir     string
	maxUploadSize int64
}

// NewServer wires the routes and middleware.
func NewServer(jobs JobStore, customers CustomerStore, queue Enqueuer, uploadDir string, maxUploadSize int64) *Server {
	s := &Server{
		jobs:          jobs,
		customers:     customers,
		queue:         queue,
		router:        chi.NewRouter(),
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/imports", func(r chi.Router) {
			r.Post("/", s.handleCreateImport)
			r.Get("/{id}", s.handleImportStatus)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", s.handleListCustomers)
			r.Get("/{id}", s.handleGetCustomer)
			r.Put("/{id}", s.handleUpdateCustomer)
			r.Patch("/{id}", s.handlePatchCustomer)
			r.Delete("/{id}", s.handleDeleteCustomer)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string, readTimeout, writeTimeout, idleTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}
