// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package web is the HTTP boundary of the catalog API.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/shelfkeep/shelfkeep/internal/access"
	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/catalog"
)

// Authenticator is the part of the auth subsystem the boundary calls.
// *auth.Service implements it. Implementations log their own failures; the
// boundary only replies 500.
type Authenticator interface {
	Login(ctx context.Context, req auth.LoginRequest) (auth.Result, error)
	IsValid(ctx context.Context, token string) (bool, error)
	ResolveRole(ctx context.Context, token string) (role string, ok bool, err error)
}

// Catalog is the catalog service the handlers drive. *catalog.Service
// implements it.
type Catalog interface {
	ListCatalogs(ctx context.Context, page catalog.Page) ([]catalog.Catalog, error)
	CreateCatalog(ctx context.Context, name string) (*catalog.Catalog, error)
	UpdateCatalog(ctx context.Context, id int64, upd catalog.CatalogUpdate) error
	DeleteCatalog(ctx context.Context, id int64) error
	ListItems(ctx context.Context, catalogID int64, page catalog.Page) ([]catalog.Item, error)
	GetItem(ctx context.Context, catalogID, id int64) (*catalog.Item, error)
	AddItem(ctx context.Context, item *catalog.Item) error
	UpdateItem(ctx context.Context, catalogID, id int64, upd catalog.ItemUpdate) error
	DeleteItem(ctx context.Context, catalogID, id int64) error
	UploadImage(ctx context.Context, catalogID, id int64, r io.Reader) (string, error)
	OpenImage(ctx context.Context, catalogID, id int64) (io.ReadSeekCloser, string, error)
}

// Recorder receives request metrics. *observability.Metrics implements it.
type Recorder interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	ObserveUpload(n int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, int, time.Duration) {}
func (nopRecorder) ObserveUpload(int64)                               {}

// Options tunes a Server. The zero value is usable.
type Options struct {
	// CORSOrigins lists allowed origins. Empty allows any.
	CORSOrigins []string
	// SkipPaths are glob patterns ('/' separated) whose requests are not
	// access logged. Metrics are still recorded.
	SkipPaths []string
	// Access enables per-route role checks when it reports Enabled.
	Access   access.Checker
	Recorder Recorder
	Logger   *slog.Logger
	// MaxUploadBytes bounds request bodies on the upload route.
	MaxUploadBytes    int64
	ReadHeaderTimeout time.Duration
}

// Server serves the catalog API.
type Server struct {
	addr      string
	auth      Authenticator
	catalog   Catalog
	access    access.Checker
	recorder  Recorder
	logger    *slog.Logger
	skip      []glob.Glob
	origins   []string
	maxUpload int64
	headerTTL time.Duration
	handler   http.Handler

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server listening on addr once started.
func NewServer(addr string, authn Authenticator, cat Catalog, opts Options) (*Server, error) {
	if authn == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("authenticator is required")
	}
	if cat == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("catalog service is required")
	}

	s := &Server{
		addr:      addr,
		auth:      authn,
		catalog:   cat,
		access:    opts.Access,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		origins:   opts.CORSOrigins,
		maxUpload: opts.MaxUploadBytes,
		headerTTL: opts.ReadHeaderTimeout,
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	if s.maxUpload <= 0 {
		s.maxUpload = catalog.DefaultMaxImageBytes
	}
	if s.headerTTL <= 0 {
		s.headerTTL = 10 * time.Second
	}
	for _, pattern := range opts.SkipPaths {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, oops.Code("WEB_INVALID_CONFIG").
				With("pattern", pattern).
				Wrapf(err, "invalid log skip pattern")
		}
		s.skip = append(s.skip, g)
	}

	s.handler = s.routes()
	return s, nil
}

// Handler returns the API handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.recoverer, s.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	catalogWrite := s.requireToken(access.PermCatalogWrite)
	itemWrite := s.requireToken(access.PermItemWrite)
	imageWrite := s.requireToken(access.PermImageWrite)

	r.Get("/api", handleVersion)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth", s.handleAuth)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", s.handleListCatalogs)
			r.With(catalogWrite).Post("/", s.handleCreateCatalog)
			r.With(catalogWrite).Delete("/", s.handleDeleteCatalog)

			r.Route("/{catalog_id}", func(r chi.Router) {
				r.Get("/", s.handleListItems)
				r.With(catalogWrite).Put("/", s.handleUpdateCatalog)
				r.With(itemWrite).Post("/", s.handleAddItem)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetItem)
					r.With(itemWrite).Put("/", s.handleUpdateItem)
					r.With(itemWrite).Delete("/", s.handleDeleteItem)
					r.With(s.limitBody, imageWrite).Post("/upload", s.handleUpload)
					r.Get("/image", s.handleImage)
				})
			})
		})
	})
	return r
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.headerTTL,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("WEB_SHUTDOWN_FAILED").With("operation", "shutdown web server").Wrap(err)
		}
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
