package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	shutdownTimeout = 10 * time.Second
	defaultTokenTTL = 24 * time.Hour
)

type Options struct {
	Address string
	Version string
	// Secret signs and verifies bearer tokens.
	Secret          []byte
	TokenTTL        time.Duration
	CORSOrigins     []string
	AllowAllOrigins bool
}

type Server struct {
	log     *logrus.Entry
	app     App
	address string
	version string
	secret  []byte
	ttl     time.Duration
	cors    corsPolicy
	router  http.Handler
}

func New(log *logrus.Logger, app App, opts Options) *Server {
	s := Server{
		log:     log.WithField("component", "rest"),
		app:     app,
		address: opts.Address,
		version: opts.Version,
		secret:  opts.Secret,
		ttl:     opts.TokenTTL,
		cors:    newCORSPolicy(opts.CORSOrigins, opts.AllowAllOrigins),
	}
	if s.ttl <= 0 {
		s.ttl = defaultTokenTTL
	}
	s.router = s.routes()
	return &s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("err during shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes, s.requestID, s.requestLogging, middleware.Recoverer, s.measure, s.corsHandler)
	r.NotFound(s.notFoundHandler)
	r.MethodNotAllowed(s.methodNotAllowedHandler)

	r.Get("/version", s.versionHandler)
	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api-auth/login", s.loginHandler)

	s.eventResourceRoutes(r)
	s.identityRoutes(r)
	r.Route("/api", func(r chi.Router) {
		s.eventListRoutes(r)
		s.eventDetailRoutes(r)
		s.identityRoutes(r)
	})
	return r
}

// eventResourceRoutes registers the combined /events resource.
func (s *Server) eventResourceRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.listEventsHandler)
		r.Post("/", s.createEventHandler)
		r.Route("/{id:[0-9]+}", func(r chi.Router) {
			r.Get("/", s.getEventHandler)
			r.Put("/", s.updateEventHandler(false))
			r.Patch("/", s.updateEventHandler(true))
			r.Delete("/", s.deleteEventHandler)
		})
	})
}

// eventListRoutes and eventDetailRoutes register the split list/detail shape
// over the same handlers as eventResourceRoutes.
func (s *Server) eventListRoutes(r chi.Router) {
	r.Get("/events", s.listEventsHandler)
	r.Post("/events", s.createEventHandler)
}

func (s *Server) eventDetailRoutes(r chi.Router) {
	r.Get("/events/{id:[0-9]+}", s.getEventHandler)
	r.Put("/events/{id:[0-9]+}", s.updateEventHandler(false))
	r.Patch("/events/{id:[0-9]+}", s.updateEventHandler(true))
	r.Delete("/events/{id:[0-9]+}", s.deleteEventHandler)
}

// identityRoutes registers users and groups. Reads are public, writes need a bearer token.
func (s *Server) identityRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.listUsersHandler)
		r.With(s.jwtAuth).Post("/", s.createUserHandler)
		r.Route("/{id:[0-9]+}", func(r chi.Router) {
			r.Get("/", s.getUserHandler)
			r.With(s.jwtAuth).Put("/", s.updateUserHandler(false))
			r.With(s.jwtAuth).Patch("/", s.updateUserHandler(true))
			r.With(s.jwtAuth).Delete("/", s.deleteUserHandler)
		})
	})
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", s.listGroupsHandler)
		r.With(s.jwtAuth).Post("/", s.createGroupHandler)
		r.Route("/{id:[0-9]+}", func(r chi.Router) {
			r.Get("/", s.getGroupHandler)
			r.With(s.jwtAuth).Put("/", s.updateGroupHandler(false))
			r.With(s.jwtAuth).Patch("/", s.updateGroupHandler(true))
			r.With(s.jwtAuth).Delete("/", s.deleteGroupHandler)
		})
	})
}
