package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
)

const (
	DefaultAddr = ":3000"

	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// Config of the public listener. MaxBodyBytes caps a request body; zero or
// less accepts a batch of any size.
type Config struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type Server struct {
	cfg          Config
	mu           sync.Mutex
	closed       bool
	public       *http.Server
	publicRouter *chi.Mux

	handler *Handler
}

func New(cfg Config, handler *Handler, mws ...func(http.Handler) http.Handler) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	s := &Server{
		cfg:          cfg,
		publicRouter: chi.NewRouter(),

		handler: handler,
	}
	s.registerPublicRoutes(mws...)
	return s
}

func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Router exposes the routes without a listener, for tests.
func (s *Server) Router() http.Handler {
	return s.publicRouter
}

func (s *Server) ServePublic() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.public = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.publicRouter,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	public := s.public
	s.mu.Unlock()

	return public.ListenAndServe()
}

// ShutdownPublic also prevents a later ServePublic from starting.
func (s *Server) ShutdownPublic(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	public := s.public
	s.mu.Unlock()

	if public == nil {
		return nil
	}
	if err := public.Shutdown(ctx); err != nil {
		return public.Close()
	}
	return nil
}

func (s *Server) registerPublicRoutes(middlewares ...func(http.Handler) http.Handler) {
	s.publicRouter.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	if len(s.cfg.AllowedOrigins) > 0 {
		s.publicRouter.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	s.publicRouter.Use(middlewares...)

	s.publicRouter.Get("/_/ready", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	s.publicRouter.Route("/api", func(r chi.Router) {
		if s.cfg.MaxBodyBytes > 0 {
			r.Use(limitBody(s.cfg.MaxBodyBytes))
		}
		r.Post("/mouse", s.handler.Event)
	})
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
