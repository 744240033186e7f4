// Package web serves the storefront: the auth screens, the product listing and the cart endpoints.
package web

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aylaurquizo/KTPHackathon/internal/auth"
	"github.com/aylaurquizo/KTPHackathon/internal/backend"
	"github.com/aylaurquizo/KTPHackathon/internal/listing"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/observability"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultSessionWait    = 2 * time.Second
)

// AuthBackend is one visitor's connection to the auth API.
type AuthBackend interface {
	auth.Backend
	StartAutoRefresh(ctx context.Context, interval time.Duration) (stop func())
}

// Cart is the cart side of the data client.
type Cart interface {
	AddToCart(ctx context.Context, boxID string, userID *string) bool
	UserCart(ctx context.Context, userID string) []backend.CartLine
}

// Options wires the server's collaborators. Catalog is required; a nil Cart or NewAuth means the
// backend is not configured and the corresponding features degrade.
type Options struct {
	Logger     *zap.Logger
	Catalog    listing.Loader
	Cart       Cart
	NewAuth    func() AuthBackend
	Categories []listing.Category
	Cookies    *CookieCodec
	PublicDir  string

	VisitorTTL     time.Duration
	MaxVisitors    int
	TokenRefresh   time.Duration
	AuthRate       rate.Limit
	AuthBurst      int
	RequestTimeout time.Duration
	SessionWait    time.Duration
	Now            func() time.Time
}

// Server owns the router and the visitor registry.
type Server struct {
	logger     *zap.Logger
	catalog    listing.Loader
	cart       Cart
	newAuth    func() AuthBackend
	categories []listing.Category
	cookies    *CookieCodec
	publicDir  string
	registry   *Registry
	pages      *renderer

	tokenRefresh   time.Duration
	authRate       rate.Limit
	authBurst      int
	requestTimeout time.Duration
	sessionWait    time.Duration
	now            func() time.Time

	handler http.Handler
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, errors.New("web: catalog loader is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:         logger,
		catalog:        opts.Catalog,
		cart:           opts.Cart,
		newAuth:        opts.NewAuth,
		categories:     opts.Categories,
		cookies:        opts.Cookies,
		publicDir:      opts.PublicDir,
		pages:          pages,
		tokenRefresh:   opts.TokenRefresh,
		authRate:       opts.AuthRate,
		authBurst:      opts.AuthBurst,
		requestTimeout: opts.RequestTimeout,
		sessionWait:    opts.SessionWait,
		now:            opts.Now,
	}
	if s.cookies == nil {
		s.cookies = NewCookieCodec("", false, logger)
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = defaultRequestTimeout
	}
	if s.sessionWait <= 0 {
		s.sessionWait = defaultSessionWait
	}
	if s.authBurst <= 0 {
		s.authBurst = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registry = NewRegistry(s.newVisitor, opts.VisitorTTL, opts.MaxVisitors, logger)
	s.registry.now = s.now
	s.handler = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry exposes the visitor registry so the caller can run the idle sweep.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Close releases every visitor's auth state.
func (s *Server) Close() {
	s.registry.Close()
}

func (s *Server) newVisitor(id string) *Visitor {
	logger := s.logger.With(zap.String("visitor_id", id))

	var (
		authBackend AuthBackend
		closers     []func()
	)
	if s.newAuth != nil {
		authBackend = s.newAuth()
	}

	var session *auth.SessionContext
	if authBackend != nil {
		session = auth.NewSessionContext(authBackend, logger)
		if s.tokenRefresh > 0 {
			refresher := &autoRefresher{client: authBackend, interval: s.tokenRefresh}
			closers = append(closers, session.OnChange(refresher.observe), refresher.stop)
		}
	} else {
		session = auth.NewSessionContext(nil, logger)
	}

	var limiter *rate.Limiter
	if s.authRate > 0 {
		limiter = rate.NewLimiter(s.authRate, s.authBurst)
	}

	engine := listing.NewEngine(
		listing.WithCategories(s.categories),
		listing.WithEngineLogger(logger),
	)
	return NewVisitor(id, session, engine, limiter, closers...)
}

// autoRefresher starts the token refresh loop the first time the visitor is signed in, so anonymous
// visitors hold no ticker. The loop idles while there is no session.
type autoRefresher struct {
	client   AuthBackend
	interval time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  func()
}

func (a *autoRefresher) observe(snap auth.Snapshot) {
	if snap.State != auth.StateAuthenticated {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.stopped {
		return
	}
	a.started = true
	a.cancel = a.client.StartAutoRefresh(context.Background(), a.interval)
}

func (a *autoRefresher) stop() {
	a.mu.Lock()
	a.stopped = true
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// RealIP trusts X-Forwarded-For; deploy behind a proxy that sets it.
	r.Use(middleware.RealIP)
	r.Use(observability.TraceMiddleware)
	r.Use(observability.InjectLoggerMiddleware(s.logger))
	r.Use(observability.RecoveryMiddleware(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.publicDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets", assetsWithCache(filepath.Join(s.publicDir, "assets"))))
		r.Handle("/images/*", http.StripPrefix("/images", assetsWithCache(filepath.Join(s.publicDir, "images"))))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.visitors)
		r.Use(observability.RequestLoggerMiddleware)
		r.Use(middleware.Timeout(s.requestTimeout))
		r.Use(htmx)
		r.Use(csrf)

		r.Get("/", s.handleIndex)
		r.Post("/signup", s.handleAuthSubmit(auth.ModeSignUp))
		r.Post("/login", s.handleAuthSubmit(auth.ModeSignIn))
		r.Post("/logout", s.handleLogout)

		r.Get("/products", s.handleProducts)
		r.Get("/products/grid", s.handleProductsGrid)

		r.Post("/cart", s.handleAddToCart)
		r.Get("/cart", s.handleCart)
	})
	return r
}
