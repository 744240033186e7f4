package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aylaurquizo/KTPHackathon/internal/backend"
	"github.com/aylaurquizo/KTPHackathon/internal/catalog"
	"github.com/aylaurquizo/KTPHackathon/internal/listing"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/config"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/observability"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/secrets"
	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
	"github.com/aylaurquizo/KTPHackathon/internal/web"
)

func main() {
	var (
		publicDir      string
		categoriesFile string
	)
	flag.StringVar(&publicDir, "public", "public", "public assets directory")
	flag.StringVar(&categoriesFile, "categories", "", "YAML file overriding the filter buttons")
	flag.Parse()

	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	sb, data := newBackend(cfg.Backend, logger)

	var boxes catalog.BoxLister
	if data != nil {
		boxes = data
	}
	loader := catalog.NewDefaultLoader(boxes, cfg.Catalog.FallbackFile,
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithOnLoaded(func(res catalog.Result) {
			logger.Debug("catalog resolved", zap.String("source", res.Source), zap.Int("count", len(res.Products)))
		}),
	)

	var categories []listing.Category
	if categoriesFile != "" {
		raw, err := os.ReadFile(categoriesFile)
		if err != nil {
			logger.Fatal("failed to read categories file", zap.String("path", categoriesFile), zap.Error(err))
		}
		categories, err = listing.ParseCategories(raw)
		if err != nil {
			logger.Fatal("failed to parse categories file", zap.String("path", categoriesFile), zap.Error(err))
		}
	}

	opts := web.Options{
		Logger:       logger.Named("web"),
		Catalog:      loader,
		Categories:   categories,
		Cookies:      web.NewCookieCodec(cfg.Session.SigningKey, cfg.Session.SecureCookies, logger.Named("cookies")),
		PublicDir:    publicDir,
		VisitorTTL:   cfg.Session.IdleTTL,
		MaxVisitors:  cfg.Session.MaxVisitors,
		TokenRefresh: cfg.Session.TokenRefreshTick,
		AuthRate:     rate.Limit(float64(cfg.AuthLimits.PerMinute) / 60),
		AuthBurst:    cfg.AuthLimits.Burst,
	}
	if data != nil {
		opts.Cart = data
	}
	if sb != nil {
		opts.NewAuth = func() web.AuthBackend { return sb.NewAuth() }
	}

	app, err := web.New(opts)
	if err != nil {
		logger.Fatal("failed to initialise web server", zap.Error(err))
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		app.Registry().Run(sweepCtx, cfg.Session.SweepInterval)
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront listening",
			zap.String("environment", cfg.Environment),
			zap.Bool("backend_configured", sb != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	sweepCancel()
	sweepWG.Wait()
	app.Close()
}

// newBackend connects to the hosted backend. Missing or unusable settings degrade to the local
// catalog fallbacks with auth and cart disabled; config.Load has already failed if the backend is
// required.
func newBackend(cfg config.BackendConfig, logger *zap.Logger) (*supabase.Client, *backend.DataClient) {
	if !cfg.Configured() {
		logger.Warn("backend not configured; serving local catalog data with auth and cart disabled")
		return nil, nil
	}
	sb, err := supabase.New(cfg.URL, cfg.AnonKey,
		supabase.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		supabase.WithLogger(logger.Named("supabase")),
	)
	if err != nil {
		logger.Warn("backend client unavailable; serving local catalog data", zap.Error(err))
		return nil, nil
	}
	data, err := backend.New(sb, logger)
	if err != nil {
		logger.Warn("backend data client unavailable", zap.Error(err))
		return sb, nil
	}
	return sb, data
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if project := lookup("STOREFRONT_SECRETS_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if path := lookup("STOREFRONT_SECRETS_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	return secrets.NewFetcher(ctx, opts...)
}
