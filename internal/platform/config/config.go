package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 15 * time.Second
	defaultIdleTimeout        = 60 * time.Second
	defaultBackendTimeout     = 5 * time.Second
	defaultFallbackFile       = "public/data/supplements.json"
	defaultEnvironment        = "local"
	defaultSessionIdleTTL     = 30 * time.Minute
	defaultSessionSweep       = 5 * time.Minute
	defaultTokenRefreshTick   = 30 * time.Second
	defaultMaxVisitors        = 10000
	defaultAuthRatePerMinute  = 20
	defaultAuthRateBurst      = 5
	defaultSecretFallbackPath = ".secrets.local"
)

var defaultEnvFiles = []string{".env", ".env.local"}

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Backend     BackendConfig
	Catalog     CatalogConfig
	Session     SessionConfig
	AuthLimits  AuthRateLimitConfig
	Secrets     SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig locates the hosted backend (data and auth APIs).
type BackendConfig struct {
	URL     string
	AnonKey string
	Timeout time.Duration
	// Required makes Load fail when URL or AnonKey is missing instead of
	// letting the catalog degrade to its local fallbacks.
	Required bool
}

// Configured reports whether both the URL and the anonymous key are present.
func (b BackendConfig) Configured() bool {
	return strings.TrimSpace(b.URL) != "" && strings.TrimSpace(b.AnonKey) != ""
}

// CatalogConfig controls the product loader's local fallback.
type CatalogConfig struct {
	FallbackFile string
}

// SessionConfig controls visitor cookies and per-visitor auth state.
type SessionConfig struct {
	SigningKey       string
	SecureCookies    bool
	IdleTTL          time.Duration
	SweepInterval    time.Duration
	TokenRefreshTick time.Duration
	// MaxVisitors caps live visitor state; the least recently seen visitor is evicted first.
	MaxVisitors      int
}

// AuthRateLimitConfig throttles sign-in and sign-up submissions per visitor.
type AuthRateLimitConfig struct {
	PerMinute int
	Burst     int
}

// SecretsConfig configures resolution of secret:// references.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFiles     []string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFiles overrides the dotenv files consulted for local overrides. Later files win.
func WithEnvFiles(paths ...string) Option {
	return func(o *loaderOptions) {
		o.envFiles = paths
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). Callers use it to build dependencies such as the
// secret fetcher before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, key := range options.keys() {
		if value, ok := lookup(key); ok {
			values[key] = value
		}
	}
	return values, nil
}

// Load assembles the storefront configuration by combining defaults, dotenv overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	port := stringWithDefault(lookup, "STOREFRONT_PORT", "")
	if port == "" {
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}
	env := strings.ToLower(stringWithDefault(lookup, "STOREFRONT_ENV", defaultEnvironment))

	cfg := Config{
		Environment: env,
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Backend: BackendConfig{
			URL:      strings.TrimRight(firstValue(lookup, "SUPABASE_URL", "VITE_SUPABASE_URL"), "/"),
			AnonKey:  firstValue(lookup, "SUPABASE_ANON_KEY", "SUPABASE_KEY", "VITE_SUPABASE_ANON_KEY"),
			Timeout:  durationWithDefault(lookup, "STOREFRONT_BACKEND_TIMEOUT", defaultBackendTimeout),
			Required: boolWithDefault(lookup, "STOREFRONT_REQUIRE_BACKEND", false),
		},
		Catalog: CatalogConfig{
			FallbackFile: stringWithDefault(lookup, "STOREFRONT_FALLBACK_FILE", defaultFallbackFile),
		},
		Session: SessionConfig{
			SigningKey:       stringWithDefault(lookup, "STOREFRONT_SESSION_SIGNING_KEY", ""),
			SecureCookies:    boolWithDefault(lookup, "STOREFRONT_SECURE_COOKIES", env == "prod"),
			IdleTTL:          durationWithDefault(lookup, "STOREFRONT_SESSION_IDLE_TTL", defaultSessionIdleTTL),
			SweepInterval:    durationWithDefault(lookup, "STOREFRONT_SESSION_SWEEP_INTERVAL", defaultSessionSweep),
			TokenRefreshTick: durationWithDefault(lookup, "STOREFRONT_TOKEN_REFRESH_INTERVAL", defaultTokenRefreshTick),
			MaxVisitors:      intWithDefault(lookup, "STOREFRONT_MAX_VISITORS", defaultMaxVisitors),
		},
		AuthLimits: AuthRateLimitConfig{
			PerMinute: intWithDefault(lookup, "STOREFRONT_AUTH_RATE_PER_MIN", defaultAuthRatePerMinute),
			Burst:     intWithDefault(lookup, "STOREFRONT_AUTH_RATE_BURST", defaultAuthRateBurst),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "STOREFRONT_SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "STOREFRONT_SECRETS_FALLBACK_FILE", defaultSecretFallbackPath),
		},
	}

	secretFields := []*string{&cfg.Backend.AnonKey, &cfg.Session.SigningKey}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFiles:     defaultEnvFiles,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func (o loaderOptions) lookup() (func(string) (string, bool), error) {
	dotEnvValues, err := loadDotEnv(o.envFiles)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if o.envMap != nil {
			if value, ok := o.envMap[key]; ok {
				return value, true
			}
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}, nil
}

func (o loaderOptions) keys() []string {
	return []string{
		"STOREFRONT_ENV", "STOREFRONT_PORT", "PORT",
		"SUPABASE_URL", "VITE_SUPABASE_URL", "SUPABASE_ANON_KEY", "SUPABASE_KEY", "VITE_SUPABASE_ANON_KEY",
		"STOREFRONT_SECRETS_PROJECT_ID", "STOREFRONT_SECRETS_FALLBACK_FILE",
	}
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Backend.Required {
		if strings.TrimSpace(cfg.Backend.URL) == "" {
			missing = append(missing, "Backend.URL")
		}
		if strings.TrimSpace(cfg.Backend.AnonKey) == "" {
			missing = append(missing, "Backend.AnonKey")
		}
	}
	if strings.TrimSpace(cfg.Catalog.FallbackFile) == "" {
		missing = append(missing, "Catalog.FallbackFile")
	}
	if cfg.Session.IdleTTL <= 0 {
		missing = append(missing, "Session.IdleTTL")
	}
	if cfg.Session.SweepInterval <= 0 {
		missing = append(missing, "Session.SweepInterval")
	}
	if cfg.Environment == "prod" && strings.TrimSpace(cfg.Session.SigningKey) == "" {
		missing = append(missing, "Session.SigningKey")
	}
	if cfg.Session.MaxVisitors <= 0 {
		missing = append(missing, "Session.MaxVisitors")
	}
	if cfg.AuthLimits.PerMinute <= 0 {
		missing = append(missing, "AuthLimits.PerMinute")
	}
	if cfg.AuthLimits.Burst <= 0 {
		missing = append(missing, "AuthLimits.Burst")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(paths []string) (map[string]string, error) {
	values := make(map[string]string)
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		parsed, err := godotenv.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
		}
		for key, value := range parsed {
			values[key] = value
		}
	}
	return values, nil
}

func firstValue(lookup func(string) (string, bool), keys ...string) string {
	for _, key := range keys {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
