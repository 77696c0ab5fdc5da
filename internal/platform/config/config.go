package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultRequestTimeout    = 30 * time.Second
	defaultEnvironment       = "local"
	defaultTemplatesDir      = "internal/templates/pages"
	defaultPublicBaseURL     = "https://storage.googleapis.com"
	defaultSignedURLExpiry   = 10 * time.Minute
	maxSignedURLExpiry       = 15 * time.Minute
	defaultSecretsFallback   = ".secrets.local"
	defaultSTLWidgetModule   = "https://esm.sh/react-stl-viewer@2.5.0?deps=react@18.3.1"
	defaultGCodeWidgetModule = "https://esm.sh/react-gcode-viewer@2.2.3?deps=react@18.3.1"
	defaultReactModule       = "https://esm.sh/react@18.3.1"
	defaultReactDOMModule    = "https://esm.sh/react-dom@18.3.1/client"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Storage   StorageConfig
	Secrets   SecretsConfig
	Viewer    ViewerConfig
	Telemetry TelemetryConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// AppConfig holds deployment-level switches.
type AppConfig struct {
	Environment string
	// DevMode reparses templates from TemplatesDir on every request.
	DevMode      bool
	TemplatesDir string
}

// StorageConfig controls how gs:// locators become browser-fetchable URLs.
type StorageConfig struct {
	// SignerKey is a service account JSON key; empty means public object URLs.
	SignerKey      string
	URLExpiry      time.Duration
	PublicBaseURL  string
	AllowedBuckets []string
}

// SecretsConfig configures Secret Manager lookups for secret:// values.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// ViewerConfig configures the external widgets and their tuning.
type ViewerConfig struct {
	TuningFile        string
	STLWidgetModule   string
	GCodeWidgetModule string
	ReactModule       string
	ReactDOMModule    string
}

// TelemetryConfig configures logging, tracing, and error reporting.
type TelemetryConfig struct {
	LogLevel       string
	TraceProjectID string
	SentryDSN      string
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

// ValidationError is returned when configuration fields are missing or invalid.
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
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
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

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// EnvironmentValues returns the effective key/value environment after applying the same
// precedence rules as Load (dotenv < OS env < explicit env map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for k, v := range dotEnv {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[key] = value
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load assembles the configuration from defaults, .env overrides, environment
// variables, and secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnv[key]; ok {
			return value, true
		}
		return "", false
	}

	port := stringWithDefault(lookup, "VIEWER_SERVER_PORT", "")
	if port == "" {
		// Cloud Run injects PORT.
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     durationWithDefault(lookup, "VIEWER_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "VIEWER_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "VIEWER_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "VIEWER_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			RequestTimeout:  durationWithDefault(lookup, "VIEWER_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		App: AppConfig{
			Environment:  strings.ToLower(stringWithDefault(lookup, "VIEWER_ENV", defaultEnvironment)),
			DevMode:      boolWithDefault(lookup, "VIEWER_DEV", false),
			TemplatesDir: stringWithDefault(lookup, "VIEWER_TEMPLATES_DIR", defaultTemplatesDir),
		},
		Storage: StorageConfig{
			SignerKey:      stringWithDefault(lookup, "VIEWER_STORAGE_SIGNER_KEY", ""),
			URLExpiry:      durationWithDefault(lookup, "VIEWER_STORAGE_URL_EXPIRY", defaultSignedURLExpiry),
			PublicBaseURL:  strings.TrimRight(stringWithDefault(lookup, "VIEWER_STORAGE_PUBLIC_BASE_URL", defaultPublicBaseURL), "/"),
			AllowedBuckets: csvWithDefault(lookup, "VIEWER_STORAGE_ALLOWED_BUCKETS"),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "VIEWER_SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "VIEWER_SECRETS_FALLBACK_FILE", defaultSecretsFallback),
		},
		Viewer: ViewerConfig{
			TuningFile:        stringWithDefault(lookup, "VIEWER_GCODE_TUNING_FILE", ""),
			STLWidgetModule:   stringWithDefault(lookup, "VIEWER_WIDGET_STL_MODULE", defaultSTLWidgetModule),
			GCodeWidgetModule: stringWithDefault(lookup, "VIEWER_WIDGET_GCODE_MODULE", defaultGCodeWidgetModule),
			ReactModule:       stringWithDefault(lookup, "VIEWER_WIDGET_REACT_MODULE", defaultReactModule),
			ReactDOMModule:    stringWithDefault(lookup, "VIEWER_WIDGET_REACT_DOM_MODULE", defaultReactDOMModule),
		},
		Telemetry: TelemetryConfig{
			LogLevel:       stringWithDefault(lookup, "LOG_LEVEL", "info"),
			TraceProjectID: stringWithDefault(lookup, "VIEWER_TRACE_PROJECT_ID", ""),
			SentryDSN:      stringWithDefault(lookup, "VIEWER_SENTRY_DSN", ""),
		},
	}

	secretFields := []*string{
		&cfg.Storage.SignerKey,
		&cfg.Telemetry.SentryDSN,
	}
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

// Production reports whether the deployment runs in the prod environment.
func (c Config) Production() bool {
	return c.App.Environment == "prod" || c.App.Environment == "production"
}

// Address returns the listen address for the HTTP server.
func (c ServerConfig) Address() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
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
		var se *SecretError
		if errors.As(err, &se) {
			return "", err
		}
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.ReadTimeout <= 0 {
		invalid = append(invalid, "Server.ReadTimeout")
	}
	if cfg.Server.WriteTimeout <= 0 {
		invalid = append(invalid, "Server.WriteTimeout")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		invalid = append(invalid, "Server.ShutdownTimeout")
	}
	if cfg.Server.RequestTimeout <= 0 {
		invalid = append(invalid, "Server.RequestTimeout")
	}
	if cfg.Storage.URLExpiry <= 0 || cfg.Storage.URLExpiry > maxSignedURLExpiry {
		invalid = append(invalid, "Storage.URLExpiry")
	}
	if !strings.HasPrefix(cfg.Storage.PublicBaseURL, "https://") && !strings.HasPrefix(cfg.Storage.PublicBaseURL, "http://") {
		invalid = append(invalid, "Storage.PublicBaseURL")
	}
	if cfg.Viewer.STLWidgetModule == "" {
		invalid = append(invalid, "Viewer.STLWidgetModule")
	}
	if cfg.Viewer.GCodeWidgetModule == "" {
		invalid = append(invalid, "Viewer.GCodeWidgetModule")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
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

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
