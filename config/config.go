// Package config provides configuration management for Snapbuy.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Snapbuy.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Saga is the purchase saga engine configuration.
	Saga SagaConfig `mapstructure:"saga"`

	// Stages is the stage collaborator configuration.
	Stages StagesConfig `mapstructure:"stages"`

	// Budget is the per-stage token budget configuration.
	Budget BudgetConfig `mapstructure:"budget"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Sink is the trace sink configuration.
	Sink SinkConfig `mapstructure:"sink"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP/gRPC server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// GRPC is the gRPC server configuration.
	GRPC GRPCConfig `mapstructure:"grpc"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`
}

// GRPCConfig holds gRPC-specific settings.
type GRPCConfig struct {
	// Enabled enables the gRPC server.
	Enabled bool `mapstructure:"enabled"`

	// Port is the gRPC server port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// EnableReflection enables gRPC server reflection for debugging.
	EnableReflection bool `mapstructure:"enable_reflection"`

	// EnableHealthCheck enables gRPC health check service.
	EnableHealthCheck bool `mapstructure:"enable_health_check"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// SagaConfig holds purchase saga engine settings.
type SagaConfig struct {
	// MaxConcurrentRuns caps in-flight saga runs.
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs" validate:"min=1"`

	// Timeouts are the per-stage deadlines.
	Timeouts StageTimeoutsConfig `mapstructure:"timeouts"`

	// Compensation bounds the substitute search.
	Compensation CompensationConfig `mapstructure:"compensation"`
}

// StageTimeoutsConfig holds per-stage deadlines.
type StageTimeoutsConfig struct {
	Capture  time.Duration `mapstructure:"capture"`
	Confirm  time.Duration `mapstructure:"confirm"`
	Sourcing time.Duration `mapstructure:"sourcing"`
	Trust    time.Duration `mapstructure:"trust"`
	Checkout time.Duration `mapstructure:"checkout"`
}

// CompensationConfig bounds the compensation loop.
type CompensationConfig struct {
	// MaxCompensations is the hard cap on substitutions per run.
	MaxCompensations int `mapstructure:"max_compensations" validate:"min=0"`

	// TopK limits re-assessed alternatives per iteration.
	TopK int `mapstructure:"top_k" validate:"min=1"`

	// PriceWindowPct admits alternatives up to this percentage above the
	// selected candidate's price.
	PriceWindowPct float64 `mapstructure:"price_window_pct" validate:"min=0"`

	// ExtraLatencyBudget caps wall-clock time spent on re-assessments.
	ExtraLatencyBudget time.Duration `mapstructure:"extra_latency_budget"`
}

// StagesConfig holds stage collaborator settings.
type StagesConfig struct {
	// Mode selects the stage implementation (heuristic, remote).
	Mode string `mapstructure:"mode" validate:"oneof=heuristic remote"`

	// SourcingTopK is the number of offers sourcing returns.
	SourcingTopK int `mapstructure:"sourcing_top_k" validate:"min=1"`

	// Checkout is the payment stage configuration.
	Checkout CheckoutConfig `mapstructure:"checkout"`

	// Remote is the remote stage service configuration.
	Remote RemoteStagesConfig `mapstructure:"remote"`
}

// CheckoutConfig holds payment stage settings.
type CheckoutConfig struct {
	// MaxAmountUSD is the single-charge ceiling.
	MaxAmountUSD float64 `mapstructure:"max_amount_usd" validate:"min=0"`

	// BlockedVendors are denied outright.
	BlockedVendors []string `mapstructure:"blocked_vendors"`

	// VelocityThreshold is the failed-attempt count that locks a card.
	VelocityThreshold int `mapstructure:"velocity_threshold" validate:"min=1"`

	// ReceiptTTL bounds how long replayable receipts are retained in Redis.
	ReceiptTTL time.Duration `mapstructure:"receipt_ttl"`
}

// RemoteStagesConfig holds remote stage service endpoints.
type RemoteStagesConfig struct {
	CaptureURL  string `mapstructure:"capture_url"`
	ConfirmURL  string `mapstructure:"confirm_url"`
	SourcingURL string `mapstructure:"sourcing_url"`
	TrustURL    string `mapstructure:"trust_url"`
	CheckoutURL string `mapstructure:"checkout_url"`

	// RequestsPerSecond rate limits outbound stage calls.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`

	// Burst is the rate limiter burst size.
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	// Policy is the over-budget action (warn, truncate, fallback, block).
	Policy string `mapstructure:"policy" validate:"oneof=warn truncate fallback block"`

	// Caps are the per-stage token caps; zero means unbounded.
	Caps map[string]int `mapstructure:"caps"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the run store backend (memory, badger).
	Type string `mapstructure:"type" validate:"oneof=memory badger"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`

	// Redis is the receipt store configuration; empty address keeps
	// receipts in process memory.
	Redis RedisConfig `mapstructure:"redis"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`
}

// SinkConfig holds trace sink settings.
type SinkConfig struct {
	// Path is the JSONL trace file; empty disables file output.
	Path string `mapstructure:"path"`

	// BufferSize is the intake channel capacity.
	BufferSize int `mapstructure:"buffer_size" validate:"min=1"`

	// MaxSamples bounds the per-stage latency window.
	MaxSamples int `mapstructure:"max_samples" validate:"min=1"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`

	// Timeout bounds each export call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s}",
		c.App.Name, c.Server.Port, c.App.Environment)
}
