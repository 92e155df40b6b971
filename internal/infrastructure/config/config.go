package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	HTTP           HTTPConfig
	Database       DatabaseConfig
	Log            LogConfig
	Redis          RedisConfig
	Storage        StorageConfig
	Secrets        SecretsConfig
	Publish        PublishConfig
	Reconciliation ReconciliationConfig
	Ebay           EbayConfig
	Mercari        MercariConfig
	Telemetry      TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	TrustedProxies    []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, or ":memory:"
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	AutoMigrate     bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// RedisConfig holds Redis connection settings. When disabled, per-listing
// sale locks are process-local.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig selects where csv and feed exports are written
type StorageConfig struct {
	Driver       string // local, s3, memory
	LocalDir     string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3Prefix     string
	UsePathStyle bool
}

// SecretsConfig selects the credential backend
type SecretsConfig struct {
	Backend   string // env, dir
	Dir       string
	EnvPrefix string
}

// PublishConfig holds fan-out settings
type PublishConfig struct {
	Timeout          time.Duration
	EnabledPlatforms []string
	StorefrontURL    string
}

// ReconciliationConfig holds sale reconciliation and cancellation settings
type ReconciliationConfig struct {
	GracePeriod       time.Duration
	SweepInterval     time.Duration
	SweepBatchSize    int
	CancelTimeout     time.Duration
	MaxCancelAttempts int
	MaxPublishRetries int
	RetrySchedule     string // cron expression for retrying failed posts
	LockTTL           time.Duration
	// PlatformGrace overrides GracePeriod per platform, keyed by platform name
	PlatformGrace map[string]time.Duration
}

// GraceFor returns the grace period for platform
func (r *ReconciliationConfig) GraceFor(platform string) time.Duration {
	if d, ok := r.PlatformGrace[platform]; ok {
		return d
	}
	return r.GracePeriod
}

// EbayConfig holds the non-secret eBay settings. Credentials come from the
// secret store.
type EbayConfig struct {
	Sandbox             bool
	MarketplaceID       string
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
	MerchantLocationKey string
	DefaultCategoryID   string
	RequestsPerSecond   float64
	Timeout             time.Duration
}

// MercariConfig holds the non-secret Mercari Shops settings
type MercariConfig struct {
	Sandbox           bool
	ShopID            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// TelemetryConfig holds OpenTelemetry export settings. Enabled turns on
// metrics and traces; logs and database spans have their own switches.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
	SamplingRatio     float64
	ExportLogs        bool
	TraceDatabase     bool
}

// Load loads configuration from config file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CROSSLIST_ prefix (e.g., CROSSLIST_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/crosslist")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetDefault("telemetry.sampling_ratio", 1.0)

	v.SetEnvPrefix("CROSSLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	platformGrace, err := parseDurationMap(v.GetStringMapString("reconciliation.platform_grace"))
	if err != nil {
		return nil, fmt.Errorf("reconciliation.platform_grace: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Driver:       v.GetString("storage.driver"),
			LocalDir:     v.GetString("storage.local_dir"),
			S3Bucket:     v.GetString("storage.s3_bucket"),
			S3Region:     v.GetString("storage.s3_region"),
			S3Endpoint:   v.GetString("storage.s3_endpoint"),
			S3Prefix:     v.GetString("storage.s3_prefix"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Secrets: SecretsConfig{
			Backend:   v.GetString("secrets.backend"),
			Dir:       v.GetString("secrets.dir"),
			EnvPrefix: v.GetString("secrets.env_prefix"),
		},
		Publish: PublishConfig{
			Timeout:          v.GetDuration("publish.timeout"),
			EnabledPlatforms: v.GetStringSlice("publish.enabled_platforms"),
			StorefrontURL:    v.GetString("publish.storefront_url"),
		},
		Reconciliation: ReconciliationConfig{
			GracePeriod:       v.GetDuration("reconciliation.grace_period"),
			SweepInterval:     v.GetDuration("reconciliation.sweep_interval"),
			SweepBatchSize:    v.GetInt("reconciliation.sweep_batch_size"),
			CancelTimeout:     v.GetDuration("reconciliation.cancel_timeout"),
			MaxCancelAttempts: v.GetInt("reconciliation.max_cancel_attempts"),
			MaxPublishRetries: v.GetInt("reconciliation.max_publish_retries"),
			RetrySchedule:     v.GetString("reconciliation.retry_schedule"),
			LockTTL:           v.GetDuration("reconciliation.lock_ttl"),
			PlatformGrace:     platformGrace,
		},
		Ebay: EbayConfig{
			Sandbox:             v.GetBool("ebay.sandbox"),
			MarketplaceID:       v.GetString("ebay.marketplace_id"),
			FulfillmentPolicyID: v.GetString("ebay.fulfillment_policy_id"),
			PaymentPolicyID:     v.GetString("ebay.payment_policy_id"),
			ReturnPolicyID:      v.GetString("ebay.return_policy_id"),
			MerchantLocationKey: v.GetString("ebay.merchant_location_key"),
			DefaultCategoryID:   v.GetString("ebay.default_category_id"),
			RequestsPerSecond:   v.GetFloat64("ebay.requests_per_second"),
			Timeout:             v.GetDuration("ebay.timeout"),
		},
		Mercari: MercariConfig{
			Sandbox:           v.GetBool("mercari.sandbox"),
			ShopID:            v.GetString("mercari.shop_id"),
			RequestsPerSecond: v.GetFloat64("mercari.requests_per_second"),
			Timeout:           v.GetDuration("mercari.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			TraceDatabase:     v.GetBool("telemetry.trace_database"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDurationMap(raw map[string]string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(raw))
	for k, s := range raw {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[strings.ToLower(k)] = d
	}
	return out, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "crosslist"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// publish fans out to slow marketplaces, so writes get more room
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 90 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "crosslist"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "crosslist.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = "./exports"
	}
	if cfg.Storage.S3Region == "" {
		cfg.Storage.S3Region = "us-east-1"
	}

	if cfg.Secrets.Backend == "" {
		cfg.Secrets.Backend = "env"
	}
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = "CROSSLIST_SECRET_"
	}

	if cfg.Publish.Timeout == 0 {
		cfg.Publish.Timeout = 60 * time.Second
	}
	// platforms that need no marketplace credentials
	if len(cfg.Publish.EnabledPlatforms) == 0 {
		cfg.Publish.EnabledPlatforms = []string{"poshmark", "bonanza", "facebook", "google_shopping", "pinterest", "craigslist", "chairish"}
	}

	if cfg.Reconciliation.GracePeriod == 0 {
		cfg.Reconciliation.GracePeriod = 15 * time.Minute
	}
	if cfg.Reconciliation.SweepInterval == 0 {
		cfg.Reconciliation.SweepInterval = 60 * time.Second
	}
	if cfg.Reconciliation.SweepBatchSize == 0 {
		cfg.Reconciliation.SweepBatchSize = 100
	}
	if cfg.Reconciliation.CancelTimeout == 0 {
		cfg.Reconciliation.CancelTimeout = 30 * time.Second
	}
	if cfg.Reconciliation.MaxCancelAttempts == 0 {
		cfg.Reconciliation.MaxCancelAttempts = 5
	}
	if cfg.Reconciliation.MaxPublishRetries == 0 {
		cfg.Reconciliation.MaxPublishRetries = 3
	}
	if cfg.Reconciliation.RetrySchedule == "" {
		cfg.Reconciliation.RetrySchedule = "*/15 * * * *"
	}
	if cfg.Reconciliation.LockTTL == 0 {
		cfg.Reconciliation.LockTTL = 30 * time.Second
	}
	if cfg.Reconciliation.PlatformGrace == nil {
		cfg.Reconciliation.PlatformGrace = map[string]time.Duration{}
	}

	if cfg.Ebay.MarketplaceID == "" {
		cfg.Ebay.MarketplaceID = "EBAY_US"
	}
	if cfg.Ebay.RequestsPerSecond == 0 {
		cfg.Ebay.RequestsPerSecond = 5
	}
	if cfg.Ebay.Timeout == 0 {
		cfg.Ebay.Timeout = 30 * time.Second
	}
	if cfg.Mercari.RequestsPerSecond == 0 {
		cfg.Mercari.RequestsPerSecond = 2
	}
	if cfg.Mercari.Timeout == 0 {
		cfg.Mercari.Timeout = 30 * time.Second
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "crosslist"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Storage.Driver {
	case "local", "memory":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required when storage.driver is s3")
		}
	default:
		return fmt.Errorf("storage.driver must be local, s3 or memory, got %q", c.Storage.Driver)
	}

	switch c.Secrets.Backend {
	case "env":
	case "dir":
		if c.Secrets.Dir == "" {
			return fmt.Errorf("secrets.dir is required when secrets.backend is dir")
		}
	default:
		return fmt.Errorf("secrets.backend must be env or dir, got %q", c.Secrets.Backend)
	}

	if c.Publish.Timeout < 0 {
		return fmt.Errorf("publish.timeout cannot be negative")
	}
	if c.Publish.StorefrontURL != "" {
		if u, err := url.Parse(c.Publish.StorefrontURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("publish.storefront_url must be an absolute URL")
		}
	}

	if c.Reconciliation.GracePeriod < 0 {
		return fmt.Errorf("reconciliation.grace_period cannot be negative")
	}
	for p, d := range c.Reconciliation.PlatformGrace {
		if d < 0 {
			return fmt.Errorf("reconciliation.platform_grace.%s cannot be negative", p)
		}
	}
	if c.Reconciliation.SweepInterval < time.Second {
		return fmt.Errorf("reconciliation.sweep_interval must be at least 1s")
	}
	if c.Reconciliation.MaxCancelAttempts < 1 {
		return fmt.Errorf("reconciliation.max_cancel_attempts must be positive")
	}
	if c.Reconciliation.MaxPublishRetries < 0 {
		return fmt.Errorf("reconciliation.max_publish_retries cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
