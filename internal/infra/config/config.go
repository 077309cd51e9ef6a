package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Store      StoreConfig      `mapstructure:"store"`
	Assets     AssetsConfig     `mapstructure:"assets"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	SubmitRateLimit int           `mapstructure:"submit_rate_limit"` // per client and minute, needs redis
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchedulerConfig holds the generation queue settings.
type SchedulerConfig struct {
	MaxHistory       int           `mapstructure:"max_history"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PollMaxAttempts  int           `mapstructure:"poll_max_attempts"`
	PollCheckTimeout time.Duration `mapstructure:"poll_check_timeout"`
}

// StoreConfig selects the document store for history, presets and credentials.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"` // file, redis, postgres
	Dir       string `mapstructure:"dir"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AssetsConfig selects where uploads and results are kept.
type AssetsConfig struct {
	Driver     string        `mapstructure:"driver"` // local, s3
	Dir        string        `mapstructure:"dir"`
	PublicPath string        `mapstructure:"public_path"`
	URLExpiry  time.Duration `mapstructure:"url_expiry"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	// Keep-alive settings
	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// ProviderConfig configures one media provider.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProvidersConfig holds the per-provider settings.
type ProvidersConfig struct {
	Fal          ProviderConfig `mapstructure:"fal"`
	PPIO         ProviderConfig `mapstructure:"ppio"`
	KIE          ProviderConfig `mapstructure:"kie"`
	ModelScope   ProviderConfig `mapstructure:"modelscope"`
	KIEUploadURL string         `mapstructure:"kie_upload_url"`
}

// APIKeys maps provider ids to their configured keys.
func (c *ProvidersConfig) APIKeys() map[string]string {
	return map[string]string{
		"fal":        c.Fal.APIKey,
		"ppio":       c.PPIO.APIKey,
		"kie":        c.KIE.APIKey,
		"modelscope": c.ModelScope.APIKey,
	}
}

// BreakerConfig holds the provider circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds API authentication and secret settings.
type AuthConfig struct {
	// JWTSecret enables bearer authentication on the API when set.
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	MasterKey   string        `mapstructure:"master_key"` // For API key encryption
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Loader reads configuration from a yaml file, .env files and the environment, and can
// watch the file for changes.
type Loader struct {
	v    *viper.Viper
	file string

	mu      sync.Mutex
	watched bool
}

// NewLoader creates a loader. An empty file searches the default locations.
func NewLoader(file string) *Loader {
	return &Loader{v: viper.New(), file: file}
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// Load reads the configuration.
func (l *Loader) Load() (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := l.v
	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/henji")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("HENJI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Watch calls fn with the reloaded configuration whenever the config file changes.
// It is a no-op when no config file was found.
func (l *Loader) Watch(fn func(*Config), logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watched || l.v.ConfigFileUsed() == "" {
		return
	}
	l.watched = true

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			logger.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name))
		fn(cfg)
	})
	l.v.WatchConfig()
}

// applyEnvOverrides lets the well-known variables win for sensitive values.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"HENJI_JWT_SECRET", &cfg.Auth.JWTSecret},
		{"HENJI_MASTER_KEY", &cfg.Auth.MasterKey},
		{"HENJI_DB_PASSWORD", &cfg.Database.Password},
		{"HENJI_REDIS_PASSWORD", &cfg.Redis.Password},
		{"HENJI_STORAGE_SECRET_KEY", &cfg.Storage.SecretAccessKey},
		{"HENJI_FAL_API_KEY", &cfg.Providers.Fal.APIKey},
		{"HENJI_PPIO_API_KEY", &cfg.Providers.PPIO.APIKey},
		{"HENJI_KIE_API_KEY", &cfg.Providers.KIE.APIKey},
		{"HENJI_MODELSCOPE_API_KEY", &cfg.Providers.ModelScope.APIKey},
	}
	for _, o := range overrides {
		if s := strings.TrimSpace(os.Getenv(o.env)); s != "" {
			*o.dst = s
		}
	}
	if s := os.Getenv("HENJI_CORS_ORIGINS"); s != "" {
		cfg.Server.CORSOrigins = parseCommaSeparatedList(s)
	}
}

func parseCommaSeparatedList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0) // SSE streams stay open
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 64<<20)
	v.SetDefault("server.submit_rate_limit", 30)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Scheduler defaults
	v.SetDefault("scheduler.max_history", 50)
	v.SetDefault("scheduler.poll_interval", 3*time.Second)
	v.SetDefault("scheduler.poll_max_attempts", 120)
	v.SetDefault("scheduler.poll_check_timeout", 30*time.Second)

	// Store defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.key_prefix", "henji:doc:")

	// Asset defaults
	v.SetDefault("assets.driver", "local")
	v.SetDefault("assets.dir", "data/uploads")
	v.SetDefault("assets.public_path", "/api/v1/files")
	v.SetDefault("assets.url_expiry", time.Hour)

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "henji/")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "henji")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.address", "") // redis is optional
	v.SetDefault("redis.db", 0)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 30*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 10*time.Minute)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Provider defaults
	v.SetDefault("providers.fal.base_url", "https://queue.fal.run")
	v.SetDefault("providers.ppio.base_url", "https://api.ppinfra.com/v3")
	v.SetDefault("providers.kie.base_url", "https://api.kie.ai")
	v.SetDefault("providers.modelscope.base_url", "https://api-inference.modelscope.cn")
	v.SetDefault("providers.kie_upload_url", "https://kieai.redpandaai.co/api/file-stream-upload")

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", 60*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)

	// Auth defaults
	v.SetDefault("auth.token_expiry", 30*24*time.Hour)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "henji-server")
	v.SetDefault("tracing.sample_ratio", 1.0)
}
