package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers understood by the bootstrap.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Academic AcademicConfig
	Tx       TxConfig
	Trigger  TriggerConfig
	Reports  ReportsConfig
	Tracing  TracingConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AcademicConfig holds the policy thresholds used by the coordinator and trigger rules.
type AcademicConfig struct {
	PassingGrade         float64
	GraduationMinAverage float64
	RiskThreshold        float64
	RiskHighThreshold    float64
	DefaultCapacity      int
	PolicyFile           string
}

// TxConfig bounds transaction execution.
type TxConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// TriggerConfig tunes the change-feed consumers.
type TriggerConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	RetryDelay   time.Duration
	Channel      string
}

// ReportsConfig tunes report paging and caching.
type ReportsConfig struct {
	PageSize     int
	CacheEnabled bool
	CacheTTL     time.Duration
}

// TracingConfig gates the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	SampleRatio float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Academic = AcademicConfig{
		PassingGrade:         v.GetFloat64("PASSING_GRADE"),
		GraduationMinAverage: v.GetFloat64("GRADUATION_MIN_AVERAGE"),
		RiskThreshold:        v.GetFloat64("RISK_THRESHOLD"),
		RiskHighThreshold:    v.GetFloat64("RISK_HIGH_THRESHOLD"),
		DefaultCapacity:      v.GetInt("DEFAULT_COURSE_CAPACITY"),
		PolicyFile:           v.GetString("POLICY_FILE"),
	}

	cfg.Tx = TxConfig{
		Timeout:    parseDuration(v.GetString("TX_TIMEOUT"), 5*time.Second),
		MaxRetries: v.GetInt("TX_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("TX_RETRY_DELAY"), 50*time.Millisecond),
	}

	cfg.Trigger = TriggerConfig{
		Enabled:      v.GetBool("TRIGGER_ENABLED"),
		PollInterval: parseDuration(v.GetString("TRIGGER_POLL_INTERVAL"), time.Second),
		BatchSize:    v.GetInt("TRIGGER_BATCH_SIZE"),
		MaxRetries:   v.GetInt("TRIGGER_MAX_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("TRIGGER_RETRY_DELAY"), 100*time.Millisecond),
		Channel:      v.GetString("TRIGGER_CHANNEL"),
	}

	cfg.Reports = ReportsConfig{
		PageSize:     v.GetInt("REPORT_PAGE_SIZE"),
		CacheEnabled: v.GetBool("REPORT_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("REPORT_CACHE_TTL"), time.Minute),
	}

	cfg.Tracing = TracingConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
		SampleRatio: v.GetFloat64("OTEL_SAMPLER_RATIO"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academic_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PASSING_GRADE", 3.0)
	v.SetDefault("GRADUATION_MIN_AVERAGE", 3.0)
	v.SetDefault("RISK_THRESHOLD", 3.0)
	v.SetDefault("RISK_HIGH_THRESHOLD", 2.5)
	v.SetDefault("DEFAULT_COURSE_CAPACITY", 30)
	v.SetDefault("POLICY_FILE", "")

	v.SetDefault("TX_TIMEOUT", "5s")
	v.SetDefault("TX_MAX_RETRIES", 2)
	v.SetDefault("TX_RETRY_DELAY", "50ms")

	v.SetDefault("TRIGGER_ENABLED", true)
	v.SetDefault("TRIGGER_POLL_INTERVAL", "1s")
	v.SetDefault("TRIGGER_BATCH_SIZE", 100)
	v.SetDefault("TRIGGER_MAX_RETRIES", 5)
	v.SetDefault("TRIGGER_RETRY_DELAY", "100ms")
	v.SetDefault("TRIGGER_CHANNEL", "academic:changes")

	v.SetDefault("REPORT_PAGE_SIZE", 200)
	v.SetDefault("REPORT_CACHE_ENABLED", false)
	v.SetDefault("REPORT_CACHE_TTL", "1m")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "academic-engine")
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// SetConfigFile reports a missing .env as a path error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
