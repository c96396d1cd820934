package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the hermes service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - HTTP: Settings for the public API server.
// - MonitoringPort: The port for the health and metrics server.
// - Store: Which specialist store backs the nearby lookup.
// - Database: Configuration settings for the PostgreSQL (PostGIS) database.
// - Elastic: Configuration settings for the Elasticsearch store.
// - Nearby: Defaults and bounds for nearby lookups.
// - Analysis: Downstream analysis services, timeouts, fusion weights and breaker policy.
// - Geocoder: Provider used to resolve addresses into coordinates.
// - Locator: Background worker that backfills specialist coordinates.
type Config struct {
	Env            string         `yaml:"env"`             // Env is the current environment: local, development, production.
	HTTP           HTTPConfig     `yaml:"http"`            // HTTP holds the API server settings.
	MonitoringPort int            `yaml:"monitoring_port"` // MonitoringPort serves /healthz and /metrics.
	Store          string         `yaml:"store"`           // Store is "postgres" or "elasticsearch".
	Database       PostgresConfig `yaml:"postgres"`        // Database holds the postgres database configuration.
	Elastic        ElasticConfig  `yaml:"elastic"`         // Elastic holds the elasticsearch configuration.
	Nearby         NearbyConfig   `yaml:"nearby"`          // Nearby holds lookup bounds.
	Analysis       AnalysisConfig `yaml:"analysis"`        // Analysis holds the downstream services configuration.
	Geocoder       GeocoderConfig `yaml:"geocoder"`        // Geocoder holds the geocoding provider configuration.
	Locator        LocatorConfig  `yaml:"locator"`         // Locator holds the backfill worker configuration.
}

// HTTPConfig configures the public API server.
type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateLimit    int           `yaml:"rate_limit"` // Requests per minute per client IP, 0 disables.
	CORSOrigins  []string      `yaml:"cors_origins"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host         string        `yaml:"host"`          // Host is the database server address.
	Port         string        `yaml:"port"`          // Port is the database server port.
	User         string        `yaml:"user"`          // User is the database user.
	Password     string        `yaml:"password"`      // Password is the database user's password.
	Name         string        `yaml:"db_name"`       // Name is the name of the database.
	QueryTimeout time.Duration `yaml:"query_timeout"` // QueryTimeout bounds every store query.
	EnsureSchema bool          `yaml:"ensure_schema"` // EnsureSchema creates the table and index on startup.
}

// ElasticConfig configures the Elasticsearch specialist store.
type ElasticConfig struct {
	URL   string `yaml:"url"`
	Index string `yaml:"index"`
}

// NearbyConfig bounds nearby lookups.
type NearbyConfig struct {
	MaxLimit int `yaml:"max_limit"`
}

// AnalysisConfig configures the downstream analysis services.
type AnalysisConfig struct {
	TextURL       string        `yaml:"text_url"`
	VoiceURL      string        `yaml:"voice_url"`
	FaceURL       string        `yaml:"face_url"`
	Timeout       time.Duration `yaml:"timeout"`        // Timeout bounds every single downstream call.
	HealthTimeout time.Duration `yaml:"health_timeout"` // HealthTimeout bounds every health probe.
	Weights       Weights       `yaml:"weights"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

// Weights are the base fusion weights per modality.
type Weights struct {
	Text  float64 `yaml:"text"`
	Voice float64 `yaml:"voice"`
	Face  float64 `yaml:"face"`
}

// BreakerConfig configures the per-modality circuit breakers.
type BreakerConfig struct {
	MinRequests  uint32        `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
	Interval     time.Duration `yaml:"interval"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
}

// GeocoderConfig configures the geocoding provider. An empty ProviderType disables geocoding.
type GeocoderConfig struct {
	ProviderType string `yaml:"provider_type"`
	APIKey       string `yaml:"api_key"`
	RateLimit    int    `yaml:"rate_limit"`
}

// LocatorConfig configures the coordinates backfill worker.
type LocatorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Workers     int           `yaml:"workers"`
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	AddrPrefix  string        `yaml:"addr_prefix"`
}

// envBindings maps configuration keys to the environment variables that override them.
var envBindings = map[string]string{
	"env":                            "HERMES_ENV",
	"http.port":                      "HERMES_HTTP_PORT",
	"http.read_timeout":              "HERMES_HTTP_READ_TIMEOUT",
	"http.write_timeout":             "HERMES_HTTP_WRITE_TIMEOUT",
	"http.rate_limit":                "HERMES_RATE_LIMIT",
	"http.cors_origins":              "HERMES_CORS_ORIGINS",
	"http.max_body_bytes":            "HERMES_MAX_BODY_BYTES",
	"monitoring_port":                "HERMES_HEALTH_PORT",
	"store":                          "HERMES_STORE",
	"postgres.host":                  "DB_HOST",
	"postgres.port":                  "DB_PORT",
	"postgres.user":                  "DB_USERNAME",
	"postgres.password":              "DB_PASSWORD",
	"postgres.db_name":               "DB_NAME",
	"postgres.query_timeout":         "DB_QUERY_TIMEOUT",
	"postgres.ensure_schema":         "DB_ENSURE_SCHEMA",
	"elastic.url":                    "ES_URL",
	"elastic.index":                  "ES_INDEX",
	"nearby.max_limit":               "HERMES_NEARBY_MAX_LIMIT",
	"analysis.text_url":              "AI_TEXT_SERVICE_URL",
	"analysis.voice_url":             "AI_VOICE_SERVICE_URL",
	"analysis.face_url":              "AI_FACE_SERVICE_URL",
	"analysis.timeout":               "HERMES_ANALYSIS_TIMEOUT",
	"analysis.health_timeout":        "HERMES_HEALTH_TIMEOUT",
	"analysis.weights.text":          "HERMES_WEIGHT_TEXT",
	"analysis.weights.voice":         "HERMES_WEIGHT_VOICE",
	"analysis.weights.face":          "HERMES_WEIGHT_FACE",
	"analysis.breaker.min_requests":  "HERMES_BREAKER_MIN_REQUESTS",
	"analysis.breaker.failure_ratio": "HERMES_BREAKER_FAILURE_RATIO",
	"analysis.breaker.interval":      "HERMES_BREAKER_INTERVAL",
	"analysis.breaker.open_timeout":  "HERMES_BREAKER_OPEN_TIMEOUT",
	"geocoder.provider_type":         "HERMES_GEOCODER_TYPE",
	"geocoder.api_key":               "HERMES_GEOCODER_KEY",
	"geocoder.rate_limit":            "HERMES_GEOCODER_RATE_LIMIT",
	"locator.enabled":                "HERMES_LOCATOR_ENABLED",
	"locator.workers":                "HERMES_LOCATOR_WORKERS",
	"locator.interval":               "HERMES_LOCATOR_INTERVAL",
	"locator.batch_size":             "HERMES_LOCATOR_BATCH_SIZE",
	"locator.max_attempts":           "HERMES_LOCATOR_MAX_ATTEMPTS",
	"locator.addr_prefix":            "HERMES_ADDRESS_PREFIX",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("http.port", "8000")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.rate_limit", "60")
	v.SetDefault("http.cors_origins", "*")
	v.SetDefault("http.max_body_bytes", "10485760")
	v.SetDefault("monitoring_port", "8080")
	v.SetDefault("store", "postgres")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.query_timeout", "5s")
	v.SetDefault("postgres.ensure_schema", "false")
	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.index", "specialists")
	v.SetDefault("nearby.max_limit", "100")
	v.SetDefault("analysis.text_url", "http://localhost:8002")
	v.SetDefault("analysis.voice_url", "http://localhost:8003")
	v.SetDefault("analysis.face_url", "http://localhost:8004")
	v.SetDefault("analysis.timeout", "10s")
	v.SetDefault("analysis.health_timeout", "2s")
	v.SetDefault("analysis.weights.text", "0.4")
	v.SetDefault("analysis.weights.voice", "0.3")
	v.SetDefault("analysis.weights.face", "0.3")
	v.SetDefault("analysis.breaker.min_requests", "10")
	v.SetDefault("analysis.breaker.failure_ratio", "0.6")
	v.SetDefault("analysis.breaker.interval", "1m")
	v.SetDefault("analysis.breaker.open_timeout", "30s")
	v.SetDefault("geocoder.provider_type", "")
	v.SetDefault("geocoder.rate_limit", "10")
	v.SetDefault("locator.enabled", "false")
	v.SetDefault("locator.workers", "4")
	v.SetDefault("locator.interval", "10m")
	v.SetDefault("locator.batch_size", "100")
	v.SetDefault("locator.max_attempts", "5")
	v.SetDefault("locator.addr_prefix", "")
}

// MustLoad loads the configuration from the environment (optionally a .env file) and an
// optional YAML file named by HERMES_CONFIG_FILE. Environment variables take precedence over
// the file. It panics when a value cannot be parsed.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	_ = v.BindEnv("config_file", "HERMES_CONFIG_FILE")
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Sprintf("failed to read configuration file: %v", err))
		}
	}

	cfg := &Config{
		Env:            v.GetString("env"),
		MonitoringPort: mustInt(v, "monitoring_port", "failed to parse port for monitoring server from configuration"),
		Store:          v.GetString("store"),
		HTTP: HTTPConfig{
			Port:         mustInt(v, "http.port", "failed to parse port for api server from configuration"),
			ReadTimeout:  mustDuration(v, "http.read_timeout"),
			WriteTimeout: mustDuration(v, "http.write_timeout"),
			RateLimit:    mustInt(v, "http.rate_limit", "failed to parse rate limit from configuration, must be an integer"),
			CORSOrigins:  stringList(v, "http.cors_origins"),
			MaxBodyBytes: int64(mustInt(v, "http.max_body_bytes", "failed to parse max body size from configuration")),
		},
		Database: PostgresConfig{
			Host:         v.GetString("postgres.host"),
			Port:         v.GetString("postgres.port"),
			User:         v.GetString("postgres.user"),
			Password:     v.GetString("postgres.password"),
			Name:         v.GetString("postgres.db_name"),
			QueryTimeout: mustDuration(v, "postgres.query_timeout"),
			EnsureSchema: mustBool(v, "postgres.ensure_schema"),
		},
		Elastic: ElasticConfig{
			URL:   v.GetString("elastic.url"),
			Index: v.GetString("elastic.index"),
		},
		Nearby: NearbyConfig{
			MaxLimit: mustInt(v, "nearby.max_limit", "failed to parse nearby max limit from configuration"),
		},
		Analysis: AnalysisConfig{
			TextURL:       v.GetString("analysis.text_url"),
			VoiceURL:      v.GetString("analysis.voice_url"),
			FaceURL:       v.GetString("analysis.face_url"),
			Timeout:       mustDuration(v, "analysis.timeout"),
			HealthTimeout: mustDuration(v, "analysis.health_timeout"),
			Weights: Weights{
				Text:  mustFloat(v, "analysis.weights.text"),
				Voice: mustFloat(v, "analysis.weights.voice"),
				Face:  mustFloat(v, "analysis.weights.face"),
			},
			Breaker: BreakerConfig{
				MinRequests: uint32(mustInt(v, "analysis.breaker.min_requests",
					"failed to parse breaker min requests from configuration")),
				FailureRatio: mustFloat(v, "analysis.breaker.failure_ratio"),
				Interval:     mustDuration(v, "analysis.breaker.interval"),
				OpenTimeout:  mustDuration(v, "analysis.breaker.open_timeout"),
			},
		},
		Geocoder: GeocoderConfig{
			ProviderType: v.GetString("geocoder.provider_type"),
			APIKey:       v.GetString("geocoder.api_key"),
			RateLimit:    mustInt(v, "geocoder.rate_limit", "failed to parse geocoder rate limit from configuration"),
		},
		Locator: LocatorConfig{
			Enabled: mustBool(v, "locator.enabled"),
			Workers: mustInt(v, "locator.workers",
				"failed to parse workers from configuration, must be an integer types"),
			Interval:    mustDuration(v, "locator.interval"),
			BatchSize:   mustInt(v, "locator.batch_size", "failed to parse locator batch size from configuration"),
			MaxAttempts: mustInt(v, "locator.max_attempts", "failed to parse locator max attempts from configuration"),
			AddrPrefix:  v.GetString("locator.addr_prefix"),
		},
	}

	if cfg.Analysis.Timeout <= 0 {
		panic("analysis timeout must be positive")
	}
	w := cfg.Analysis.Weights
	if w.Text < 0 || w.Voice < 0 || w.Face < 0 || w.Text+w.Voice+w.Face <= 0 {
		panic("fusion weights must be non-negative with a positive sum")
	}
	if r := cfg.Analysis.Breaker.FailureRatio; r <= 0 || r > 1 {
		panic("breaker failure ratio must be in (0, 1]")
	}
	if cfg.Locator.Enabled && cfg.Locator.Interval <= 0 {
		panic("locator interval must be positive")
	}

	return cfg
}

func mustInt(v *viper.Viper, key, msg string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		panic(msg)
	}

	return n
}

func mustFloat(v *viper.Viper, key string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s from configuration", key))
	}

	return f
}

func mustBool(v *viper.Viper, key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s from configuration", key))
	}

	return b
}

func mustDuration(v *viper.Viper, key string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s from configuration", key))
	}

	return d
}

// stringList accepts either a YAML sequence or a comma separated string.
func stringList(v *viper.Viper, key string) []string {
	if _, ok := v.Get(key).([]any); ok {
		return v.GetStringSlice(key)
	}

	var out []string
	for _, item := range strings.Split(v.GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
