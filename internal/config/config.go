// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (HELLOSURE_* prefix)
//  2. Config file (~/.hellosure/config.yaml)
//  3. Default values
//
// Sensitive values (the Postgres password) are masked in MarshalJSON and
// never logged.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the completion model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTopK indicates the retrieval topK is out of range.
	ErrInvalidTopK = errors.New("invalid topK")

	// ErrInvalidCandidates indicates the vector candidate pool is too small.
	ErrInvalidCandidates = errors.New("invalid candidate pool size")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")
)

// Defaults applied by Load when neither the environment nor the config file
// provides a value.
const (
	DefaultModelName     = "googleai/gemini-2.5-flash"
	DefaultEmbedderModel = "gemini-embedding-001"
	DefaultTemperature   = float32(1.0)
	DefaultMaxTokens     = 1024
	DefaultMaxTurns      = 5
	DefaultTopK          = 3
	DefaultCandidates    = 50
	DefaultServerAddr    = "127.0.0.1:3400"
	DefaultIngestStart   = "https://www.hellosure.app/index.php/it/"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	// Completion and embedding models (Genkit googleai names).
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`
	MaxTurns      int     `mapstructure:"max_turns" json:"max_turns"`

	// Retrieval parameters.
	TopK       int `mapstructure:"top_k" json:"top_k"`
	Candidates int `mapstructure:"candidates" json:"candidates"`

	// HTTP server.
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// PostgreSQL connection.
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// Ingestion.
	IngestStartURL string `mapstructure:"ingest_start_url" json:"ingest_start_url"`
	IngestLockPath string `mapstructure:"ingest_lock_path" json:"ingest_lock_path"`

	// Observability (OTLP/HTTP trace export).
	TracingEnabled  bool   `mapstructure:"tracing_enabled" json:"tracing_enabled"`
	TracingEndpoint string `mapstructure:"tracing_endpoint" json:"tracing_endpoint"`

	// Logging.
	LogJSON bool `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration from the environment and the optional config file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.hellosure")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HELLOSURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("max_tokens", DefaultMaxTokens)
	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("candidates", DefaultCandidates)
	v.SetDefault("server_addr", DefaultServerAddr)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "hellosure")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "hellosure")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("ingest_start_url", DefaultIngestStart)
	v.SetDefault("ingest_lock_path", "/tmp/hellosure-ingest.lock")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("tracing_endpoint", "localhost:4318")
	v.SetDefault("log_json", false)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; env vars and defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration values and returns a sentinel error for the
// first violation found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidEmbedderModel)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: must be between 1 and 65536, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.TopK <= 0 || c.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.Candidates < c.TopK {
		return fmt.Errorf("%w: must be at least topK (%d), got %d", ErrInvalidCandidates, c.TopK, c.Candidates)
	}
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidPostgresDBName)
	}
	return nil
}

// PostgresURL returns the postgres:// connection URL, with the password
// URL-escaped. Used both by pgxpool and by golang-migrate.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	if c.PostgresUser != "" {
		if c.PostgresPassword != "" {
			u.User = url.UserPassword(c.PostgresUser, c.PostgresPassword)
		} else {
			u.User = url.User(c.PostgresUser)
		}
	}
	q := url.Values{}
	if c.PostgresSSLMode != "" {
		q.Set("sslmode", c.PostgresSSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
