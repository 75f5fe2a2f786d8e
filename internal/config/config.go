package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
// It is loaded once at process start and treated as read-only afterwards.
type Config struct {
	PostgreSQL PostgreSQLConfig
	Store      StoreConfig
	Server     ServerConfig
	Search     SearchConfig
	Ranking    RankingConfig
	Timeouts   TimeoutConfig
	Logging    LoggingConfig
	OpenAI     OpenAIConfig
	Redis      RedisConfig
	MCP        MCPConfig
	NATS       NATSConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the fields below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// StoreConfig selects the listing store backend
type StoreConfig struct {
	Backend      string // "postgres" or "memory"
	ListingsFile string // JSON fixture for the memory backend
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// SearchConfig holds search-related configuration
type SearchConfig struct {
	RetrievalCap int
	DefaultK     int
}

// RankingConfig holds the hybrid score weights
type RankingConfig struct {
	Alpha      float64 // semantic weight
	Beta       float64 // lexical weight
	ParamsFile string
}

// TimeoutConfig bounds each external call made while serving a search
type TimeoutConfig struct {
	Interpret time.Duration
	Retrieve  time.Duration
	Embed     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string // model for query interpretation
	ChatTemperature     float64
	EmbeddingModel      string
	EmbeddingDimensions int
	Enabled             bool
}

// RedisConfig configures the optional embedding cache
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
	Enabled  bool
}

// MCPConfig configures the MCP tool server
type MCPConfig struct {
	Transport string // "off", "stdio" or "http"
	HTTPAddr  string
	HTTPPath  string
}

// NATSConfig configures the request/reply search responder
type NATSConfig struct {
	URL     string
	Subject string
	Queue   string
	Enabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "rental_database"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Store: StoreConfig{
			Backend:      getEnv("STORE_BACKEND", "postgres"),
			ListingsFile: getEnv("LISTINGS_FILE", ""),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Search: SearchConfig{
			RetrievalCap: getEnvAsInt("SEARCH_RETRIEVAL_CAP", 50),
			DefaultK:     getEnvAsInt("SEARCH_DEFAULT_K", 10),
		},
		Ranking: RankingConfig{
			Alpha:      getEnvAsFloat("RANK_ALPHA", 0.6),
			Beta:       getEnvAsFloat("RANK_BETA", 0.4),
			ParamsFile: getEnv("RANK_PARAMS_FILE", ""),
		},
		Timeouts: TimeoutConfig{
			Interpret: getEnvAsDuration("TIMEOUT_INTERPRET", 5*time.Second),
			Retrieve:  getEnvAsDuration("TIMEOUT_RETRIEVE", 3*time.Second),
			Embed:     getEnvAsDuration("TIMEOUT_EMBED", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature:     getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.3),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: getEnvAsDuration("EMBED_CACHE_TTL", 24*time.Hour),
			Enabled:  getEnv("REDIS_URL", "") != "",
		},
		MCP: MCPConfig{
			Transport: getEnv("MCP_TRANSPORT", "off"),
			HTTPAddr:  getEnv("MCP_HTTP_ADDR", "127.0.0.1:18808"),
			HTTPPath:  getEnv("MCP_HTTP_PATH", "/mcp"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SEARCH_SUBJECT", "rentals.search"),
			Queue:   getEnv("NATS_SEARCH_QUEUE", "rental-search"),
			Enabled: getEnv("NATS_URL", "") != "",
		},
	}

	if cfg.Ranking.ParamsFile != "" {
		if err := cfg.Ranking.loadParams(cfg.Ranking.ParamsFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the search pipeline cannot honor
func (c *Config) Validate() error {
	var errs []error
	if c.Ranking.Alpha < 0 || c.Ranking.Beta < 0 {
		errs = append(errs, fmt.Errorf("ranking weights must be non-negative (alpha=%v, beta=%v)", c.Ranking.Alpha, c.Ranking.Beta))
	}
	if c.Search.RetrievalCap < 1 {
		errs = append(errs, fmt.Errorf("retrieval cap must be positive, got %d", c.Search.RetrievalCap))
	}
	if c.Search.DefaultK < 0 || c.Search.DefaultK > c.Search.RetrievalCap {
		errs = append(errs, fmt.Errorf("default k %d must be within [0, %d]", c.Search.DefaultK, c.Search.RetrievalCap))
	}
	switch c.Store.Backend {
	case "postgres":
	case "memory":
		if c.Store.ListingsFile == "" {
			errs = append(errs, errors.New("memory store backend requires LISTINGS_FILE"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	switch c.MCP.Transport {
	case "off", "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("unsupported MCP transport %q", c.MCP.Transport))
	}
	return errors.Join(errs...)
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// rankingParams mirrors the ranker parameter file:
//
//	primary_ranker:
//	  alpha: 0.6
//	  beta: 0.4
type rankingParams struct {
	PrimaryRanker struct {
		Alpha *float64 `yaml:"alpha"`
		Beta  *float64 `yaml:"beta"`
	} `yaml:"primary_ranker"`
}

// loadParams overrides weights with the values present in a YAML params file
func (r *RankingConfig) loadParams(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read ranking params: %w", err)
	}

	var params rankingParams
	if err := yaml.Unmarshal(data, &params); err != nil {
		return fmt.Errorf("failed to parse ranking params %s: %w", path, err)
	}

	if params.PrimaryRanker.Alpha != nil {
		r.Alpha = *params.PrimaryRanker.Alpha
	}
	if params.PrimaryRanker.Beta != nil {
		r.Beta = *params.PrimaryRanker.Beta
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer setting, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("invalid float setting, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("750ms", "5s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration setting, using default", "key", key, "default", defaultValue)
	return defaultValue
}
