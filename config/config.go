package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: nil unless DATABASE_URL or DB_HOST is set
	Corpus        CorpusConfig
	Embedding     EmbeddingConfig
	Generation    GenerationConfig
	Retrieval     RetrievalConfig
	Retry         RetryConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Environment   string

	// MaxConcurrentRequests bounds in-flight pipeline runs
	MaxConcurrentRequests int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// Corpus sources
const (
	CorpusSourceInline   = "inline"
	CorpusSourceFile     = "file"
	CorpusSourcePostgres = "postgres"
	CorpusSourceS3       = "s3"
)

// CorpusConfig selects where the document collection is loaded from
type CorpusConfig struct {
	Source string
	Path   string // file source
	S3     S3Config
}

// S3Config locates a corpus object in an S3-compatible bucket
type S3Config struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or LocalStack
	AccessKeyID     string
	SecretAccessKey string
}

// EmbeddingConfig holds embedding backend configuration
type EmbeddingConfig struct {
	Provider     string // hash, openai, ollama
	Model        string
	Dimension    int
	BatchSize    int
	BuildWorkers int
	CacheDir     string // Badger directory; empty disables the build cache
	Timeout      time.Duration
}

// GenerationConfig holds generation backend configuration
type GenerationConfig struct {
	Provider       string // extractive, openai, gemini, ollama
	Model          string
	MaxLength      int
	Temperature    float64
	Timeout        time.Duration
	PromptTemplate string
}

// RetrievalConfig holds retrieval and index configuration
type RetrievalConfig struct {
	TopK            int
	MaxTopK         int    // Upper bound for a per-request top_k
	IndexKind       string // flat or hnsw
	HNSWM           int
	HNSWEfConstruct int
	HNSWEfSearch    int
}

// RetryConfig bounds retries of model backend calls
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ProvidersConfig holds model provider credentials and endpoints
type ProvidersConfig struct {
	OpenAI OpenAIConfig
	Gemini GeminiConfig
	Ollama OllamaConfig
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// GeminiConfig holds Google Gemini provider configuration
type GeminiConfig struct {
	APIKey string
}

// OllamaConfig holds local Ollama server configuration
type OllamaConfig struct {
	BaseURL string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Corpus: CorpusConfig{
			Source: strings.ToLower(getEnv("CORPUS_SOURCE", CorpusSourceInline)),
			Path:   getEnv("CORPUS_PATH", ""),
			S3: S3Config{
				Bucket:          getEnv("CORPUS_S3_BUCKET", ""),
				Key:             getEnv("CORPUS_S3_KEY", ""),
				Region:          getEnv("CORPUS_S3_REGION", getEnv("AWS_REGION", "us-east-1")),
				Endpoint:        getEnv("CORPUS_S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			},
		},
		Embedding: EmbeddingConfig{
			Provider:     strings.ToLower(getEnv("EMBEDDING_PROVIDER", "hash")),
			Model:        getEnv("EMBEDDING_MODEL", ""),
			Dimension:    getEnvAsInt("EMBEDDING_DIMENSION", 384),
			BatchSize:    getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
			BuildWorkers: getEnvAsInt("EMBEDDING_BUILD_WORKERS", 4),
			CacheDir:     getEnv("EMBEDDING_CACHE_DIR", ""),
			Timeout:      getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Generation: GenerationConfig{
			Provider:       strings.ToLower(getEnv("GENERATION_PROVIDER", "extractive")),
			Model:          getEnv("GENERATION_MODEL", ""),
			MaxLength:      getEnvAsInt("GENERATION_MAX_LENGTH", 100),
			Temperature:    getEnvAsFloat("GENERATION_TEMPERATURE", 0),
			Timeout:        getEnvAsDuration("GENERATION_TIMEOUT", 30*time.Second),
			PromptTemplate: getEnv("GENERATION_PROMPT_TEMPLATE", ""),
		},
		Retrieval: RetrievalConfig{
			TopK:            getEnvAsInt("RETRIEVAL_TOP_K", 3),
			MaxTopK:         getEnvAsInt("RETRIEVAL_MAX_TOP_K", 50),
			IndexKind:       strings.ToLower(getEnv("INDEX_KIND", "flat")),
			HNSWM:           getEnvAsInt("HNSW_M", 16),
			HNSWEfConstruct: getEnvAsInt("HNSW_EF_CONSTRUCTION", 200),
			HNSWEfSearch:    getEnvAsInt("HNSW_EF_SEARCH", 64),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 1),
			InitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
			MaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 2*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
			},
			Gemini: GeminiConfig{
				APIKey: getEnv("GEMINI_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				BaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		MaxConcurrentRequests: getEnvAsInt("MAX_CONCURRENT_REQUESTS", 8),
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case CorpusSourceInline:
	case CorpusSourceFile:
		if c.Corpus.Path == "" {
			return fmt.Errorf("CORPUS_PATH is required when CORPUS_SOURCE=file")
		}
	case CorpusSourcePostgres:
		if c.Database == nil {
			return fmt.Errorf("database configuration required for postgres corpus: set DATABASE_URL or DB_HOST")
		}
	case CorpusSourceS3:
		if c.Corpus.S3.Bucket == "" || c.Corpus.S3.Key == "" {
			return fmt.Errorf("CORPUS_S3_BUCKET and CORPUS_S3_KEY are required when CORPUS_SOURCE=s3")
		}
	default:
		return fmt.Errorf("unknown corpus source %q", c.Corpus.Source)
	}

	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	switch c.Embedding.Provider {
	case "hash", "ollama":
	case "openai":
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive")
	}
	if c.Embedding.BuildWorkers <= 0 {
		return fmt.Errorf("embedding build workers must be positive")
	}

	switch c.Generation.Provider {
	case "extractive", "ollama":
	case "openai":
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai generation provider")
		}
	case "gemini":
		if c.Providers.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini generation provider")
		}
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	if c.Generation.MaxLength <= 0 {
		return fmt.Errorf("generation max length must be positive")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation timeout must be positive")
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top k must be positive")
	}
	if c.Retrieval.MaxTopK < c.Retrieval.TopK {
		return fmt.Errorf("retrieval max top k must be at least top k")
	}
	if c.Retrieval.IndexKind != "flat" && c.Retrieval.IndexKind != "hnsw" {
		return fmt.Errorf("unknown index kind %q", c.Retrieval.IndexKind)
	}

	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max concurrent requests must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set.
func loadDatabaseConfig() *DatabaseConfig {
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	host := getEnv("DB_HOST", "")
	if host == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            host,
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "rag"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "rag"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
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
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
