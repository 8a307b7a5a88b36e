package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration
type Config struct {
	Environment string

	Database DatabaseConfig
	Queue    QueueConfig
	Cache    CacheConfig
	LLM      LLMConfig
	Export   ExportConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	LogLevel        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // minutes
	MaxConnIdleTime int // minutes
}

// QueueConfig holds Asynq/Redis settings for the background worker
type QueueConfig struct {
	RedisHost      string
	RedisPort      int
	RedisPassword  string
	RedisDB        int
	DialTimeout    int // seconds
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	Concurrency    int
	StrictPriority bool
	MaxRetries     int
}

// CacheConfig holds Redis settings for the completion output cache
type CacheConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	DialTimeout   int // seconds
	ReadTimeout   int // seconds
	WriteTimeout  int // seconds
	PoolSize      int
	MinIdleConns  int
	CompletionTTL int // hours
}

// LLMConfig holds model-provider settings
type LLMConfig struct {
	OpenAIAPIKey   string
	RelabelModel   string
	RequestTimeout int // seconds
	MaxConcurrent  int
}

// ExportConfig holds dataset export settings
type ExportConfig struct {
	ArtifactDir string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using environment variables only")
		}
	}

	// Server / environment defaults
	viper.SetDefault("ENV", "development")

	// Database defaults
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_NAME", "finetune_platform")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_LOG_LEVEL", "silent")
	viper.SetDefault("DB_MAX_CONNECTIONS", 20)
	viper.SetDefault("DB_MIN_CONNECTIONS", 2)
	viper.SetDefault("DB_MAX_CONN_LIFETIME_MIN", 60)
	viper.SetDefault("DB_MAX_CONN_IDLE_MIN", 10)

	// Queue defaults
	viper.SetDefault("QUEUE_REDIS_HOST", "localhost")
	viper.SetDefault("QUEUE_REDIS_PORT", 6379)
	viper.SetDefault("QUEUE_REDIS_DB", 0)
	viper.SetDefault("QUEUE_DIAL_TIMEOUT", 5)
	viper.SetDefault("QUEUE_READ_TIMEOUT", 30)
	viper.SetDefault("QUEUE_WRITE_TIMEOUT", 30)
	viper.SetDefault("QUEUE_CONCURRENCY", 10)
	viper.SetDefault("QUEUE_STRICT_PRIORITY", false)
	viper.SetDefault("QUEUE_MAX_RETRIES", 3)

	// Cache defaults
	viper.SetDefault("CACHE_REDIS_HOST", "localhost")
	viper.SetDefault("CACHE_REDIS_PORT", 6379)
	viper.SetDefault("CACHE_REDIS_DB", 1)
	viper.SetDefault("CACHE_DIAL_TIMEOUT", 5)
	viper.SetDefault("CACHE_READ_TIMEOUT", 3)
	viper.SetDefault("CACHE_WRITE_TIMEOUT", 3)
	viper.SetDefault("CACHE_POOL_SIZE", 10)
	viper.SetDefault("CACHE_MIN_IDLE_CONNS", 2)
	viper.SetDefault("CACHE_COMPLETION_TTL_HOURS", 168)

	// LLM defaults
	viper.SetDefault("RELABEL_MODEL", "gpt-4o")
	viper.SetDefault("LLM_REQUEST_TIMEOUT", 120)
	viper.SetDefault("LLM_MAX_CONCURRENT", 5)

	// Export defaults
	viper.SetDefault("EXPORT_ARTIFACT_DIR", "/tmp/exports")

	viper.AutomaticEnv()

	config := &Config{
		Environment: viper.GetString("ENV"),
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			LogLevel:        viper.GetString("DB_LOG_LEVEL"),
			MaxConnections:  viper.GetInt("DB_MAX_CONNECTIONS"),
			MinConnections:  viper.GetInt("DB_MIN_CONNECTIONS"),
			MaxConnLifetime: viper.GetInt("DB_MAX_CONN_LIFETIME_MIN"),
			MaxConnIdleTime: viper.GetInt("DB_MAX_CONN_IDLE_MIN"),
		},
		Queue: QueueConfig{
			RedisHost:      viper.GetString("QUEUE_REDIS_HOST"),
			RedisPort:      viper.GetInt("QUEUE_REDIS_PORT"),
			RedisPassword:  viper.GetString("QUEUE_REDIS_PASSWORD"),
			RedisDB:        viper.GetInt("QUEUE_REDIS_DB"),
			DialTimeout:    viper.GetInt("QUEUE_DIAL_TIMEOUT"),
			ReadTimeout:    viper.GetInt("QUEUE_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("QUEUE_WRITE_TIMEOUT"),
			Concurrency:    viper.GetInt("QUEUE_CONCURRENCY"),
			StrictPriority: viper.GetBool("QUEUE_STRICT_PRIORITY"),
			MaxRetries:     viper.GetInt("QUEUE_MAX_RETRIES"),
		},
		Cache: CacheConfig{
			Host:          viper.GetString("CACHE_REDIS_HOST"),
			Port:          viper.GetInt("CACHE_REDIS_PORT"),
			Password:      viper.GetString("CACHE_REDIS_PASSWORD"),
			DB:            viper.GetInt("CACHE_REDIS_DB"),
			DialTimeout:   viper.GetInt("CACHE_DIAL_TIMEOUT"),
			ReadTimeout:   viper.GetInt("CACHE_READ_TIMEOUT"),
			WriteTimeout:  viper.GetInt("CACHE_WRITE_TIMEOUT"),
			PoolSize:      viper.GetInt("CACHE_POOL_SIZE"),
			MinIdleConns:  viper.GetInt("CACHE_MIN_IDLE_CONNS"),
			CompletionTTL: viper.GetInt("CACHE_COMPLETION_TTL_HOURS"),
		},
		LLM: LLMConfig{
			OpenAIAPIKey:   viper.GetString("OPENAI_API_KEY"),
			RelabelModel:   viper.GetString("RELABEL_MODEL"),
			RequestTimeout: viper.GetInt("LLM_REQUEST_TIMEOUT"),
			MaxConcurrent:  viper.GetInt("LLM_MAX_CONCURRENT"),
		},
		Export: ExportConfig{
			ArtifactDir: viper.GetString("EXPORT_ARTIFACT_DIR"),
		},
	}

	// Validate required fields
	if config.Database.User == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if config.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if config.LLM.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return config, nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LogConfig logs the configuration (hiding sensitive data)
func (c *Config) LogConfig() {
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", c.Environment)
	log.Printf("  Database: %s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Database)
	log.Printf("  Queue Redis: %s:%d (DB: %d)", c.Queue.RedisHost, c.Queue.RedisPort, c.Queue.RedisDB)
	log.Printf("  Cache Redis: %s:%d (DB: %d)", c.Cache.Host, c.Cache.Port, c.Cache.DB)
	log.Printf("  Worker Concurrency: %d", c.Queue.Concurrency)

	if c.LLM.OpenAIAPIKey != "" {
		log.Printf("  OpenAI API Key: [CONFIGURED]")
	} else {
		log.Printf("  OpenAI API Key: [NOT SET]")
	}
}
