package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	OpenAI   OpenAIConfig
	Analysis AnalysisConfig
	Upload   UploadConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	ImageDetail string
}

type AnalysisConfig struct {
	ProviderTimeout time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
	Concurrency     int
	MaxBatchSize    int
	DeadlineReserve time.Duration

	RecommendationsEnabled     bool
	RecommendationsMaxTokens   int
	RecommendationsTemperature float64
}

type UploadConfig struct {
	MaxFileSize       int64
	AllowedTypes      []string
	AllowedExtensions []string
	MaxDimension      int
	JPEGQuality       int
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	CacheDuration time.Duration
}

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// Enabled reports whether a result cache should be wired.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// Enabled reports whether analysis events should be published.
func (c RabbitMQConfig) Enabled() bool { return c.URL != "" }

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDuration("WRITE_TIMEOUT", 6*time.Minute),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 5*time.Minute),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			MaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 1000),
			Temperature: getEnvAsFloat("OPENAI_TEMPERATURE", 0.1),
			ImageDetail: getEnv("OPENAI_IMAGE_DETAIL", "high"),
		},
		Analysis: AnalysisConfig{
			ProviderTimeout:            getDuration("PROVIDER_TIMEOUT", 60*time.Second),
			MaxAttempts:                getEnvAsInt("MAX_ATTEMPTS", 3),
			RetryBackoff:               getDuration("RETRY_BACKOFF", 500*time.Millisecond),
			Concurrency:                getEnvAsInt("BATCH_CONCURRENCY", 4),
			MaxBatchSize:               getEnvAsInt("MAX_BATCH_SIZE", 10),
			DeadlineReserve:            getDuration("DEADLINE_RESERVE", 5*time.Second),
			RecommendationsEnabled:     getEnvAsBool("RECOMMENDATIONS_ENABLED", true),
			RecommendationsMaxTokens:   getEnvAsInt("RECOMMENDATIONS_MAX_TOKENS", 2000),
			RecommendationsTemperature: getEnvAsFloat("RECOMMENDATIONS_TEMPERATURE", 0.8),
		},
		Upload: UploadConfig{
			MaxFileSize:       getEnvAsInt64("MAX_FILE_SIZE", 16*1024*1024), // 16MB
			AllowedTypes:      []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
			AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "webp"},
			MaxDimension:      getEnvAsInt("MAX_IMAGE_DIMENSION", 1024),
			JPEGQuality:       getEnvAsInt("JPEG_QUALITY", 85),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			CacheDuration: getDuration("CACHE_DURATION", 24*time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        getEnv("RABBITMQ_URL", ""),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "upcycle.analysis"),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "analysis.completed"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
		},
	}

	if err := cfg.validateBounds(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ErrMissingAPIKey is returned by Validate when no provider credential is set.
// The service keeps running in degraded mode.
var ErrMissingAPIKey = fmt.Errorf("OPENAI_API_KEY environment variable not set")

// Validate checks the provider credential. A non-nil error means analysis
// must stay disabled.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (c *Config) validateBounds() error {
	switch {
	case c.Analysis.MaxAttempts < 1:
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.Analysis.MaxAttempts)
	case c.Analysis.Concurrency < 1:
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1, got %d", c.Analysis.Concurrency)
	case c.Analysis.MaxBatchSize < 1:
		return fmt.Errorf("MAX_BATCH_SIZE must be at least 1, got %d", c.Analysis.MaxBatchSize)
	case c.Analysis.ProviderTimeout <= 0:
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	case c.Upload.MaxFileSize <= 0:
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	case c.Upload.JPEGQuality < 1 || c.Upload.JPEGQuality > 100:
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", c.Upload.JPEGQuality)
	case c.Upload.MaxDimension < 1:
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be positive")
	case c.Server.RequestTimeout < c.Analysis.ImageBudget()+c.Analysis.DeadlineReserve:
		return fmt.Errorf("REQUEST_TIMEOUT %s is shorter than one image can take (%s plus DEADLINE_RESERVE %s)",
			c.Server.RequestTimeout, c.Analysis.ImageBudget(), c.Analysis.DeadlineReserve)
	case c.Server.WriteTimeout <= c.Server.RequestTimeout:
		return fmt.Errorf("WRITE_TIMEOUT %s must exceed REQUEST_TIMEOUT %s", c.Server.WriteTimeout, c.Server.RequestTimeout)
	}
	return nil
}

// ImageBudget is the longest one image can take: every attempt timing out,
// the backoff between them, and the recommendations call.
func (c AnalysisConfig) ImageBudget() time.Duration {
	budget := time.Duration(c.MaxAttempts) * c.ProviderTimeout
	backoff := c.RetryBackoff
	for i := 1; i < c.MaxAttempts; i++ {
		budget += backoff
		backoff *= 2
	}
	if c.RecommendationsEnabled {
		budget += c.ProviderTimeout
	}
	return budget
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
