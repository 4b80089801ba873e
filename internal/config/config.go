package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/coursepilot/go-services/internal/document/store"
	"github.com/coursepilot/go-services/internal/storage"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     storage.MinIOConfig
	OpenAI    OpenAIConfig
	Keycloak  KeycloakConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	Environment    string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	UploadMaxBytes int64
}

type StoreConfig struct {
	Engine           string
	Path             string
	CompressionLevel int
	OpenTimeout      time.Duration
	CacheSize        int
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is host:port, or empty when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type KeycloakConfig struct {
	URL           string
	Realm         string
	ClientID      string
	ClientSecret  string
	AllowInsecure bool
}

// Issuer is the realm issuer URL, or URL itself when no realm is set.
func (k KeycloakConfig) Issuer() string {
	if k.Realm == "" {
		return k.URL
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("UPLOAD_MAX_BYTES", 32<<20)
	v.SetDefault("STORE_ENGINE", store.EngineBolt)
	v.SetDefault("STORE_PATH", "./database")
	v.SetDefault("STORE_COMPRESSION_LEVEL", 10)
	v.SetDefault("STORE_OPEN_TIMEOUT", 1)
	v.SetDefault("STORE_CACHE_SIZE", 256)
	v.SetDefault("MONGODB_DATABASE", "coursepilot")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MINIO_BUCKET", "coursepilot")
	v.SetDefault("OPENAI_MODEL", "gpt-4-turbo-preview")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Host:           v.GetString("SERVER_HOST"),
			Environment:    v.GetString("SERVER_ENVIRONMENT"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   2 * time.Minute,
			UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Store: StoreConfig{
			Engine:           strings.ToLower(v.GetString("STORE_ENGINE")),
			Path:             v.GetString("STORE_PATH"),
			CompressionLevel: v.GetInt("STORE_COMPRESSION_LEVEL"),
			OpenTimeout:      time.Duration(v.GetInt("STORE_OPEN_TIMEOUT")) * time.Second,
			CacheSize:        v.GetInt("STORE_CACHE_SIZE"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: storage.MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("OPENAI_API_KEY"),
			BaseURL: v.GetString("OPENAI_BASE_URL"),
			Model:   v.GetString("OPENAI_MODEL"),
		},
		Keycloak: KeycloakConfig{
			URL:           v.GetString("KEYCLOAK_URL"),
			Realm:         v.GetString("KEYCLOAK_REALM"),
			ClientID:      v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:  v.GetString("KEYCLOAK_CLIENT_SECRET"),
			AllowInsecure: v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Engine {
	case store.EngineBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required for the %s engine", c.Store.Engine)
		}
	case store.EngineRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the %s engine", c.Store.Engine)
		}
	case store.EngineMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the %s engine", c.Store.Engine)
		}
	case store.EngineMemory:
	default:
		return fmt.Errorf("unknown STORE_ENGINE %q", c.Store.Engine)
	}
	if c.Store.CompressionLevel < 1 {
		return fmt.Errorf("STORE_COMPRESSION_LEVEL must be positive, got %d", c.Store.CompressionLevel)
	}
	if c.Server.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Server.UploadMaxBytes)
	}
	return nil
}

// StoreConfig maps the settings onto the document store's open parameters.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Engine:           c.Store.Engine,
		Path:             c.Store.Path,
		CompressionLevel: c.Store.CompressionLevel,
		OpenTimeout:      c.Store.OpenTimeout,
		RedisAddr:        c.Redis.Addr(),
		RedisPassword:    c.Redis.Password,
		RedisDB:          c.Redis.DB,
		MongoURI:         c.MongoDB.URI,
		MongoDatabase:    c.MongoDB.Database,
		MongoTimeout:     c.MongoDB.Timeout,
	}
}
