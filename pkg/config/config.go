package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                    string
	Env                     string
	StoreBackend            string
	FirebaseCredentialsPath string
	FirebaseAPIKey          string
	MongoURI                string
	MongoDatabase           string
	PostgresConnStr         string
	RedisAddr               string
	JWTSecret               string
	FeedDefaultLimit        int
	SearchDebounce          time.Duration
	RateLimitRPS            float64
}

const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendMemory    = "memory"
)

// Load reads .env (if present), then app.yaml (if present), then the environment.
// Environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", "")
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json")
	v.SetDefault("FIREBASE_API_KEY", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "devforum")
	v.SetDefault("POSTGRES_CONN_STR", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("FEED_DEFAULT_LIMIT", 50)
	v.SetDefault("SEARCH_DEBOUNCE", "500ms")
	v.SetDefault("RATE_LIMIT_RPS", 20)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read app.yaml: %w", err)
		}
	}

	cfg := &Config{
		Port:                    v.GetString("PORT"),
		Env:                     v.GetString("ENV"),
		StoreBackend:            strings.ToLower(v.GetString("STORE_BACKEND")),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FirebaseAPIKey:          v.GetString("FIREBASE_API_KEY"),
		MongoURI:                v.GetString("MONGO_URI"),
		MongoDatabase:           v.GetString("MONGO_DATABASE"),
		PostgresConnStr:         v.GetString("POSTGRES_CONN_STR"),
		RedisAddr:               v.GetString("REDIS_ADDR"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		FeedDefaultLimit:        v.GetInt("FEED_DEFAULT_LIMIT"),
		SearchDebounce:          v.GetDuration("SEARCH_DEBOUNCE"),
		RateLimitRPS:            v.GetFloat64("RATE_LIMIT_RPS"),
	}
	if cfg.StoreBackend == "" {
		if cfg.Env == "development" || cfg.Env == "test" {
			cfg.StoreBackend = BackendMemory
		} else {
			cfg.StoreBackend = BackendFirestore
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendFirestore:
		if c.FirebaseCredentialsPath == "" {
			return errors.New("FIREBASE_CREDENTIALS_PATH is required for the firestore backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI environment variable not set")
		}
		if c.PostgresConnStr == "" {
			return errors.New("POSTGRES_CONN_STR environment variable not set")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreBackend != BackendFirestore && c.JWTSecret == "" {
		if c.Env != "development" && c.Env != "test" {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.JWTSecret = "devforum-development-secret"
	}
	if c.FeedDefaultLimit <= 0 {
		c.FeedDefaultLimit = 50
	}
	if c.SearchDebounce <= 0 {
		c.SearchDebounce = 500 * time.Millisecond
	}
	return nil
}
