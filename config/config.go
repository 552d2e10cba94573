package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Env  string
	Port string

	MongoURI    string
	DBName      string
	StoreDriver string // mongo | memory

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	CORSOrigins    []string
	RequestTimeout time.Duration

	RedisURL        string
	SummaryCacheTTL time.Duration

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	ZeptoAPIURL string
	ZeptoAPIKey string
	EmailFrom   string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "5000"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "isaithondar"),
		StoreDriver: getEnv("STORE_DRIVER", "mongo"),
		JWTSecret:   getEnv("JWT_SECRET", defaultJWTSecret),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		RedisURL: os.Getenv("REDIS_URL"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),

		ZeptoAPIURL: os.Getenv("ZEPTO_API_URL"),
		ZeptoAPIKey: os.Getenv("ZEPTO_API_KEY"),
		EmailFrom:   os.Getenv("EMAIL_FROM"),
	}

	var err error
	if cfg.JWTAccessTTL, err = getDuration("JWT_ACCESS_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = getDuration("JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SummaryCacheTTL, err = getDuration("SUMMARY_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var problems []string
	switch c.StoreDriver {
	case "mongo":
		if c.MongoURI == "" {
			problems = append(problems, "MONGO_URI is required for the mongo store")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		problems = append(problems, "JWT_SECRET must be set in production")
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		problems = append(problems, "token TTLs must be positive")
	}
	if c.Port == "" {
		problems = append(problems, "PORT is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// CloudinaryEnabled reports whether uploads can be sent to Cloudinary.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func (c *Config) MailEnabled() bool {
	return c.ZeptoAPIURL != "" && c.ZeptoAPIKey != "" && c.EmailFrom != ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
