package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SUMMARY_CACHE_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 30*time.Second, cfg.SummaryCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "REQUEST_TIMEOUT")
}

func TestValidate(t *testing.T) {
	base := Config{
		Env:           "production",
		Port:          "5000",
		StoreDriver:   "mongo",
		MongoURI:      "mongodb://db:27017",
		JWTSecret:     "s3cret",
		JWTAccessTTL:  time.Hour,
		JWTRefreshTTL: time.Hour,
	}
	require.NoError(t, base.Validate())

	defaultSecret := base
	defaultSecret.JWTSecret = defaultJWTSecret
	assert.ErrorContains(t, defaultSecret.Validate(), "JWT_SECRET must be set")

	badDriver := base
	badDriver.StoreDriver = "postgres"
	assert.ErrorContains(t, badDriver.Validate(), `unknown STORE_DRIVER "postgres"`)

	memory := base
	memory.StoreDriver = "memory"
	memory.MongoURI = ""
	assert.NoError(t, memory.Validate())
}

func TestFeatureToggles(t *testing.T) {
	cfg := Config{}
	assert.False(t, cfg.CloudinaryEnabled())
	assert.False(t, cfg.MailEnabled())

	cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret = "demo", "key", "secret"
	cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom = "https://api.zeptomail.com/v1.1/email", "key", "noreply@example.org"
	assert.True(t, cfg.CloudinaryEnabled())
	assert.True(t, cfg.MailEnabled())
}
