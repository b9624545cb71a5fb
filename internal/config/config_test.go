package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseViper() *viper.Viper {
	v := viper.New()
	v.Set("APP_ENV", "test")
	v.Set("HTTP_HOST", "127.0.0.1")
	v.Set("HTTP_PORT", 9000)
	v.Set("DB_DSN", "postgres://localhost/contracts")
	v.Set("DB_CONN_MAX_LIFETIME", "5m")
	v.Set("JWT_ACCESS_SECRET", "secret")
	v.Set("CONTRACTS_DEFAULT_PAGE_SIZE", 10)
	v.Set("CONTRACTS_MAX_PAGE_SIZE", 100)
	v.Set("IMPORT_SHEET_NAME", "QQP_Cliente")
	v.Set("IMPORT_MAX_UPLOAD_MB", 2)
	return v
}

func TestFromViper(t *testing.T) {
	v := baseViper()
	v.Set("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, int64(2<<20), cfg.Import.MaxUploadBytes)
}

func TestFromViperDefaultsOrigins(t *testing.T) {
	cfg, err := fromViper(baseViper())
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
}

func TestFromViperValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"missing dsn", "DB_DSN", ""},
		{"missing secret", "JWT_ACCESS_SECRET", ""},
		{"bad lifetime", "DB_CONN_MAX_LIFETIME", "forever"},
		{"max below default", "CONTRACTS_MAX_PAGE_SIZE", 5},
		{"empty sheet", "IMPORT_SHEET_NAME", "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := baseViper()
			v.Set(tt.key, tt.val)
			_, err := fromViper(v)
			assert.Error(t, err)
		})
	}
}
