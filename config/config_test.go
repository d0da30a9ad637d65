package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{"PORT", "STORE_DRIVER", "DB_PATH", "TX_MAX_ATTEMPTS", "LOG_LEVEL", "LOG_FORMAT", "CORS_ORIGINS"}

// clearEnv unsets every config key for the test and afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "ledger.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "bolt")
	t.Setenv("DB_PATH", "/tmp/ledger.bolt")
	t.Setenv("TX_MAX_ATTEMPTS", "2")
	t.Setenv("CORS_ORIGINS", " https://shop.example , ,https://admin.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverBolt, cfg.StoreDriver)
	assert.Equal(t, "/tmp/ledger.bolt", cfg.DBPath)
	assert.Equal(t, 2, cfg.TxMaxAttempts)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSOrigins)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=memory\nLOG_FORMAT=json\n"), 0o600))

	// The process environment wins over the file.
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")

	_, err := Load()
	assert.ErrorContains(t, err, "PORT")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 8080, StoreDriver: DriverSQLite, DBPath: "x.db", TxMaxAttempts: 5, LogFormat: "console"}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"memory needs no path", func(c *Config) { c.StoreDriver = DriverMemory; c.DBPath = "" }, true},
		{"bolt needs a path", func(c *Config) { c.StoreDriver = DriverBolt; c.DBPath = "" }, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, false},
		{"port out of range", func(c *Config) { c.Port = 70000 }, false},
		{"no attempts", func(c *Config) { c.TxMaxAttempts = 0 }, false},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}
