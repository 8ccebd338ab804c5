// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Confide Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confide/confide/internal/config"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "confide.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, config.DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, "http://"+config.DefaultHTTPAddr, cfg.BaseURL)
	assert.False(t, cfg.GoogleEnabled())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
http_addr: ":8080"
log_format: text
google:
  client_id: id
  client_secret: secret
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.GoogleEnabled())
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `http_addr: ":8080"`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("http_addr", config.DefaultHTTPAddr, "")
	require.NoError(t, flags.Parse([]string{"--http_addr", ":9090"}))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/confide.yaml", nil)
	require.Error(t, err)
}

func TestLoad_DatabaseURLFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db.test/confide")
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.test/confide", cfg.DatabaseURL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults are valid", func(*config.Config) {}, false},
		{"empty http addr", func(c *config.Config) { c.HTTPAddr = "" }, true},
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, true},
		{"google id without secret", func(c *config.Config) { c.Google.ClientID = "id" }, true},
		{"google pair", func(c *config.Config) { c.Google.ClientID = "id"; c.Google.ClientSecret = "s" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
