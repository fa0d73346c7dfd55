package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Loader.Timeout)
	assert.Equal(t, uint(3), cfg.Loader.RetryAttempts)
	assert.Zero(t, cfg.Loader.RefreshInterval)
	assert.Empty(t, cfg.Sources.IADecisions)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Nil(t, cfg.Auth.PublicKey)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
sources:
  ia_decisions: http://scanner.local/api/ia_decisions
  scan_history: /var/lib/soc/audit/scan_history.json
  timeout: 2s
loader:
  refresh_interval: 1m
  cb_failures: 7
logger:
  format: console
`), 0o644))

	t.Setenv("SOURCES_RESPONSE_ACTIONS", "https://responder.local/actions")
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("AUTH_PUBLIC_KEY_DATA", "-----BEGIN PUBLIC KEY-----")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "http://scanner.local/api/ia_decisions", cfg.Sources.IADecisions)
	assert.Equal(t, "https://responder.local/actions", cfg.Sources.ResponseActions)
	assert.Equal(t, "/var/lib/soc/audit/scan_history.json", cfg.Sources.ScanHistory)
	assert.Equal(t, 2*time.Second, cfg.Sources.Timeout)
	assert.Equal(t, time.Minute, cfg.Loader.RefreshInterval)
	assert.Equal(t, uint32(7), cfg.Loader.CBFailures)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, []byte("-----BEGIN PUBLIC KEY-----"), cfg.Auth.PublicKey)
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadKeyResource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, []byte("pem"), 0o600))

	assert.Equal(t, []byte("pem"), loadKeyResource(path, "SOCDASH_TEST_UNSET_KEY"))
	assert.Nil(t, loadKeyResource("", "SOCDASH_TEST_UNSET_KEY"))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggerConfig
		level   zapcore.Level
		wantErr bool
	}{
		{name: "defaults", cfg: LoggerConfig{}, level: zapcore.InfoLevel},
		{name: "debug console", cfg: LoggerConfig{Level: "debug", Format: "console"}, level: zapcore.DebugLevel},
		{name: "bad level", cfg: LoggerConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: LoggerConfig{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.level))
			assert.False(t, logger.Core().Enabled(tt.level-1))
		})
	}
}

func TestViewKey(t *testing.T) {
	assert.Equal(t, "socdash:view:00ff:all", ViewKey("00ff", "all"))
}
