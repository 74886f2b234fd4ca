package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"club-client/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadConfig_Defaults 最小配置触发默认值
func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "minimal.yaml", `
api:
  base_url: http://localhost:9000/api/
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/api", cfg.API.BaseURL, "trailing slash should be trimmed")
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/auth/refresh", cfg.Session.RefreshPath)
	assert.Equal(t, []string{"/auth/refresh", "/auth/check", "/auth/me", "/auth/login"}, cfg.Session.ExemptPaths)
	assert.Equal(t, "/", cfg.Session.LoginPath)
	assert.Equal(t, "/", cfg.Session.LandingPath)
	assert.Equal(t, []string{"/auth/"}, cfg.Session.AuthPathPrefixes)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "sqlite", cfg.Tracking.Database.Type)
	assert.Equal(t, "data/requests.db", cfg.Tracking.Database.Path)
	assert.Equal(t, "memory", cfg.DevServer.Store)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
}

// TestLoadConfig_RefreshPathAlwaysExempt 自定义刷新路径会被自动加入豁免列表
func TestLoadConfig_RefreshPathAlwaysExempt(t *testing.T) {
	path := writeConfig(t, "custom.yaml", `
session:
  refresh_path: /session/rotate
  exempt_paths:
    - /session/check
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/session/check", "/session/rotate"}, cfg.Session.ExemptPaths)
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeConfig(t, "club.toml", `
timezone = "UTC"

[api]
base_url = "https://clubs.example.com/api"
timeout = "12s"

[session]
login_path = "/auth/login"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://clubs.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/auth/login", cfg.Session.LoginPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		errMsg      string
	}{
		{
			name: "relative base url",
			yamlContent: `
api:
  base_url: /api
`,
			errMsg: "base_url must be an absolute URL",
		},
		{
			name: "exempt path without slash",
			yamlContent: `
session:
  exempt_paths: ["auth/check"]
`,
			errMsg: "must start with '/'",
		},
		{
			name: "bad log level",
			yamlContent: `
logging:
  level: verbose
`,
			errMsg: "logging level",
		},
		{
			name: "proxy without address",
			yamlContent: `
proxy:
  enabled: true
  type: socks5
`,
			errMsg: "proxy URL or host:port",
		},
		{
			name: "mysql tracking without host",
			yamlContent: `
tracking:
  enabled: true
  database:
    type: mysql
`,
			errMsg: "host and name are required",
		},
		{
			name: "unknown devserver store",
			yamlContent: `
devserver:
  store: etcd
`,
			errMsg: "devserver store",
		},
		{
			name: "bad timezone",
			yamlContent: `
timezone: Mars/Olympus
`,
			errMsg: "invalid timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.yaml", tt.yamlContent)
			_, err := config.LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.API.BaseURL = "https://clubs.example.com/api"
	cfg.Session.LoginPath = "/auth/login"

	path := filepath.Join(t.TempDir(), "nested", "saved.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.API.BaseURL, loaded.API.BaseURL)
	assert.Equal(t, cfg.Session, loaded.Session)
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "watched.yaml", `
logging:
  level: info
`)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watcher, err := config.NewConfigWatcher(path, logger)
	require.NoError(t, err)
	defer watcher.Close()

	assert.Equal(t, "info", watcher.GetConfig().Logging.Level)

	reloaded := make(chan *config.Config, 1)
	watcher.AddReloadCallback(func(cfg *config.Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "debug", watcher.GetConfig().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("配置重载回调未触发")
	}
}
