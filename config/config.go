package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`   // Session refresh / login redirect settings
	Logging   LoggingConfig   `yaml:"logging"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Tracking  TrackingConfig  `yaml:"tracking"`  // Request journal configuration
	DevServer DevServerConfig `yaml:"devserver"` // Local fake backend configuration
	Cognito   CognitoConfig   `yaml:"cognito"`   // Hosted UI for Google login
	Timezone  string          `yaml:"timezone"`  // Timezone used for date formatting
}

type APIConfig struct {
	BaseURL              string            `yaml:"base_url"`
	Timeout              time.Duration     `yaml:"timeout"` // Transport timeout, bounds refresh and replay too
	UserAgent            string            `yaml:"user_agent"`
	Headers              map[string]string `yaml:"headers,omitempty"`
	SlowRequestThreshold time.Duration     `yaml:"slow_request_threshold"`
}

type SessionConfig struct {
	RefreshPath      string   `yaml:"refresh_path"`       // Endpoint that rotates session cookies
	ExemptPaths      []string `yaml:"exempt_paths"`       // 401 on these paths never triggers a refresh
	LoginPath        string   `yaml:"login_path"`         // Where a terminal auth failure navigates to
	LandingPath      string   `yaml:"landing_path"`       // No redirect while already here
	AuthPathPrefixes []string `yaml:"auth_path_prefixes"` // No redirect while under these prefixes
}

type CognitoConfig struct {
	Domain      string `yaml:"domain"`        // e.g. https://club.auth.ap-northeast-2.amazoncognito.com
	ClientID    string `yaml:"client_id"`
	RedirectURI string `yaml:"redirect_uri"`
	SignOutURI  string `yaml:"sign_out_uri"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Type     string `yaml:"type"`     // "http", "https", "socks5"
	URL      string `yaml:"url"`      // Complete proxy URL
	Host     string `yaml:"host"`     // Proxy host
	Port     int    `yaml:"port"`     // Proxy port
	Username string `yaml:"username"` // Optional auth username
	Password string `yaml:"password"` // Optional auth password
}

type TrackingConfig struct {
	Enabled       bool                   `yaml:"enabled"`           // Record every API request outcome, default: false
	Database      *DatabaseBackendConfig `yaml:"database,omitempty"` // Defaults to SQLite at data/requests.db
	BufferSize    int                    `yaml:"buffer_size"`       // Write queue size, default: 256
	FlushInterval time.Duration          `yaml:"flush_interval"`    // Force flush interval, default: 5s
	RetentionDays int                    `yaml:"retention_days"`    // 0 = keep forever, default: 30
}

// DatabaseBackendConfig 数据库后端配置
type DatabaseBackendConfig struct {
	Type string `yaml:"type"` // "sqlite" | "mysql"

	// SQLite配置
	Path string `yaml:"path,omitempty"`

	// MySQL配置
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// 连接池配置
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
}

type DevServerConfig struct {
	Host         string          `yaml:"host"`
	Port         int             `yaml:"port"`
	Secret       string          `yaml:"secret"`        // HS256 signing key
	AccessTTL    time.Duration   `yaml:"access_ttl"`    // default: 30m
	RefreshTTL   time.Duration   `yaml:"refresh_ttl"`   // default: 7 days
	CookieSecure bool            `yaml:"cookie_secure"`
	Store        string          `yaml:"store"`         // "memory" or "redis"
	RedisAddr    string          `yaml:"redis_addr"`
	RedisDB      int             `yaml:"redis_db"`
	Users        []DevUserConfig `yaml:"users,omitempty"`
}

type DevUserConfig struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	Role      string `yaml:"role,omitempty"`
	Gender    string `yaml:"gender,omitempty"`
	BirthDate string `yaml:"birth_date,omitempty"`
}

// LoadConfig loads configuration from a YAML or TOML file (chosen by extension)
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := decode(path, data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// decode 按扩展名解码配置
// TOML 先解成通用 map 再交给 YAML 解码器，两种格式共用同一套 yaml tag 和 Duration 解析
func decode(path string, data []byte, out *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return err
		}
		normalized, err := yaml.Marshal(raw)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(normalized, out)
	default:
		return yaml.Unmarshal(data, out)
	}
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000/api"
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "club-client"
	}
	if c.API.SlowRequestThreshold == 0 {
		c.API.SlowRequestThreshold = 10 * time.Second
	}

	if c.Session.RefreshPath == "" {
		c.Session.RefreshPath = "/auth/refresh"
	}
	if len(c.Session.ExemptPaths) == 0 {
		c.Session.ExemptPaths = []string{"/auth/refresh", "/auth/check", "/auth/me", "/auth/login"}
	}
	// refresh 端点自身必须豁免，否则会递归刷新
	if !slices.Contains(c.Session.ExemptPaths, c.Session.RefreshPath) {
		c.Session.ExemptPaths = append(c.Session.ExemptPaths, c.Session.RefreshPath)
	}
	if c.Session.LoginPath == "" {
		c.Session.LoginPath = "/"
	}
	if c.Session.LandingPath == "" {
		c.Session.LandingPath = "/"
	}
	if len(c.Session.AuthPathPrefixes) == 0 {
		c.Session.AuthPathPrefixes = []string{"/auth/"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Tracking.Database == nil {
		c.Tracking.Database = &DatabaseBackendConfig{}
	}
	if c.Tracking.Database.Type == "" {
		if c.Tracking.Database.Host != "" {
			c.Tracking.Database.Type = "mysql"
		} else {
			c.Tracking.Database.Type = "sqlite"
		}
	}
	if c.Tracking.Database.Type == "sqlite" && c.Tracking.Database.Path == "" {
		c.Tracking.Database.Path = "data/requests.db"
	}
	if c.Tracking.BufferSize == 0 {
		c.Tracking.BufferSize = 256
	}
	if c.Tracking.FlushInterval == 0 {
		c.Tracking.FlushInterval = 5 * time.Second
	}
	if c.Tracking.RetentionDays == 0 {
		c.Tracking.RetentionDays = 30
	}

	if c.DevServer.Host == "" {
		c.DevServer.Host = "localhost"
	}
	if c.DevServer.Port == 0 {
		c.DevServer.Port = 8000
	}
	if c.DevServer.Secret == "" {
		c.DevServer.Secret = "dev-secret-change-me"
	}
	if c.DevServer.AccessTTL == 0 {
		c.DevServer.AccessTTL = 30 * time.Minute
	}
	if c.DevServer.RefreshTTL == 0 {
		c.DevServer.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.DevServer.Store == "" {
		c.DevServer.Store = "memory"
	}
	if c.DevServer.Store == "redis" && c.DevServer.RedisAddr == "" {
		c.DevServer.RedisAddr = "localhost:6379"
	}

	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api timeout cannot be negative")
	}

	if !strings.HasPrefix(c.Session.RefreshPath, "/") {
		return fmt.Errorf("session refresh_path must start with '/'")
	}
	for _, p := range c.Session.ExemptPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("session exempt path %q must start with '/'", p)
		}
	}
	if !strings.HasPrefix(c.Session.LoginPath, "/") || !strings.HasPrefix(c.Session.LandingPath, "/") {
		return fmt.Errorf("session login_path and landing_path must start with '/'")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level must be one of debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging format must be 'text' or 'json'")
	}

	// Validate proxy configuration
	if c.Proxy.Enabled {
		if c.Proxy.Type == "" {
			return fmt.Errorf("proxy type is required when proxy is enabled")
		}
		if c.Proxy.Type != "http" && c.Proxy.Type != "https" && c.Proxy.Type != "socks5" {
			return fmt.Errorf("proxy type must be 'http', 'https', or 'socks5'")
		}
		if c.Proxy.URL == "" && (c.Proxy.Host == "" || c.Proxy.Port == 0) {
			return fmt.Errorf("proxy URL or host:port must be specified when proxy is enabled")
		}
	}

	if c.Tracking.Enabled {
		switch c.Tracking.Database.Type {
		case "sqlite":
			if c.Tracking.Database.Path == "" {
				return fmt.Errorf("tracking database path is required for sqlite")
			}
		case "mysql":
			if c.Tracking.Database.Host == "" || c.Tracking.Database.Database == "" {
				return fmt.Errorf("tracking database host and name are required for mysql")
			}
		default:
			return fmt.Errorf("tracking database type must be 'sqlite' or 'mysql'")
		}
		if c.Tracking.BufferSize <= 0 {
			return fmt.Errorf("tracking buffer size must be greater than 0")
		}
		if c.Tracking.RetentionDays < 0 {
			return fmt.Errorf("retention days cannot be negative")
		}
	}

	if c.DevServer.Store != "memory" && c.DevServer.Store != "redis" {
		return fmt.Errorf("devserver store must be 'memory' or 'redis'")
	}
	if c.DevServer.AccessTTL <= 0 || c.DevServer.RefreshTTL <= 0 {
		return fmt.Errorf("devserver token TTLs must be greater than 0")
	}
	for i, u := range c.DevServer.Users {
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("devserver user %d: email and password are required", i)
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// ConfigWatcher handles automatic configuration reloading
type ConfigWatcher struct {
	configPath    string
	config        *Config
	mutex         sync.RWMutex
	watcher       *fsnotify.Watcher
	logger        *slog.Logger
	callbacks     []func(*Config)
	lastModTime   time.Time
	debounceTimer *time.Timer
}

// NewConfigWatcher creates a new configuration watcher
func NewConfigWatcher(configPath string, logger *slog.Logger) (*ConfigWatcher, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &ConfigWatcher{
		configPath:  configPath,
		config:      config,
		watcher:     watcher,
		logger:      logger,
		callbacks:   make([]func(*Config), 0),
		lastModTime: fileInfo.ModTime(),
	}

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	go cw.watchLoop()

	return cw, nil
}

// GetConfig returns the current configuration (thread-safe)
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.config
}

// UpdateLogger updates the logger used by the config watcher
func (cw *ConfigWatcher) UpdateLogger(logger *slog.Logger) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.logger = logger
}

func (cw *ConfigWatcher) getLogger() *slog.Logger {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.logger
}

// AddReloadCallback adds a callback function that will be called when config is reloaded
func (cw *ConfigWatcher) AddReloadCallback(callback func(*Config)) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// watchLoop monitors the config file for changes
func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Write) {
				fileInfo, err := os.Stat(cw.configPath)
				if err != nil {
					cw.getLogger().Warn(fmt.Sprintf("⚠️ 无法获取配置文件信息: %v", err))
					continue
				}

				// Skip if modification time hasn't changed
				if !fileInfo.ModTime().After(cw.lastModTime) {
					continue
				}
				cw.lastModTime = fileInfo.ModTime()

				if cw.debounceTimer != nil {
					cw.debounceTimer.Stop()
				}

				// Debounce to avoid multiple rapid reloads
				cw.debounceTimer = time.AfterFunc(500*time.Millisecond, func() {
					logger := cw.getLogger()
					logger.Info(fmt.Sprintf("🔄 检测到配置文件变更，正在重新加载... - 文件: %s", event.Name))
					if err := cw.reloadConfig(); err != nil {
						logger.Error(fmt.Sprintf("❌ 配置文件重新加载失败: %v", err))
					} else {
						logger.Info("✅ 配置文件重新加载成功")
					}
				})
			}

			// Some editors rename files during save
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				time.Sleep(100 * time.Millisecond)
				if _, err := os.Stat(cw.configPath); err == nil {
					cw.watcher.Add(cw.configPath)
					cw.getLogger().Info(fmt.Sprintf("🔄 重新监听配置文件: %s", cw.configPath))
				}
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.getLogger().Error(fmt.Sprintf("⚠️ 配置文件监听错误: %v", err))
		}
	}
}

// reloadConfig reloads the configuration from file
func (cw *ConfigWatcher) reloadConfig() error {
	newConfig, err := LoadConfig(cw.configPath)
	if err != nil {
		return err
	}

	cw.mutex.Lock()
	oldConfig := cw.config
	cw.config = newConfig
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mutex.Unlock()

	for _, callback := range callbacks {
		callback(newConfig)
	}

	cw.logConfigChanges(oldConfig, newConfig)

	return nil
}

// logConfigChanges logs the key differences between old and new configurations
func (cw *ConfigWatcher) logConfigChanges(oldConfig, newConfig *Config) {
	logger := cw.getLogger()

	if oldConfig.API.BaseURL != newConfig.API.BaseURL {
		logger.Info("🌐 API地址变更",
			"old_base_url", oldConfig.API.BaseURL,
			"new_base_url", newConfig.API.BaseURL)
	}

	if oldConfig.API.Timeout != newConfig.API.Timeout {
		logger.Info("⏱️ 请求超时变更",
			"old_timeout", oldConfig.API.Timeout,
			"new_timeout", newConfig.API.Timeout)
	}

	if !slices.Equal(oldConfig.Session.ExemptPaths, newConfig.Session.ExemptPaths) {
		logger.Info("🔐 刷新豁免路径变更",
			"old_paths", oldConfig.Session.ExemptPaths,
			"new_paths", newConfig.Session.ExemptPaths)
	}

	if oldConfig.Session.LoginPath != newConfig.Session.LoginPath {
		logger.Info("🔐 登录跳转路径变更",
			"old_path", oldConfig.Session.LoginPath,
			"new_path", newConfig.Session.LoginPath)
	}

	if oldConfig.Logging.Level != newConfig.Logging.Level {
		logger.Info("📝 日志级别变更",
			"old_level", oldConfig.Logging.Level,
			"new_level", newConfig.Logging.Level)
	}

	if oldConfig.Tracking.Enabled != newConfig.Tracking.Enabled {
		logger.Info("📊 请求记录状态变更",
			"old_enabled", oldConfig.Tracking.Enabled,
			"new_enabled", newConfig.Tracking.Enabled)
	}

	if oldConfig.Timezone != newConfig.Timezone {
		logger.Info("🌍 全局时区配置变更",
			"old_timezone", oldConfig.Timezone,
			"new_timezone", newConfig.Timezone)
	}
}

// Close stops the configuration watcher
func (cw *ConfigWatcher) Close() error {
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	return cw.watcher.Close()
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
