// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/media-proxy/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config       string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host         string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port         int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	AllowHosts   string `kong:"help='Comma-separated allow-listed hostnames (overrides config).',env='PROXY_ALLOW_HOSTS'"`
	AllowAll     *bool  `kong:"help='Allow proxying to any host (overrides config).',env='PROXY_ALLOW_ALL'"`
	MaxRedirects *int   `kong:"help='Maximum upstream redirect hops (overrides config).',env='PROXY_MAX_REDIRECTS'"`
	CORSOrigin   string `kong:"name='cors-origin',help='Access-Control-Allow-Origin value to emit (overrides config).',env='CORS_ALLOW_ORIGIN'"`
	LogLevel     string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Routing  RoutingConfig  `toml:"routing"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Download DownloadConfig `toml:"download"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `toml:"host"`
	Port      int             `toml:"port"` // 0 means "use default" (3003); TOML cannot distinguish 0 from unset
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ProxyConfig holds the media proxy gateway settings.
type ProxyConfig struct {
	AllowedHosts    []string `toml:"allowed_hosts"`
	AllowAll        bool     `toml:"allow_all"`
	MaxRedirects    int      `toml:"max_redirects"`
	CORSOrigin      string   `toml:"cors_origin"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	IdleConnections int      `toml:"idle_connections"`
}

// EffectiveAllowAll reports whether the gateway runs with an open target
// policy. An empty allow-list with allow_all unset resolves to allow-all;
// this fail-open default is deliberate and surfaced by WarnOpenPolicy.
func (p *ProxyConfig) EffectiveAllowAll() bool {
	return p.AllowAll || len(p.AllowedHosts) == 0
}

// RoutingConfig holds the client-side routing decision settings: how raw
// media URLs are rewritten to pass through the gateway.
type RoutingConfig struct {
	BaseURL     string `toml:"base_url"`
	PathPrefix  string `toml:"path_prefix"`
	PageOrigin  string `toml:"page_origin"`
	ProxyImages bool   `toml:"proxy_images"`
}

// CatalogConfig holds the upstream music catalog endpoints.
type CatalogConfig struct {
	NetEaseBaseURL string `toml:"netease_base_url"`
	KuGouBaseURL   string `toml:"kugou_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DownloadConfig holds download sink settings.
type DownloadConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides. When no
// explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/media-proxy/config.toml then configs/config.toml. A missing config
// file is not an error: the proxy is fully operational on defaults plus
// environment overrides.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Defaults before CLI overrides: an explicit flag value survives even
	// when it equals a zero value (e.g. --max-redirects=0 disables redirect
	// following instead of falling back to the default).
	cfg.setDefaults()
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// applyCLI overrides config values with set CLI flags. String and port
// flags use the zero value as "unset" (the same conflation TOML has);
// allow-all and max-redirects are pointers so that --allow-all=false and
// --max-redirects=0 can override a config file.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.AllowHosts != "" {
		c.Proxy.AllowedHosts = SplitHosts(cli.AllowHosts)
	}
	if cli.AllowAll != nil {
		c.Proxy.AllowAll = *cli.AllowAll
	}
	if cli.MaxRedirects != nil {
		c.Proxy.MaxRedirects = *cli.MaxRedirects
	}
	if cli.CORSOrigin != "" {
		c.Proxy.CORSOrigin = cli.CORSOrigin
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// SplitHosts parses a comma-separated hostname list, trimming whitespace
// and dropping empty entries.
func SplitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Proxy.MaxRedirects < 0 {
		return fmt.Errorf("proxy.max_redirects must be non-negative; got %d", c.Proxy.MaxRedirects)
	}
	if c.Proxy.TimeoutSeconds < 0 {
		return fmt.Errorf("proxy.timeout_seconds must be non-negative; got %d", c.Proxy.TimeoutSeconds)
	}
	if c.Proxy.IdleConnections < 0 {
		return fmt.Errorf("proxy.idle_connections must be non-negative; got %d", c.Proxy.IdleConnections)
	}
	if c.Catalog.TimeoutSeconds < 0 {
		return fmt.Errorf("catalog.timeout_seconds must be non-negative; got %d", c.Catalog.TimeoutSeconds)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Routing and catalog URLs must parse as absolute when set.
	for _, pair := range []struct{ key, val string }{
		{"routing.base_url", c.Routing.BaseURL},
		{"routing.page_origin", c.Routing.PageOrigin},
		{"catalog.netease_base_url", c.Catalog.NetEaseBaseURL},
		{"catalog.kugou_base_url", c.Catalog.KuGouBaseURL},
	} {
		if pair.val == "" {
			continue
		}
		u, err := url.Parse(pair.val)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%s must be an absolute URL; got %q", pair.key, pair.val)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/proxy", "/api", "/healthz"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3003
	}
	if c.Proxy.MaxRedirects == 0 {
		c.Proxy.MaxRedirects = 10
	}
	if c.Proxy.CORSOrigin == "" {
		c.Proxy.CORSOrigin = "*"
	}
	if c.Proxy.TimeoutSeconds == 0 {
		c.Proxy.TimeoutSeconds = 120
	}
	if c.Proxy.IdleConnections == 0 {
		c.Proxy.IdleConnections = 100
	}
	if c.Catalog.NetEaseBaseURL == "" {
		c.Catalog.NetEaseBaseURL = "http://localhost:3002"
	}
	if c.Catalog.KuGouBaseURL == "" {
		c.Catalog.KuGouBaseURL = "http://localhost:3001"
	}
	if c.Catalog.TimeoutSeconds == 0 {
		c.Catalog.TimeoutSeconds = 10
	}
	if c.Download.Dir == "" {
		c.Download.Dir = "downloads"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnOpenPolicy logs a warning when the gateway runs with an open target
// policy, so the fail-open default is visible rather than silent.
func (c *Config) WarnOpenPolicy(logger *slog.Logger) {
	if c.Proxy.EffectiveAllowAll() {
		logger.Warn("proxy target allow-list is open; any host may be fetched",
			"allow_all", c.Proxy.AllowAll,
			"allowed_hosts", len(c.Proxy.AllowedHosts),
		)
	}
}
