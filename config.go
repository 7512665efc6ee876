package goTodo

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of a [Client]. Obtain one with [DefaultConfig],
// adjust it, and pass it to [Builder.WithConfig]. The client keeps its own
// copy; later mutations of the caller's value have no effect.
type Config struct {
	API       APIConfig
	Transport TransportConfig
	Refresh   RefreshConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the to-do API.
//
// When BaseURL is empty it is derived from Hostname with
// [APIConfig.ResolveBaseURL].
type APIConfig struct {
	BaseURL  string
	Hostname string
	// Hosts maps client hostnames to API base URLs and takes precedence over
	// the built-in localhost and api.<host> rules.
	Hosts     map[string]string
	TodoPath  string
	AuthPath  string
	LoginPath string
}

// DefaultLocalBaseURL is the API address used when the client runs on
// localhost.
const DefaultLocalBaseURL = "http://localhost:8181"

// ResolveBaseURL maps the hostname the client runs on to the API base URL:
// an explicit Hosts entry wins, "localhost" (or an empty hostname) maps to
// [DefaultLocalBaseURL], and any other host H maps to https://api.H.
func (c APIConfig) ResolveBaseURL(hostname string) string {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if u, ok := c.Hosts[hostname]; ok && u != "" {
		return u
	}
	switch hostname {
	case "", "localhost", "127.0.0.1":
		return DefaultLocalBaseURL
	}
	return "https://api." + hostname
}

// ResolveBaseURL applies the default host rules to hostname.
func ResolveBaseURL(hostname string) string {
	return APIConfig{}.ResolveBaseURL(hostname)
}

func (c APIConfig) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return c.ResolveBaseURL(c.Hostname)
}

func (c APIConfig) authPath(suffix string) string {
	return strings.TrimRight(c.AuthPath, "/") + suffix
}

func (c APIConfig) todoPath(suffix string) string {
	return strings.TrimRight(c.TodoPath, "/") + suffix
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig configures the HTTP client built when none is supplied
// through [Builder.WithHTTPClient].
type TransportConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes the token refresh behavior.
type RefreshConfig struct {
	// TokenKeys lists the refresh response fields searched, in order, for the
	// new access token.
	TokenKeys []string
	// RefreshTokenKey names the response field carrying a rotated refresh
	// token. Empty disables rotation.
	RefreshTokenKey string
	// InvalidAuthMessage is the 401 message meaning "no session at all";
	// such responses are never refreshed.
	InvalidAuthMessage string
	// Proactive refreshes before sending when the stored access token is a
	// JWT expiring within Leeway.
	Proactive bool
	Leeway    time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend selects the credential store built by [Builder.Build] when no
// store is injected.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreFile   StoreBackend = "file"
	StoreRedis  StoreBackend = "redis"
)

// StoreConfig configures the default credential store.
type StoreConfig struct {
	Backend StoreBackend
	// Path is the credentials file of the file backend.
	Path string
	// RedisPrefix namespaces keys of the redis backend.
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Hostname:  "localhost",
			TodoPath:  "/api/todos",
			AuthPath:  "/api/auth",
			LoginPath: "/login",
		},
		Transport: TransportConfig{
			Timeout:      15 * time.Second,
			UserAgent:    "goTodo",
			MaxBodyBytes: 1 << 20,
		},
		Refresh: RefreshConfig{
			TokenKeys:          []string{"accessToken", "assessToken", "access_token", "token"},
			RefreshTokenKey:    "refreshToken",
			InvalidAuthMessage: "INVALID_AUTH",
			Proactive:          false,
			Leeway:             30 * time.Second,
		},
		Store: StoreConfig{
			Backend:     StoreMemory,
			RedisPrefix: "gotodo",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.API.Hosts != nil {
		out.API.Hosts = make(map[string]string, len(cfg.API.Hosts))
		for k, v := range cfg.API.Hosts {
			out.API.Hosts[strings.ToLower(k)] = v
		}
	}
	out.Refresh.TokenKeys = append([]string(nil), cfg.Refresh.TokenKeys...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cfg for values the client cannot work with. Every error
// wraps [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	base := c.API.baseURL()
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API base URL %q must be an absolute http(s) URL", base)
	}
	if !strings.HasPrefix(c.API.TodoPath, "/") {
		return errors.New("API TodoPath must start with /")
	}
	if !strings.HasPrefix(c.API.AuthPath, "/") {
		return errors.New("API AuthPath must start with /")
	}
	if c.API.LoginPath == "" {
		return errors.New("API LoginPath is required")
	}

	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}
	if c.Transport.MaxBodyBytes <= 0 {
		return errors.New("Transport MaxBodyBytes must be > 0")
	}

	if len(c.Refresh.TokenKeys) == 0 {
		return errors.New("Refresh TokenKeys must not be empty")
	}
	for _, k := range c.Refresh.TokenKeys {
		if strings.TrimSpace(k) == "" {
			return errors.New("Refresh TokenKeys must not contain empty keys")
		}
	}
	if c.Refresh.Leeway < 0 {
		return errors.New("Refresh Leeway must be >= 0")
	}
	if c.Refresh.Proactive && c.Refresh.Leeway == 0 {
		return errors.New("Refresh Proactive requires Leeway > 0")
	}

	switch c.Store.Backend {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.Store.Path == "" {
			return errors.New("Store Path is required for the file backend")
		}
	default:
		return fmt.Errorf("unsupported Store Backend %q", c.Store.Backend)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration finding.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but probably unintended.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	if u, err := url.Parse(c.API.baseURL()); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		ws = append(ws, LintWarning{Code: "plaintext_base_url", Message: "tokens are sent over plain http to a non-local host"})
	}
	if c.Refresh.InvalidAuthMessage == "" {
		ws = append(ws, LintWarning{Code: "invalid_auth_tag_disabled", Message: "every 401 will attempt a refresh, including requests that never had a session"})
	}
	if c.Refresh.RefreshTokenKey == "" {
		ws = append(ws, LintWarning{Code: "refresh_rotation_ignored", Message: "rotated refresh tokens sent by the server are discarded"})
	}
	if c.Refresh.Leeway > 5*time.Minute {
		ws = append(ws, LintWarning{Code: "leeway_large", Message: "proactive refresh leeway exceeds 5m"})
	}
	if c.Transport.Timeout == 0 {
		ws = append(ws, LintWarning{Code: "no_timeout", Message: "requests without a context deadline can hang forever"})
	}
	if c.Store.Backend == StoreMemory {
		ws = append(ws, LintWarning{Code: "volatile_store", Message: "credentials are lost when the process exits"})
	}
	return ws
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
