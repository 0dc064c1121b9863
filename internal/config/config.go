// Package config loads the server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the complete server configuration.
type Config struct {
	Port          int           `env:"PORT"            envDefault:"8080"`
	BaseURL       string        `env:"BASE_URL"        envDefault:"http://localhost:8080"`
	SessionSecret string        `env:"SESSION_SECRET,required,unset"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID,required"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET,required,unset"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,required"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,required,unset"`

	GitHubAPIURL   string        `env:"GITHUB_API_URL"   envDefault:"https://api.github.com"`
	GitHubAPIToken string        `env:"GITHUB_API_TOKEN,unset"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT"    envDefault:"10s"`
	AvatarHosts    []string      `env:"AVATAR_HOSTS"     envDefault:"avatars.githubusercontent.com" envSeparator:","`

	DBPath              string        `env:"DB_PATH"                envDefault:"data/explorer.db"`
	SearchRatePerMinute int           `env:"SEARCH_RATE_PER_MINUTE" envDefault:"30"`
	TrackerIdleTTL      time.Duration `env:"TRACKER_IDLE_TTL"       envDefault:"30m"`

	// MetricsAddr is the separate listener for /metrics; "off" disables it.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:"127.0.0.1:9090"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	// Missing required variables come back together in one aggregate error.
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// Validate checks values the env tags cannot express. Every problem is
// reported, not only the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL %q must be an absolute http(s) URL", c.BaseURL))
	}
	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}
	if c.SearchRatePerMinute <= 0 {
		errs = append(errs, errors.New("SEARCH_RATE_PER_MINUTE must be positive"))
	}
	if c.TrackerIdleTTL <= 0 {
		errs = append(errs, errors.New("TRACKER_IDLE_TTL must be positive"))
	}
	if c.MetricsEnabled() {
		if _, port, err := net.SplitHostPort(c.MetricsAddr); err != nil || port == "" {
			errs = append(errs, fmt.Errorf("METRICS_ADDR %q must be host:port", c.MetricsAddr))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SecureCookies reports whether cookies must carry the Secure flag, which
// is the case whenever the public URL is https.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.BaseURL), "https://")
}

// CallbackURL is the OAuth redirect URL registered with provider.
func (c *Config) CallbackURL(provider string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/auth/" + provider + "/callback"
}

// MetricsEnabled reports whether /metrics is served at all.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != "" && !strings.EqualFold(c.MetricsAddr, "off")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
