package server

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AppConfig defines application configuration loaded from files and environment.
type AppConfig struct {
	Env       string         `koanf:"env"`
	Listen    string         `koanf:"listen"`
	StaticDir string         `koanf:"static_dir"`
	Consumer  ConsumerConfig `koanf:"consumer"`
	OAuth     OAuthConfig    `koanf:"oauth"`
	Platform  PlatformConfig `koanf:"platform"`
	Database  DatabaseConfig `koanf:"database"`
	Session   SessionConfig  `koanf:"session"`
	AI        AIConfig       `koanf:"ai"`
}

// ConsumerConfig is the application credential registered with the platform.
type ConsumerConfig struct {
	Key    string `koanf:"key"`
	Secret string `koanf:"secret"`
}

// OAuthConfig controls the three-legged flow.
type OAuthConfig struct {
	// CallbackURL is where the platform redirects after consent.
	CallbackURL string `koanf:"callback_url"`
	// Endpoint overrides; empty values fall back to the platform defaults.
	RequestTokenURL string `koanf:"request_token_url"`
	AuthorizeURL    string `koanf:"authorize_url"`
	AccessTokenURL  string `koanf:"access_token_url"`
}

// PlatformConfig points the dispatcher at the content API.
type PlatformConfig struct {
	BaseURL       string `koanf:"base_url"`
	UploadBaseURL string `koanf:"upload_base_url"`
	// RatePerSecond caps outbound calls client-side; 0 disables the limiter.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// DatabaseConfig selects the history database. Empty DSN disables
// persistence; history endpoints then answer not_implemented.
type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

// SessionConfig selects the session backend and cookie behavior.
type SessionConfig struct {
	// Backend is "buntdb" (default) or "valkey".
	Backend    string `koanf:"backend"`
	Path       string `koanf:"path"`
	ValkeyAddr string `koanf:"valkey_addr"`
	CookieName string `koanf:"cookie_name"`
	Sign       string `koanf:"sign"`
	// Expired is the session lifetime in seconds.
	Expired int64 `koanf:"expired"`
}

// AIConfig configures the generation collaborator. Empty APIKey disables
// the generate endpoints.
type AIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

var (
	cfgOnce sync.Once
	cfgInst *AppConfig
)

// GetConfig loads and returns the singleton AppConfig. Loading order:
// 1) config/config.yaml (optional)
// 2) config/config.<APP_ENV>.yaml (optional), APP_ENV defaults to "local"
// 3) Environment variables with prefix PLUM_ mapped using __ as nested separator, e.g. PLUM_CONSUMER__KEY
func GetConfig() *AppConfig {
	cfgOnce.Do(func() {
		k := koanf.New(".")
		configDir := os.Getenv("CONFIG_DIR")
		if configDir == "" {
			configDir = "config"
		}
		// Whether to load files (default: disabled to keep tests isolated)
		loadFiles := isTruthy(os.Getenv("APP_CONFIG_FILES"))
		if loadFiles {
			base := filepath.Join(configDir, "config.yaml")
			if _, err := os.Stat(base); err == nil {
				if err := k.Load(file.Provider(base), yaml.Parser()); err != nil {
					log.Printf("config: failed loading base: %v", err)
				}
			}
		}
		envName := os.Getenv("APP_ENV")
		if envName == "" {
			envName = "local"
		}
		if loadFiles {
			envFile := filepath.Join(configDir, "config."+envName+".yaml")
			if _, err := os.Stat(envFile); err == nil {
				if err := k.Load(file.Provider(envFile), yaml.Parser()); err != nil {
					log.Printf("config: failed loading env file: %v", err)
				}
			}
		}
		// env vars: PLUM_ prefix, __ delim for nesting
		_ = k.Load(env.Provider("PLUM_", ".", func(s string) string {
			// PLUM_CONSUMER__KEY -> consumer.key
			return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PLUM_")), "__", ".")
		}), nil)

		var c AppConfig
		if err := k.Unmarshal("", &c); err != nil {
			log.Printf("config: unmarshal error: %v", err)
		}
		if c.Env == "" {
			c.Env = envName
		}
		applyDefaults(&c)
		cfgInst = &c
	})
	return cfgInst
}

func applyDefaults(c *AppConfig) {
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "buntdb"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "plum_session"
	}
	if c.Session.Expired == 0 {
		c.Session.Expired = 7200
	}
}

// Production reports whether the process runs with production hardening
// (Secure session cookies).
func (c *AppConfig) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// DatabaseDSN returns the effective history DSN (config first, then the
// DATABASE_URL env the original deployment used).
func (c *AppConfig) DatabaseDSN() string {
	if c != nil && c.Database.DSN != "" {
		return strings.TrimSpace(c.Database.DSN)
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

// ConsumerKey returns the consumer key (config first, then env).
func (c *AppConfig) ConsumerKey() string {
	if c != nil && c.Consumer.Key != "" {
		return strings.TrimSpace(c.Consumer.Key)
	}
	return strings.TrimSpace(os.Getenv("CONSUMER_KEY"))
}

// ConsumerSecret returns the consumer secret (config first, then env).
func (c *AppConfig) ConsumerSecret() string {
	if c != nil && c.Consumer.Secret != "" {
		return strings.TrimSpace(c.Consumer.Secret)
	}
	return strings.TrimSpace(os.Getenv("CONSUMER_SECRET"))
}

func isTruthy(v string) bool {
	s := strings.TrimSpace(strings.ToLower(v))
	return s == "1" || s == "true" || s == "yes" || s == "y"
}
