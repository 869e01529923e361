package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "RENTDESK"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "rentdesk.db"
	defaultLogLevel       = "info"
	defaultCookieName     = "app_session"
	defaultIssuer         = "rentdesk-auth"
	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second
	defaultRemoteTimeout  = 5 * time.Second
	defaultRatePerSecond  = 20.0
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	LogFile       string
	SigningSecret string
	CookieName    string
	Issuer        string
	SeedDemo      bool
	Sync          SyncConfig
}

// SyncConfig tunes the background tenant mirroring queue.
type SyncConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RemoteTimeout  time.Duration
	RatePerSecond  float64
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("sync.max_retries", defaultMaxRetries)
	configViper.SetDefault("sync.initial_backoff", defaultInitialBackoff)
	configViper.SetDefault("sync.max_backoff", defaultMaxBackoff)
	configViper.SetDefault("sync.remote_timeout", defaultRemoteTimeout)
	configViper.SetDefault("sync.rate_per_second", defaultRatePerSecond)
	configViper.SetDefault("seed.demo", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		LogFile:       configViper.GetString("log.file"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		CookieName:    configViper.GetString("auth.cookie_name"),
		Issuer:        configViper.GetString("auth.issuer"),
		SeedDemo:      configViper.GetBool("seed.demo"),
		Sync: SyncConfig{
			MaxRetries:     configViper.GetInt("sync.max_retries"),
			InitialBackoff: configViper.GetDuration("sync.initial_backoff"),
			MaxBackoff:     configViper.GetDuration("sync.max_backoff"),
			RemoteTimeout:  configViper.GetDuration("sync.remote_timeout"),
			RatePerSecond:  configViper.GetFloat64("sync.rate_per_second"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must not be negative")
	}
	if c.Sync.InitialBackoff <= 0 || c.Sync.MaxBackoff < c.Sync.InitialBackoff {
		return fmt.Errorf("sync.initial_backoff must be positive and not exceed sync.max_backoff")
	}
	if c.Sync.RemoteTimeout <= 0 {
		return fmt.Errorf("sync.remote_timeout must be positive")
	}
	return nil
}
