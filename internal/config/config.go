package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix prefixes environment overrides: ENVMON_UPSTREAM_BASE_URL sets upstream.base_url.
const EnvPrefix = "ENVMON"

// Keys read from configs/config.yml.
const (
	KeyPort                 = "port"
	KeyLogLevel             = "log_level"
	KeyDBPath               = "db.path"
	KeyUpstreamBaseURL      = "upstream.base_url"
	KeyUpstreamTimeout      = "upstream.timeout"
	KeyGateSecret           = "access_gate.secret"
	KeyGateBcryptCost       = "access_gate.bcrypt_cost"
	KeyControllerTick       = "controller.tick"
	KeyControllerRetry      = "controller.pending_retry"
	KeyControllerGuard      = "controller.expiry_guard"
	KeyControllerDefaultDev = "controller.default_device"
	KeyWSInterval           = "ws.interval"
)

type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	Upstream   Upstream
	AccessGate AccessGate
	Controller Controller
	WS         WS
}

// Upstream is the remote device server.
type Upstream struct {
	BaseURL string
	Timeout time.Duration
}

type AccessGate struct {
	Secret     string
	BcryptCost int
}

type Controller struct {
	Tick          time.Duration
	PendingRetry  time.Duration
	ExpiryGuard   time.Duration
	DefaultDevice string
}

type WS struct {
	Interval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyDBPath, "envmon.db")
	v.SetDefault(KeyUpstreamBaseURL, "http://127.0.0.1:8001")
	v.SetDefault(KeyUpstreamTimeout, 5*time.Second)
	v.SetDefault(KeyGateSecret, "0517")
	v.SetDefault(KeyGateBcryptCost, bcrypt.DefaultCost)
	v.SetDefault(KeyControllerTick, time.Second)
	v.SetDefault(KeyControllerRetry, 1500*time.Millisecond)
	v.SetDefault(KeyControllerGuard, 5*time.Second)
	v.SetDefault(KeyControllerDefaultDev, "D01")
	v.SetDefault(KeyWSInterval, time.Second)
}

// Load reads config.yml from dir (a missing file falls back to defaults),
// then .env files, then ENVMON_* environment variables.
func Load(dir string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:     v.GetString(KeyPort),
		LogLevel: v.GetString(KeyLogLevel),
		DBPath:   v.GetString(KeyDBPath),
		Upstream: Upstream{
			BaseURL: strings.TrimRight(v.GetString(KeyUpstreamBaseURL), "/"),
			Timeout: v.GetDuration(KeyUpstreamTimeout),
		},
		AccessGate: AccessGate{
			Secret:     v.GetString(KeyGateSecret),
			BcryptCost: v.GetInt(KeyGateBcryptCost),
		},
		Controller: Controller{
			Tick:          v.GetDuration(KeyControllerTick),
			PendingRetry:  v.GetDuration(KeyControllerRetry),
			ExpiryGuard:   v.GetDuration(KeyControllerGuard),
			DefaultDevice: v.GetString(KeyControllerDefaultDev),
		},
		WS: WS{
			Interval: v.GetDuration(KeyWSInterval),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: invalid url %q", KeyUpstreamBaseURL, c.Upstream.BaseURL)
	}
	if c.AccessGate.Secret == "" {
		return fmt.Errorf("%s must not be empty", KeyGateSecret)
	}
	if c.AccessGate.BcryptCost < bcrypt.MinCost || c.AccessGate.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("%s must be between %d and %d", KeyGateBcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	for key, d := range map[string]time.Duration{
		KeyUpstreamTimeout: c.Upstream.Timeout,
		KeyControllerTick:  c.Controller.Tick,
		KeyControllerRetry: c.Controller.PendingRetry,
		KeyControllerGuard: c.Controller.ExpiryGuard,
		KeyWSInterval:      c.WS.Interval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	return nil
}
