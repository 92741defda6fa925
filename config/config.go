package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/joho/godotenv"
)

// Config is the portal's runtime configuration. Defaults are overlaid by the
// TOML file named in PORTAL_CONFIG, then by environment variables.
type Config struct {
	Port           string   `toml:"port"`
	GinMode        string   `toml:"gin_mode"`
	DBDriver       string   `toml:"db_driver"`
	DBDSN          string   `toml:"db_dsn"`
	OfflineDBPath  string   `toml:"offline_db_path"`
	JWTSecret      string   `toml:"jwt_secret"`
	AllowedOrigins []string `toml:"allowed_origins"`
	TLS            bool     `toml:"tls"`

	RateLimit  int           `toml:"rate_limit"`
	RateWindow time.Duration `toml:"rate_window"`
	SendEvery  time.Duration `toml:"send_every"`
	SendBurst  int           `toml:"send_burst"`

	Sync SyncConfig `toml:"sync"`
}

// SyncConfig holds the realtime and polling timings.
type SyncConfig struct {
	Debounce         time.Duration `toml:"debounce"`
	PollInterval     time.Duration `toml:"poll_interval"`
	PollRetryBase    time.Duration `toml:"poll_retry_base"`
	PollMaxAttempts  int           `toml:"poll_max_attempts"`
	FetchTimeout     time.Duration `toml:"fetch_timeout"`
	ReconnectInitial time.Duration `toml:"reconnect_initial"`
	ReconnectMax     time.Duration `toml:"reconnect_max"`
	BroadcastTimeout time.Duration `toml:"broadcast_timeout"`
	ChangeInterval   time.Duration `toml:"change_interval"`
}

func Default() Config {
	sub := services.DefaultSubscriptionConfig()
	return Config{
		Port:          "8080",
		GinMode:       "debug",
		DBDriver:      "postgres",
		OfflineDBPath: "offline.db",
		RateLimit:     50,
		RateWindow:    time.Second,
		SendEvery:     500 * time.Millisecond,
		SendBurst:     5,
		Sync: SyncConfig{
			Debounce:         sub.DebounceDelay,
			PollInterval:     sub.PollInterval,
			PollRetryBase:    sub.PollRetryBase,
			PollMaxAttempts:  sub.PollMaxAttempts,
			FetchTimeout:     sub.FetchTimeout,
			ReconnectInitial: sub.Reconnect.InitialDelay,
			ReconnectMax:     sub.Reconnect.MaxDelay,
			BroadcastTimeout: 2 * time.Second,
			ChangeInterval:   500 * time.Millisecond,
		},
	}
}

// Load reads .env (when present), the optional TOML file and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Debug("No .env file loaded")
	}

	cfg := Default()
	if path := os.Getenv("PORTAL_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load portal config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DBDSN, "DB_DSN")
	setString(&c.OfflineDBPath, "OFFLINE_DB_PATH")
	setString(&c.JWTSecret, "JWT_SECRET")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.Sync.Debounce, "SYNC_DEBOUNCE"},
		{&c.Sync.PollInterval, "SYNC_POLL_INTERVAL"},
		{&c.Sync.PollRetryBase, "SYNC_POLL_RETRY_BASE"},
		{&c.Sync.FetchTimeout, "SYNC_FETCH_TIMEOUT"},
		{&c.Sync.ReconnectInitial, "SYNC_RECONNECT_INITIAL"},
		{&c.Sync.ReconnectMax, "SYNC_RECONNECT_MAX"},
		{&c.Sync.BroadcastTimeout, "SYNC_BROADCAST_TIMEOUT"},
		{&c.Sync.ChangeInterval, "SYNC_CHANGE_INTERVAL"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	return setInt(&c.Sync.PollMaxAttempts, "SYNC_POLL_MAX_ATTEMPTS")
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DSN is required for %s", c.DBDriver)
	}
	if c.Sync.PollInterval <= 0 || c.Sync.ReconnectInitial <= 0 {
		return fmt.Errorf("sync intervals must be positive")
	}
	if c.Sync.PollMaxAttempts < 1 {
		return fmt.Errorf("poll_max_attempts must be at least 1")
	}
	return nil
}

// SubscriptionConfig maps the sync timings onto the subscription manager.
func (c Config) SubscriptionConfig() services.SubscriptionConfig {
	reconnect := services.ReconnectBackoff
	reconnect.InitialDelay = c.Sync.ReconnectInitial
	reconnect.MaxDelay = c.Sync.ReconnectMax
	return services.SubscriptionConfig{
		DebounceDelay:   c.Sync.Debounce,
		PollInterval:    c.Sync.PollInterval,
		PollRetryBase:   c.Sync.PollRetryBase,
		PollMaxAttempts: c.Sync.PollMaxAttempts,
		FetchTimeout:    c.Sync.FetchTimeout,
		Reconnect:       reconnect,
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
