package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full daemon configuration, loaded from sessiond.toml with
// SESSIOND_* environment overrides.
type Config struct {
	Panel   Panel
	Ledger  Ledger
	Billing Billing
	Queue   Queue
	Cache   Cache
	Cleanup Cleanup
	Credits Credits
	HTTP    HTTP
	Profile Profile
}

type Panel struct {
	BaseURL string
	APIKey  string
	NodeID  int
	Timeout time.Duration
}

type Ledger struct {
	Backend string // "sqlite" or "toml"
	Path    string
}

type Billing struct {
	Tick          time.Duration
	GraceTicks    int
	WarningTicks  int
	StoppingTicks int
	MaxSessions   int
}

type Queue struct {
	MinutesPerCredit int
}

type Cache struct {
	Refresh time.Duration
}

type Cleanup struct {
	Interval         time.Duration
	IdleThreshold    time.Duration
	ProtectedServers []int
}

type Credits struct {
	Daily        int64
	PremiumDaily int64
}

type HTTP struct {
	Addr  string
	Token string
}

// Profile is the hosting profile every provisioned server gets.
type Profile struct {
	Name        string
	NestID      int
	EggID       int
	DockerImage string
	Startup     string
	Environment map[string]string
	MemoryMB    int
	DiskMB      int
	CPUPercent  int
}

const envPrefix = "SESSIOND"

// Load reads configuration from the given viper instance, applying defaults
// and environment overrides. Pass a fresh viper.New() in production; tests
// pre-seed values instead.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetConfigName("sessiond")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sessiond")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Panel: Panel{
			BaseURL: v.GetString("panel.base_url"),
			APIKey:  v.GetString("panel.api_key"),
			NodeID:  v.GetInt("panel.node_id"),
			Timeout: v.GetDuration("panel.timeout"),
		},
		Ledger: Ledger{
			Backend: v.GetString("ledger.backend"),
			Path:    v.GetString("ledger.path"),
		},
		Billing: Billing{
			Tick:          v.GetDuration("billing.tick"),
			GraceTicks:    v.GetInt("billing.grace_ticks"),
			WarningTicks:  v.GetInt("billing.warning_ticks"),
			StoppingTicks: v.GetInt("billing.stopping_ticks"),
			MaxSessions:   v.GetInt("billing.max_sessions"),
		},
		Queue: Queue{
			MinutesPerCredit: v.GetInt("queue.minutes_per_credit"),
		},
		Cache: Cache{
			Refresh: v.GetDuration("cache.refresh"),
		},
		Cleanup: Cleanup{
			Interval:         v.GetDuration("cleanup.interval"),
			IdleThreshold:    v.GetDuration("cleanup.idle_threshold"),
			ProtectedServers: v.GetIntSlice("cleanup.protected_servers"),
		},
		Credits: Credits{
			Daily:        v.GetInt64("credits.daily"),
			PremiumDaily: v.GetInt64("credits.premium_daily"),
		},
		HTTP: HTTP{
			Addr:  v.GetString("http.addr"),
			Token: v.GetString("http.token"),
		},
		Profile: Profile{
			Name:        v.GetString("profile.name"),
			NestID:      v.GetInt("profile.nest_id"),
			EggID:       v.GetInt("profile.egg_id"),
			DockerImage: v.GetString("profile.docker_image"),
			Startup:     v.GetString("profile.startup"),
			Environment: v.GetStringMapString("profile.environment"),
			MemoryMB:    v.GetInt("profile.memory_mb"),
			DiskMB:      v.GetInt("profile.disk_mb"),
			CPUPercent:  v.GetInt("profile.cpu_percent"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("panel.timeout", 15*time.Second)
	v.SetDefault("panel.node_id", 1)

	v.SetDefault("ledger.backend", "sqlite")
	v.SetDefault("ledger.path", "data.db")

	v.SetDefault("billing.tick", time.Minute)
	v.SetDefault("billing.grace_ticks", 1)
	v.SetDefault("billing.warning_ticks", 1)
	v.SetDefault("billing.stopping_ticks", 1)
	v.SetDefault("billing.max_sessions", 4)

	v.SetDefault("queue.minutes_per_credit", 5)

	v.SetDefault("cache.refresh", 5*time.Minute)

	v.SetDefault("cleanup.interval", 24*time.Hour)
	v.SetDefault("cleanup.idle_threshold", time.Duration(0))

	v.SetDefault("credits.daily", 60)
	v.SetDefault("credits.premium_daily", 120)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("profile.name", "DisMine - MC paper")
	v.SetDefault("profile.nest_id", 1)
	v.SetDefault("profile.egg_id", 2)
	v.SetDefault("profile.docker_image", "ghcr.io/pterodactyl/yolks:java_17")
	v.SetDefault("profile.startup",
		"java -Xms128M -XX:MaxRAMPercentage=95.0 -Dterminal.jline=false -Dterminal.ansi=true -jar {{SERVER_JARFILE}}")
	v.SetDefault("profile.environment", map[string]string{
		"SERVER_JARFILE":    "server.jar",
		"MINECRAFT_VERSION": "latest",
		"BUILD_NUMBER":      "latest",
	})
	v.SetDefault("profile.memory_mb", 3072)
	v.SetDefault("profile.disk_mb", 1024)
	v.SetDefault("profile.cpu_percent", 400)
}

func (c Config) validate() error {
	if c.Panel.BaseURL == "" {
		return errors.New("panel.base_url is required")
	}
	if c.Panel.APIKey == "" {
		return errors.New("panel.api_key is required")
	}
	if c.Billing.Tick <= 0 {
		return errors.New("billing.tick must be positive")
	}
	if c.Billing.MaxSessions < 1 {
		return errors.New("billing.max_sessions must be at least 1")
	}
	switch c.Ledger.Backend {
	case "sqlite", "toml":
	default:
		return fmt.Errorf("unsupported ledger backend %q", c.Ledger.Backend)
	}
	return nil
}
