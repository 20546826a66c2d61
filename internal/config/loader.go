package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/keyhub/")

	v.SetEnvPrefix("KEYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file is fine, envs and defaults still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.Subscription.LegacyCutoverMillis(); err != nil {
		return nil, fmt.Errorf("parse subscription.legacy_cutover: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "production")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/keyhub.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("panels.probe_timeout", "5s")
	v.SetDefault("panels.request_timeout", "30s")

	v.SetDefault("subscription.project_name", "KeyHub VPN")
	v.SetDefault("subscription.fetch_timeout", "5s")
	v.SetDefault("subscription.cutover_offset", "3h")
	v.SetDefault("subscription.quota_gb", 0)

	v.SetDefault("provision.expiry_notice_window", "24h")

	v.SetDefault("metrics.namespace", "keyhub")
	v.SetDefault("metrics.subsystem", "http")
}
