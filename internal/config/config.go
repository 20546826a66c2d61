package config

import (
	"log/slog"
	"time"
)

// Config aggregates the whole application configuration.
type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	DB           DBConfig           `mapstructure:"database"`
	Panels       PanelsConfig       `mapstructure:"panels"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Provision    ProvisionConfig    `mapstructure:"provision"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// HTTPConfig defines the subscription HTTP server settings.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig defines logging behaviour.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	Environment string `mapstructure:"environment"`
}

// DBConfig defines the backing store. Driver is "sqlite" or "postgres";
// DSN is a file path for sqlite and a connection string for postgres.
type DBConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PanelsConfig carries process-wide panel admin credentials. The same
// credentials are used against every server of the matching panel family.
type PanelsConfig struct {
	XUIUsername       string        `mapstructure:"xui_username"`
	XUIPassword       string        `mapstructure:"xui_password"`
	RemnawaveLogin    string        `mapstructure:"remnawave_login"`
	RemnawavePassword string        `mapstructure:"remnawave_password"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// SubscriptionConfig controls subscription aggregation and response shaping.
type SubscriptionConfig struct {
	// ProjectName is shown to client apps via the profile-title header.
	ProjectName string `mapstructure:"project_name"`
	SupportURL  string `mapstructure:"support_url"`
	BotUsername string `mapstructure:"bot_username"`
	// LegacyCutover rejects legacy-format links for keys created at or
	// after this moment ("2006-01-02 15:04:05"); CutoverOffset compensates
	// for the timezone the original records were written in.
	LegacyCutover string        `mapstructure:"legacy_cutover"`
	CutoverOffset time.Duration `mapstructure:"cutover_offset"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	// QuotaGB is the issued traffic per country; zero means unmetered.
	QuotaGB int64 `mapstructure:"quota_gb"`
	// SingleUpstream short-circuits aggregation to the first resolved URL.
	SingleUpstream bool `mapstructure:"single_upstream"`
	// CountrySelection maps each key to exactly one server instead of a
	// whole cluster.
	CountrySelection bool `mapstructure:"country_selection"`
}

// ProvisionConfig controls credential creation.
type ProvisionConfig struct {
	// PublicLinkBase prefixes XUI subscription links handed to users.
	PublicLinkBase string `mapstructure:"public_link_base"`
	// ExpiryNoticeWindow is how far ahead the expiry job warns users.
	ExpiryNoticeWindow time.Duration `mapstructure:"expiry_notice_window"`
}

// TelegramConfig configures the notification bot.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	// AdminID receives provisioning failure alerts when non-zero.
	AdminID int64 `mapstructure:"admin_id"`
}

// MetricsConfig defines Prometheus exposure.
type MetricsConfig struct {
	Enabled   bool      `mapstructure:"enabled"`
	Namespace string    `mapstructure:"namespace"`
	Subsystem string    `mapstructure:"subsystem"`
	Buckets   []float64 `mapstructure:"buckets"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LegacyCutoverMillis parses the cutover timestamp into epoch milliseconds,
// shifted backwards by the configured offset. Returns 0 when unset.
func (c SubscriptionConfig) LegacyCutoverMillis() (int64, error) {
	if c.LegacyCutover == "" {
		return 0, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", c.LegacyCutover)
	if err != nil {
		return 0, err
	}
	return t.Add(-c.CutoverOffset).UnixMilli(), nil
}

// QuotaBytes converts the per-country quota to bytes. Panels report
// remaining traffic in decimal units, so the quota uses them too.
func (c SubscriptionConfig) QuotaBytes() int64 {
	return c.QuotaGB * 1_000_000_000
}
