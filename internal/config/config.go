package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"flight-deals-bot/internal/logging"
)

// Config materialises application configuration. It is built once at startup
// and passed explicitly to every component that needs it.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Amadeus  AmadeusConfig  `mapstructure:"amadeus"`
	Trip     TripConfig     `mapstructure:"trip"`
	Windows  WindowsConfig  `mapstructure:"windows"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Poll     PollConfig     `mapstructure:"poll"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Timezone string         `mapstructure:"timezone"`
	Listener ListenerConfig `mapstructure:"listener"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AmadeusConfig covers quote-provider access.
type AmadeusConfig struct {
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TripConfig fixes the monitored itinerary.
type TripConfig struct {
	Origin        string `mapstructure:"origin"`
	Destination   string `mapstructure:"destination"`
	DepartureDate string `mapstructure:"departure_date"`
	ReturnDate    string `mapstructure:"return_date"`
	Adults        int    `mapstructure:"adults"`
	Currency      string `mapstructure:"currency"`
}

// WindowsConfig 限定去程/回程起飞小时窗口，nil 表示不限制。
type WindowsConfig struct {
	OutboundFrom *int `mapstructure:"outbound_from"`
	OutboundTo   *int `mapstructure:"outbound_to"`
	InboundFrom  *int `mapstructure:"inbound_from"`
	InboundTo    *int `mapstructure:"inbound_to"`
}

// AlertingConfig defines the per-person price threshold and routing.
type AlertingConfig struct {
	PerPersonThreshold float64        `mapstructure:"per_person_threshold"`
	Telegram           TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the chat channel parameters.
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	ChatID      int64         `mapstructure:"chat_id"`
	APIBase     string        `mapstructure:"api_base"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// PollConfig governs the interval poll loop.
type PollConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	InitialRun   bool          `mapstructure:"initial_run"`
}

// SummaryConfig sets the daily summary wall-clock time (local timezone).
type SummaryConfig struct {
	Hour   int `mapstructure:"hour"`
	Minute int `mapstructure:"minute"`
}

// ListenerConfig tunes the inbound command consumption loop.
type ListenerConfig struct {
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	IdleDelay    time.Duration `mapstructure:"idle_delay"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
	BatchLimit   int           `mapstructure:"batch_limit"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLIGHTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flightbot")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("amadeus.base_url", "https://test.api.amadeus.com")
	v.SetDefault("amadeus.request_timeout", "40s")

	v.SetDefault("trip.origin", "ATH")
	v.SetDefault("trip.destination", "BCN")
	v.SetDefault("trip.adults", 2)
	v.SetDefault("trip.currency", "EUR")

	v.SetDefault("alerting.per_person_threshold", 200.0)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.send_timeout", "25s")

	v.SetDefault("poll.interval", "60m")
	v.SetDefault("poll.startup_delay", "0s")
	v.SetDefault("poll.initial_run", true)

	v.SetDefault("summary.hour", 22)
	v.SetDefault("summary.minute", 0)

	v.SetDefault("timezone", "Europe/Athens")

	v.SetDefault("listener.poll_timeout", "30s")
	v.SetDefault("listener.idle_delay", "2s")
	v.SetDefault("listener.error_backoff", "5s")
	v.SetDefault("listener.batch_limit", 100)
	v.SetDefault("listener.history_limit", 10)

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Trip.Origin == "" || c.Trip.Destination == "" {
		return fmt.Errorf("trip.origin and trip.destination must be configured")
	}
	if c.Trip.DepartureDate == "" {
		return fmt.Errorf("trip.departure_date must be configured")
	}
	if c.Trip.Adults < 1 {
		return fmt.Errorf("trip.adults must be at least 1")
	}
	if c.Trip.Currency == "" {
		return fmt.Errorf("trip.currency must be configured")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be greater than zero")
	}
	if c.Alerting.PerPersonThreshold < 0 {
		return fmt.Errorf("alerting.per_person_threshold cannot be negative")
	}
	if c.Summary.Hour < 0 || c.Summary.Hour > 23 {
		return fmt.Errorf("summary.hour must be within 0..23")
	}
	if c.Summary.Minute < 0 || c.Summary.Minute > 59 {
		return fmt.Errorf("summary.minute must be within 0..59")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Listener.HistoryLimit <= 0 {
		return fmt.Errorf("listener.history_limit must be greater than zero")
	}
	if err := validateWindow("windows.outbound", c.Windows.OutboundFrom, c.Windows.OutboundTo); err != nil {
		return err
	}
	if err := validateWindow("windows.inbound", c.Windows.InboundFrom, c.Windows.InboundTo); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q is not loadable: %w", c.Timezone, err)
	}
	return nil
}

func validateWindow(name string, from, to *int) error {
	for _, bound := range []*int{from, to} {
		if bound != nil && (*bound < 0 || *bound > 23) {
			return fmt.Errorf("%s bounds must be within 0..23", name)
		}
	}
	if from != nil && to != nil && *from > *to {
		return fmt.Errorf("%s window start must not exceed its end", name)
	}
	return nil
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
