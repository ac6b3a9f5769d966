package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the monitor runtime configuration.
type AppConfig struct {
	Exchanges           []ExchangeConfig `yaml:"exchanges"`
	TradingPairs        []string         `yaml:"trading_pairs"`
	RefreshRate         float64          `yaml:"refresh_rate"`          // seconds between cycle starts
	ThresholdPercentage float64          `yaml:"threshold_percentage"`  // inclusive spread threshold
	OrderbookDepth      int              `yaml:"orderbook_depth"`       // levels kept per side
	TargetFillVolume    float64          `yaml:"target_fill_volume"`    // size the weighted price is computed for
	FetchTimeout        float64          `yaml:"fetch_timeout"`         // seconds per orderbook fetch
	TopOfBookFallback   bool             `yaml:"top_of_book_fallback"`  // compare best quotes when depth is too thin
	MetricsAddr         string           `yaml:"metrics_addr"`          // empty disables the metrics server
	Log                 LogConfig        `yaml:"log"`
	Alert               AlertConfig      `yaml:"alert"`
}

type ExchangeConfig struct {
	Name      string  `yaml:"name"`
	Enabled   bool    `yaml:"enabled"`
	Transport string  `yaml:"transport"`  // "rest" (default) or "ws"
	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 = default
	Burst     int     `yaml:"burst"`
}

type LogConfig struct {
	Level      string   `yaml:"level"`
	Format     string   `yaml:"format"` // json or console
	Outputs    []string `yaml:"outputs"`
	OutputFile string   `yaml:"output_file"`
	ErrorFile  string   `yaml:"error_file"`
}

type AlertConfig struct {
	ThrottleSeconds int            `yaml:"throttle_seconds"`
	Console         bool           `yaml:"console"`
	JSONLFile       string         `yaml:"jsonl_file"`
	Telegram        TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"` // usually supplied via OBM_TELEGRAM_TOKEN
	ChatID  string `yaml:"chat_id"`
}

// Defaults applied before unmarshal.
func defaultConfig() AppConfig {
	return AppConfig{
		RefreshRate:      10,
		OrderbookDepth:   50,
		TargetFillVolume: 1,
		FetchTimeout:     10,
		Log: LogConfig{
			Level:   "info",
			Format:  "json",
			Outputs: []string{"stdout"},
		},
		Alert: AlertConfig{ThrottleSeconds: 60, Console: true},
	}
}

// Load reads YAML config from path and applies validation.
func Load(path string) (AppConfig, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("OBM_TELEGRAM_TOKEN"); v != "" {
		cfg.Alert.Telegram.Token = v
	}
	if v := os.Getenv("OBM_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Alert.Telegram.ChatID = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures the monitor can run with this config. A validation
// failure is fatal at startup and never retried.
func Validate(cfg AppConfig) error {
	if cfg.RefreshRate <= 0 {
		return errors.New("refresh_rate must be > 0")
	}
	if cfg.ThresholdPercentage < 0 {
		return errors.New("threshold_percentage must be >= 0")
	}
	if cfg.OrderbookDepth <= 0 {
		return errors.New("orderbook_depth must be > 0")
	}
	if cfg.TargetFillVolume <= 0 {
		return errors.New("target_fill_volume must be > 0")
	}
	if cfg.FetchTimeout <= 0 {
		return errors.New("fetch_timeout must be > 0")
	}
	if len(cfg.TradingPairs) == 0 {
		return errors.New("trading_pairs is required")
	}
	for _, pair := range cfg.TradingPairs {
		base, quote, ok := strings.Cut(pair, "/")
		if !ok || base == "" || quote == "" {
			return fmt.Errorf("trading pair %q must be BASE/QUOTE", pair)
		}
	}
	if len(cfg.EnabledExchanges()) == 0 {
		return errors.New("at least one exchange must be enabled")
	}
	for _, ex := range cfg.Exchanges {
		switch ex.Transport {
		case "", "rest", "ws":
		default:
			return fmt.Errorf("exchange %s transport %q must be rest or ws", ex.Name, ex.Transport)
		}
		if ex.RateLimit < 0 {
			return fmt.Errorf("exchange %s rate_limit must be >= 0", ex.Name)
		}
	}
	if cfg.Alert.Telegram.Enabled && cfg.Alert.Telegram.ChatID == "" {
		return errors.New("alert.telegram.chat_id is required when telegram is enabled")
	}
	return nil
}

// EnabledExchanges returns enabled exchange configs in list order.
// List order is load-bearing: it fixes the detector's pair enumeration order.
func (c AppConfig) EnabledExchanges() []ExchangeConfig {
	var out []ExchangeConfig
	for _, ex := range c.Exchanges {
		if ex.Enabled {
			out = append(out, ex)
		}
	}
	return out
}

// RefreshInterval returns the cycle interval as a duration.
func (c AppConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshRate * float64(time.Second))
}

// FetchTimeoutDuration returns the per-fetch timeout as a duration.
func (c AppConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout * float64(time.Second))
}
