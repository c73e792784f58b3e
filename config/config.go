package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"klinecollector/internal/collector"
	"klinecollector/pkg/binance"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Binance    BinanceConfig    `mapstructure:"binance"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Collection CollectionConfig `mapstructure:"collection"`
	Export     ExportConfig     `mapstructure:"export"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

type BinanceConfig struct {
	REST       RESTConfig `mapstructure:"rest"`
	QuoteAsset string     `mapstructure:"quote_asset"` // symbols offered for collection
	Symbols    []string   `mapstructure:"symbols"`     // seed list used before exchangeInfo is read
	// LoadSymbols refreshes the catalogue from exchangeInfo at startup.
	LoadSymbols bool `mapstructure:"load_symbols"`
}

type RESTConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	Window               time.Duration `mapstructure:"window"`
}

// CollectionConfig holds the defaults of the configuration form. Empty dates
// mean January 1st of the current year and today.
type CollectionConfig struct {
	Symbol    string        `mapstructure:"symbol"`
	Timeframe string        `mapstructure:"timeframe"`
	StartDate time.Time     `mapstructure:"start_date"`
	EndDate   time.Time     `mapstructure:"end_date"`
	Delay     time.Duration `mapstructure:"delay"`
	// Autostart runs the configured collection at startup and exports it.
	Autostart bool `mapstructure:"autostart"`
}

type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"` // csv or parquet
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binance.rest.base_url", binance.DefaultBaseURL)
	v.SetDefault("binance.rest.timeout", "10s")
	v.SetDefault("binance.rest.max_backoff", binance.DefaultMaxBackoff.String())
	v.SetDefault("binance.quote_asset", "USDT")
	v.SetDefault("binance.symbols", strings.Join(binance.DefaultSymbols, ","))
	v.SetDefault("binance.load_symbols", false)

	v.SetDefault("rate_limit.max_requests_per_minute", 1200)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("collection.symbol", "BTCUSDT")
	v.SetDefault("collection.timeframe", string(binance.Timeframe1h))
	v.SetDefault("collection.start_date", "")
	v.SetDefault("collection.end_date", "")
	v.SetDefault("collection.delay", "100ms")
	v.SetDefault("collection.autostart", false)

	v.SetDefault("export.dir", "data")
	v.SetDefault("export.format", "csv")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
}

// Load reads application configuration using Viper. path names a config file;
// when empty, config.yaml is searched next to the binary and, under go run or
// go test, in the repository's config directory. A missing file is not an
// error. Environment variables override file values (e.g. SERVER_ADDR).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
			v.AddConfigPath(filepath.Join(pwd, "config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "config"))
		}
	}

	// Support environment variables with dot notation (e.g., RATE_LIMIT_WINDOW)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		dateHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// dateHookFunc decodes YYYY-MM-DD strings into UTC dates. An empty string
// leaves the date unset.
func dateHookFunc() mapstructure.DecodeHookFuncType {
	timeType := reflect.TypeOf(time.Time{})
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != timeType {
			return data, nil
		}
		s := strings.TrimSpace(reflect.ValueOf(data).String())
		if s == "" {
			return time.Time{}, nil
		}
		return collector.ParseDate(s)
	}
}

// Resolve turns the form defaults into a run configuration as of now.
func (c CollectionConfig) Resolve(now time.Time) (collector.Config, error) {
	tf, err := binance.ParseTimeframe(c.Timeframe)
	if err != nil {
		return collector.Config{}, err
	}
	now = now.UTC()
	start, end := c.StartDate, c.EndDate
	if start.IsZero() {
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	cfg := collector.Config{
		Symbol:    strings.ToUpper(strings.TrimSpace(c.Symbol)),
		Timeframe: tf,
		StartDate: start,
		EndDate:   end,
		Delay:     c.Delay,
	}
	return cfg, cfg.Validate()
}
