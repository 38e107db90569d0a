package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tradesmart-bot-go/internal/candles"
	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/ratelimit"
)

// Config holds all configuration for the application.
type Config struct {
	Exchange Exchange         `mapstructure:"exchange"`
	Budget   ratelimit.Budget `mapstructure:"budget"`
	Ingest   Ingest           `mapstructure:"ingest"`
	Backtest Backtest         `mapstructure:"backtest"`
	Invest   Invest           `mapstructure:"invest"`
	Logger   Logger           `mapstructure:"logger"`
	Server   Server           `mapstructure:"server"`
	Database Database         `mapstructure:"database"`
}

// Exchange holds the configuration for the market data source.
type Exchange struct {
	Name           string   `mapstructure:"name"`
	BaseURL        string   `mapstructure:"base_url"`
	Symbols        []string `mapstructure:"symbols"`
	PageSize       int      `mapstructure:"page_size"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// Ingest holds the configuration for trade history downloads.
type Ingest struct {
	SinceDays  int           `mapstructure:"since_days"`
	FlushSize  int           `mapstructure:"flush_size"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// Backtest holds the configuration for the simulator.
type Backtest struct {
	BarInterval  string        `mapstructure:"bar_interval"`
	LookbackBars int           `mapstructure:"lookback_bars"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	LookbackDays int           `mapstructure:"lookback_days"`
	Strategy     string        `mapstructure:"strategy"`
	LogDir       string        `mapstructure:"log_dir"`
}

// Invest describes the simulated account. A zero LossCut disables the loss cut.
type Invest struct {
	Balance        float64 `mapstructure:"balance"`
	InvestPerTrade float64 `mapstructure:"invest_per_trade"`
	LossCut        float64 `mapstructure:"loss_cut"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from path/config.yml and environment variables.
// A missing config file is not an error: defaults and the environment still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.name", "bitflyer")
	v.SetDefault("exchange.base_url", "https://api.bitflyer.com")
	v.SetDefault("exchange.symbols", []string{"BTC_JPY"})
	v.SetDefault("exchange.page_size", 500)
	v.SetDefault("exchange.rate_limit", 5)       // requests per second
	v.SetDefault("exchange.rate_limit_burst", 1) // burst size

	v.SetDefault("budget.calls", 500)
	v.SetDefault("budget.window", "5m")
	v.SetDefault("budget.margin", 5)

	v.SetDefault("ingest.since_days", 30) // the executions endpoint keeps 31 days
	v.SetDefault("ingest.flush_size", 10000)
	v.SetDefault("ingest.interval", "1m")
	v.SetDefault("ingest.max_retries", 3)

	v.SetDefault("backtest.bar_interval", "5m")
	v.SetDefault("backtest.lookback_bars", 1000)
	v.SetDefault("backtest.poll_interval", "1m")
	v.SetDefault("backtest.lookback_days", 30)
	v.SetDefault("backtest.strategy", "simple")
	v.SetDefault("backtest.log_dir", "log")

	v.SetDefault("invest.balance", 50000)
	v.SetDefault("invest.invest_per_trade", 10000)
	v.SetDefault("invest.loss_cut", 0)

	v.SetDefault("database.dsn", "tradesmart.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if len(c.Exchange.Symbols) == 0 {
		return errors.New("exchange.symbols must not be empty")
	}
	if c.Exchange.PageSize <= 0 || c.Exchange.PageSize > 500 {
		return fmt.Errorf("exchange.page_size must be in 1~500, got %d", c.Exchange.PageSize)
	}
	if c.Budget.Calls <= 0 || c.Budget.Window <= 0 {
		return fmt.Errorf("budget must allow at least one call per positive window, got %d per %s", c.Budget.Calls, c.Budget.Window)
	}
	if c.Budget.Margin < 0 || c.Budget.Margin >= c.Budget.Calls {
		return fmt.Errorf("budget.margin must be in 0~%d, got %d", c.Budget.Calls-1, c.Budget.Margin)
	}
	if c.Ingest.FlushSize <= 0 {
		return fmt.Errorf("ingest.flush_size must be positive, got %d", c.Ingest.FlushSize)
	}
	if _, err := candles.ParseInterval(c.Backtest.BarInterval); err != nil {
		return fmt.Errorf("backtest.bar_interval: %w", err)
	}
	if c.Backtest.LookbackBars < indicator.MinBars {
		return fmt.Errorf("backtest.lookback_bars must be at least %d, got %d", indicator.MinBars, c.Backtest.LookbackBars)
	}
	if c.Backtest.PollInterval <= 0 {
		return fmt.Errorf("backtest.poll_interval must be positive, got %s", c.Backtest.PollInterval)
	}
	if c.Invest.InvestPerTrade <= 0 {
		return fmt.Errorf("invest.invest_per_trade must be positive, got %v", c.Invest.InvestPerTrade)
	}
	if c.Invest.InvestPerTrade > c.Invest.Balance {
		return fmt.Errorf("invest.invest_per_trade %v must not exceed invest.balance %v", c.Invest.InvestPerTrade, c.Invest.Balance)
	}
	return nil
}
