package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CRIPTOAPI_SERVER_PORT
const EnvPrefix = "CRIPTOAPI"

// Log levels
const (
	LogLevelDev  = "dev"
	LogLevelProd = "prod"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type UpstreamConfig struct {
	CoinsURL     string        `mapstructure:"coins_url"`
	ExchangesURL string        `mapstructure:"exchanges_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
}

type PipelineConfig struct {
	ExchangeLimit   int           `mapstructure:"exchange_limit"`
	ChartTopN       int           `mapstructure:"chart_top_n"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", LogLevelDev)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("upstream.coins_url", "https://api.coinlore.net/api/tickers/")
	v.SetDefault("upstream.exchanges_url", "https://api.coinlore.net/api/exchanges/")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.user_agent", "criptoapi/1.0")

	v.SetDefault("pipeline.exchange_limit", 100)
	v.SetDefault("pipeline.chart_top_n", 10)
	v.SetDefault("pipeline.refresh_interval", time.Duration(0))
}

// LoadConfig reads defaults, then the optional config file, then environment overrides
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks ranges that would otherwise fail later at startup
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Upstream.CoinsURL == "" || c.Upstream.ExchangesURL == "" {
		return fmt.Errorf("upstream urls must be set")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream.timeout must not be negative")
	}
	if c.Pipeline.ExchangeLimit < 0 {
		return fmt.Errorf("pipeline.exchange_limit must not be negative")
	}
	if c.Pipeline.ChartTopN <= 0 {
		return fmt.Errorf("pipeline.chart_top_n must be positive")
	}
	if c.Pipeline.RefreshInterval < 0 {
		return fmt.Errorf("pipeline.refresh_interval must not be negative")
	}
	if c.LogLevel != LogLevelDev && c.LogLevel != LogLevelProd {
		return fmt.Errorf("log_level %q must be %q or %q", c.LogLevel, LogLevelDev, LogLevelProd)
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SlogLevel maps the configured log level to a slog level
func (c *Config) SlogLevel() slog.Level {
	if c.LogLevel == LogLevelProd {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// NewLogger builds the process logger
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()}))
}
