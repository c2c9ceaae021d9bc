package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource DataSourceConfig `yaml:"data_source"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Training   TrainingConfig   `yaml:"training"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type DataSourceConfig struct {
	Provider     string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo financego rest mock"`
	Symbol       string        `yaml:"symbol" default:"SBIN.NS" validate:"required"`
	BaseURL      string        `yaml:"base_url" validate:"required_if=Provider rest"`
	APIKey       string        `yaml:"api_key"`
	LookbackDays int           `yaml:"lookback_days" default:"3650" validate:"gte=1"`
	Proxy        string        `yaml:"proxy"`
	Timeout      time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	CacheTTL     time.Duration `yaml:"cache_ttl" default:"1h" validate:"gte=0"`
}

// Lookback is the history span requested from the provider.
func (d DataSourceConfig) Lookback() time.Duration {
	return time.Duration(d.LookbackDays) * 24 * time.Hour
}

type PipelineConfig struct {
	ShortWindow   int `yaml:"short_window" default:"50" validate:"gte=1"`
	LongWindow    int `yaml:"long_window" default:"200" validate:"gtfield=ShortWindow"`
	WindowLength  int `yaml:"window_length" default:"60" validate:"gte=1"`
	HistoryPoints int `yaml:"history_points" default:"100" validate:"gte=1"`
}

type TrainingConfig struct {
	Hidden          int     `yaml:"hidden" default:"64" validate:"gte=1"`
	Epochs          int     `yaml:"epochs" default:"50" validate:"gte=1"`
	BatchSize       int     `yaml:"batch_size" default:"32" validate:"gte=1"`
	LearningRate    float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	ValidationSplit float64 `yaml:"validation_split" default:"0.1" validate:"gte=0,lt=1"`
	Seed            uint64  `yaml:"seed" default:"42"`
	IntervalHours   float64 `yaml:"interval_hours" validate:"gte=0"`
	RetrainCron     string  `yaml:"retrain_cron"`
}

// Interval is the retrain period; zero means train once.
func (t TrainingConfig) Interval() time.Duration {
	return time.Duration(t.IntervalHours * float64(time.Hour))
}

type ArtifactsConfig struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file badger"`
	Dir     string `yaml:"dir" default:"data/artifacts" validate:"required"`
}

type DatabaseConfig struct {
	SQLitePath string `yaml:"sqlite_path" default:"data/forecaster.db"`
}

type CacheConfig struct {
	Backend    string      `yaml:"backend" default:"memory" validate:"oneof=none memory redis"`
	MaxEntries int         `yaml:"max_entries" default:"256" validate:"gte=1"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379" validate:"required"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" default:"forecaster"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"5000" validate:"gte=1,lte=65535"`
	AllowedOrigins  []string      `yaml:"allowed_origins" default:"[\"*\"]"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
}

// TelegramConfig enables forecast and training notifications when both fields are set.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	Polling  bool   `yaml:"polling"`
}

// Enabled reports whether notifications can be sent.
func (t TelegramConfig) Enabled() bool { return t.BotToken != "" && t.ChatID != "" }

// Load reads .env, then the YAML file over the defaults, then environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FORECAST_SYMBOL"); v != "" {
		c.DataSource.Symbol = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.DataSource.Proxy = v
	}
	if v := os.Getenv("ARTIFACT_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("RETRAIN_INTERVAL_HOURS"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RETRAIN_INTERVAL_HOURS: %w", err)
		}
		c.Training.IntervalHours = hours
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-section rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Pipeline.LongWindow+c.Pipeline.WindowLength > c.DataSource.LookbackDays {
		return fmt.Errorf("data_source.lookback_days %d cannot cover long_window %d plus window_length %d",
			c.DataSource.LookbackDays, c.Pipeline.LongWindow, c.Pipeline.WindowLength)
	}
	if c.Pipeline.HistoryPoints > c.DataSource.LookbackDays {
		return fmt.Errorf("pipeline.history_points %d exceeds data_source.lookback_days %d",
			c.Pipeline.HistoryPoints, c.DataSource.LookbackDays)
	}
	return nil
}
