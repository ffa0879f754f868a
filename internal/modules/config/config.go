package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	envPrefix         = "TRADEWATCH"
)

// Legacy-переменные, которые старый деплой выставляет без префикса.
var legacyEnv = map[string]string{
	"telegram.token":    "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":  "TELEGRAM_CHAT_ID",
	"webhook.token":     "WEBHOOK_TOKEN",
	"store.dsn":         "DATABASE_DSN",
	"oracle.alpha.key":  "ALPHA_API_KEY",
	"oracle.metals.key": "METALS_API_KEY",
}

// Config ...
type Config struct {
	Service struct {
		Name     string `mapstructure:"name"`
		HTTPAddr string `mapstructure:"http_addr"`
	} `mapstructure:"service"`

	Log struct {
		Level      string `mapstructure:"level"`
		Output     string `mapstructure:"output"` // console | file | both
		File       string `mapstructure:"file"`
		MaxSize    int    `mapstructure:"max_size"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAge     int    `mapstructure:"max_age"`
		Compress   bool   `mapstructure:"compress"`
	} `mapstructure:"log"`

	Telegram struct {
		Token     string `mapstructure:"token"`
		ChatID    int64  `mapstructure:"chat_id"`
		ParseMode string `mapstructure:"parse_mode"`
	} `mapstructure:"telegram"`

	Webhook struct {
		Token string `mapstructure:"token"`
	} `mapstructure:"webhook"`

	Store struct {
		Driver        string `mapstructure:"driver"` // badger | postgres | redis
		Path          string `mapstructure:"path"`
		DSN           string `mapstructure:"dsn"`
		RedisAddr     string `mapstructure:"redis_addr"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
		KeyPrefix     string `mapstructure:"key_prefix"`
	} `mapstructure:"store"`

	Monitor struct {
		Interval         time.Duration `mapstructure:"interval"`
		Epsilon          float64       `mapstructure:"epsilon"`
		FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	} `mapstructure:"monitor"`

	Oracle struct {
		Timeout        time.Duration `mapstructure:"timeout"`
		CryptoProvider string        `mapstructure:"crypto_provider"` // coingecko | binance

		CoinGecko ProviderConfig `mapstructure:"coingecko"`
		Binance   ProviderConfig `mapstructure:"binance"`
		Metals    ProviderConfig `mapstructure:"metals"`
		Alpha     ProviderConfig `mapstructure:"alpha"`
	} `mapstructure:"oracle"`

	Hub struct {
		MaxLog      int           `mapstructure:"max_log"`
		DedupWindow int           `mapstructure:"dedup_window"`
		GraceWindow time.Duration `mapstructure:"grace_window"`
	} `mapstructure:"hub"`

	Levels struct {
		RiskPct      float64   `mapstructure:"risk_pct"`
		MetalsTPPct  []float64 `mapstructure:"metals_tp_pct"`
		RewardRatios []float64 `mapstructure:"reward_ratios"`
	} `mapstructure:"levels"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"tracing"`
}

type ProviderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Key           string        `mapstructure:"key"`
	RatePerMinute float64       `mapstructure:"rate_per_minute"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "trade_watch")
	v.SetDefault("service.http_addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file", "logs/trade_watch.log")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 14)

	v.SetDefault("telegram.parse_mode", "Markdown")

	v.SetDefault("store.driver", "badger")
	v.SetDefault("store.path", "data/badger")
	v.SetDefault("store.key_prefix", "trade_watch:")

	v.SetDefault("monitor.interval", 60*time.Second)
	v.SetDefault("monitor.epsilon", 0.0001)
	v.SetDefault("monitor.fetch_concurrency", 4)

	v.SetDefault("oracle.timeout", 10*time.Second)
	v.SetDefault("oracle.crypto_provider", "coingecko")
	v.SetDefault("oracle.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("oracle.coingecko.rate_per_minute", 30)
	v.SetDefault("oracle.binance.rate_per_minute", 600)
	v.SetDefault("oracle.metals.base_url", "https://metals-api.com/api")
	v.SetDefault("oracle.metals.rate_per_minute", 10)
	v.SetDefault("oracle.metals.cooldown", time.Hour)
	v.SetDefault("oracle.alpha.base_url", "https://www.alphavantage.co")
	v.SetDefault("oracle.alpha.rate_per_minute", 5)

	v.SetDefault("hub.max_log", 500)
	v.SetDefault("hub.dedup_window", 200)
	v.SetDefault("hub.grace_window", 90*time.Second)

	v.SetDefault("levels.risk_pct", 0.5)
	v.SetDefault("levels.metals_tp_pct", []float64{0.4, 0.8, 1.2})
	v.SetDefault("levels.reward_ratios", []float64{2, 3.6, 5.6})

	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
}

func NewConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	v.SetConfigFile("configs/" + configFileName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", env)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}
