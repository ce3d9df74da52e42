package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Oracle    OracleConfig    `mapstructure:"oracle"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Budget    BudgetConfig    `mapstructure:"budget"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Reconcile string `mapstructure:"reconcile"`
	Cleanup   string `mapstructure:"cleanup"`
}

type OracleConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

type GeneratorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ReconcileConfig struct {
	PredictionBatchSize  int           `mapstructure:"prediction_batch_size"`
	AccumulatorBatchSize int           `mapstructure:"accumulator_batch_size"`
	BatchDelay           time.Duration `mapstructure:"batch_delay"`
	EventDuration        time.Duration `mapstructure:"event_duration"`
	PassTimeout          time.Duration `mapstructure:"pass_timeout"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	RetryTTL             time.Duration `mapstructure:"retry_ttl"`
	SettlementTTL        time.Duration `mapstructure:"settlement_ttl"`
	ScanPageSize         int           `mapstructure:"scan_page_size"`
}

type LedgerConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

type FeedConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type BudgetConfig struct {
	Default float64 `mapstructure:"default"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.reconcile", "@every 10m")
	v.SetDefault("cron.cleanup", "@daily")
	v.SetDefault("oracle.base_url", "http://localhost:9090")
	v.SetDefault("oracle.timeout", "30s")
	v.SetDefault("oracle.rate_limit", 1.0)
	v.SetDefault("oracle.burst", 1)
	v.SetDefault("generator.base_url", "http://localhost:9091")
	v.SetDefault("generator.timeout", "60s")
	v.SetDefault("reconcile.prediction_batch_size", 20)
	v.SetDefault("reconcile.accumulator_batch_size", 10)
	v.SetDefault("reconcile.batch_delay", "1s")
	v.SetDefault("reconcile.event_duration", "150m")
	v.SetDefault("reconcile.pass_timeout", "5m")
	v.SetDefault("reconcile.max_attempts", 5)
	v.SetDefault("reconcile.retry_ttl", "1h")
	v.SetDefault("reconcile.settlement_ttl", "720h")
	v.SetDefault("reconcile.scan_page_size", 500)
	v.SetDefault("ledger.retention_days", 30)
	v.SetDefault("feed.cache_ttl", "15m")
	v.SetDefault("budget.default", 1000)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
