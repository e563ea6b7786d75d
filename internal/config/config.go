package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Twilio     TwilioConfig     `mapstructure:"twilio"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Fallback   FallbackConfig   `mapstructure:"fallback"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type TwilioConfig struct {
	AccountSID         string `mapstructure:"account_sid"`
	AuthToken          string `mapstructure:"auth_token"`
	FromNumber         string `mapstructure:"from_number"`
	BaseURL            string `mapstructure:"base_url"` // public base for webhook callbacks
	CallTimeoutSec     int    `mapstructure:"call_timeout_sec"`
	ValidateSignatures bool   `mapstructure:"validate_signatures"`
}

func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	NudgeChannel string        `mapstructure:"nudge_channel"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

type PolicyConfig struct {
	MaxPrimaryAttempts int           `mapstructure:"max_primary_attempts"`
	MaxBackupAttempts  int           `mapstructure:"max_backup_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	SnoozeDelay        time.Duration `mapstructure:"snooze_delay"`
}

// FallbackConfig controls the synthesized outcome used when the voice
// gateway is unavailable. Mode "fail" always reports a retryable failure;
// "simulate" draws from a seeded generator (dev/test only).
type FallbackConfig struct {
	Mode        string  `mapstructure:"mode"` // "fail" | "simulate"
	SuccessRate float64 `mapstructure:"success_rate"`
	Seed        int64   `mapstructure:"seed"`
}

type RelayConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type AnalyticsConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies
// env overrides (RMGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (RMGW_*)
	v.SetEnvPrefix("RMGW")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
