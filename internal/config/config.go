package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Site      SiteConfig      `mapstructure:"site"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mail      MailConfig      `mapstructure:"mail"`
	Resend    ResendConfig    `mapstructure:"resend"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	BodyLimit       string        `mapstructure:"body_limit"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	DevOrigin string `mapstructure:"dev_origin"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"` // memory | redis
	MaxRequests   int           `mapstructure:"max_requests"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type MailConfig struct {
	Transport    string `mapstructure:"transport"` // resend | smtp | kafka | log
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
	TemplatePath string `mapstructure:"template_path"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"`
}

type ResendConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	StartTLS bool          `mapstructure:"starttls"`
	HELO     string        `mapstructure:"helo"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	GroupID         string   `mapstructure:"group_id"`
	MinBytes        int      `mapstructure:"min_bytes"`
	MaxBytes        int      `mapstructure:"max_bytes"`
	CommitInterval  int      `mapstructure:"commit_interval_ms"`
	DeadLetterTopic string   `mapstructure:"dead_letter_topic"` // worker republishes undeliverable envelopes here
}

type WorkerConfig struct {
	Transport string `mapstructure:"transport"` // resend | smtp | log
	Workers   int    `mapstructure:"workers"`
}

// Variables the website deployment already sets.
var legacyEnv = map[string][]string{
	"site.base_url":  {"BASE_URL", "NEXT_PUBLIC_BASE_URL"},
	"resend.api_key": {"RESEND_API_KEY"},
	"mail.from":      {"RESEND_FROM_EMAIL"},
	"mail.to":        {"CONTACT_EMAIL"},
}

// Load reads embedded defaults, merges user YAML (if it exists), and applies
// env overrides (QUOTEGW_*, plus the legacy website variables).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return Config{}, fmt.Errorf("merge %s: %w", path, err)
			}
		}
	}

	// env override (QUOTEGW_*)
	v.SetEnvPrefix("QUOTEGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		envs := append([]string{"QUOTEGW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AllowedOrigins returns the origin prefixes accepted by the quote endpoint.
// Empty entries are dropped since an empty prefix would match any origin.
func (c Config) AllowedOrigins() []string {
	candidates := append([]string{c.Site.BaseURL, c.Site.DevOrigin}, c.HTTP.AllowedOrigins...)
	out := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, o := range candidates {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is empty"))
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("rate_limit.backend: unknown backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.max_requests must be positive, got %d", c.RateLimit.MaxRequests))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window))
	}
	switch c.Mail.Transport {
	case "resend", "smtp", "kafka", "log":
	default:
		errs = append(errs, fmt.Errorf("mail.transport: unknown transport %q", c.Mail.Transport))
	}
	if strings.TrimSpace(c.Mail.From) == "" || strings.TrimSpace(c.Mail.To) == "" {
		errs = append(errs, errors.New("mail.from and mail.to are required"))
	}
	if c.Mail.Transport == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka transport needs kafka.brokers and kafka.topic"))
	}

	return errors.Join(errs...)
}
