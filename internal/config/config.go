package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	ServiceName string

	MerchantID     string
	SaltKey        string
	SaltIndex      int
	GatewayBaseURL string
	GatewayTimeout time.Duration

	SuccessRedirectURL string
	FailureRedirectURL string
	CallbackBaseURL    string

	PollInterval    time.Duration
	PollMaxAttempts int
	PollMaxDuration time.Duration

	RecordStoreURL     string
	RecordStoreTimeout time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	SMTPTimeout  time.Duration

	RedisURL       string
	KafkaBrokers   []string
	JaegerEndpoint string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Error lists every required setting that was absent at startup.
type Error struct {
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

var required = []string{
	"MERCHANT_ID",
	"GATEWAY_SALT_KEY",
	"GATEWAY_SALT_INDEX",
	"GATEWAY_BASE_URL",
	"REDIRECT_SUCCESS_URL",
	"REDIRECT_FAILURE_URL",
	"CALLBACK_BASE_URL",
	"RECORD_STORE_URL",
	"SMTP_HOST",
	"SMTP_USERNAME",
	"SMTP_PASSWORD",
	"REDIS_URL",
	"KAFKA_BROKERS",
}

var defaults = map[string]any{
	"PORT":                 "8081",
	"SERVICE_NAME":         "checkout-service",
	"GATEWAY_TIMEOUT":      "10s",
	"POLL_INTERVAL":        "5s",
	"POLL_MAX_ATTEMPTS":    12,
	"POLL_MAX_DURATION":    "60s",
	"SMTP_PORT":            587,
	"SMTP_TIMEOUT":         "15s",
	"RECORD_STORE_TIMEOUT": "15s",
	"CORS_ALLOWED_ORIGINS": "",
	"RATE_LIMIT_RPS":       5.0,
	"RATE_LIMIT_BURST":     10,
	"JAEGER_ENDPOINT":      "",
	"EMAIL_FROM":           "",
}

// Load reads configuration from the environment, optionally layered over
// the yaml file named by CONFIG_FILE.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range required {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, &Error{Missing: missing}
	}

	cfg := Config{
		Port:               v.GetString("PORT"),
		ServiceName:        v.GetString("SERVICE_NAME"),
		MerchantID:         v.GetString("MERCHANT_ID"),
		SaltKey:            v.GetString("GATEWAY_SALT_KEY"),
		SaltIndex:          v.GetInt("GATEWAY_SALT_INDEX"),
		GatewayBaseURL:     strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),
		GatewayTimeout:     v.GetDuration("GATEWAY_TIMEOUT"),
		SuccessRedirectURL: v.GetString("REDIRECT_SUCCESS_URL"),
		FailureRedirectURL: v.GetString("REDIRECT_FAILURE_URL"),
		CallbackBaseURL:    strings.TrimRight(v.GetString("CALLBACK_BASE_URL"), "/"),
		PollInterval:       v.GetDuration("POLL_INTERVAL"),
		PollMaxAttempts:    v.GetInt("POLL_MAX_ATTEMPTS"),
		PollMaxDuration:    v.GetDuration("POLL_MAX_DURATION"),
		RecordStoreURL:     v.GetString("RECORD_STORE_URL"),
		RecordStoreTimeout: v.GetDuration("RECORD_STORE_TIMEOUT"),
		SMTPHost:           v.GetString("SMTP_HOST"),
		SMTPPort:           v.GetInt("SMTP_PORT"),
		SMTPUsername:       v.GetString("SMTP_USERNAME"),
		SMTPPassword:       v.GetString("SMTP_PASSWORD"),
		EmailFrom:          v.GetString("EMAIL_FROM"),
		SMTPTimeout:        v.GetDuration("SMTP_TIMEOUT"),
		RedisURL:           v.GetString("REDIS_URL"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		JaegerEndpoint:     v.GetString("JAEGER_ENDPOINT"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:       v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
	}
	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.SMTPUsername
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.SaltIndex < 1:
		return fmt.Errorf("GATEWAY_SALT_INDEX must be a positive integer")
	case c.GatewayTimeout <= 0:
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	case c.PollInterval <= 0:
		return fmt.Errorf("POLL_INTERVAL must be positive")
	case c.PollMaxAttempts < 1:
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	case c.PollMaxDuration <= 0:
		return fmt.Errorf("POLL_MAX_DURATION must be positive")
	case c.RecordStoreTimeout <= 0:
		return fmt.Errorf("RECORD_STORE_TIMEOUT must be positive")
	case c.SMTPTimeout <= 0:
		return fmt.Errorf("SMTP_TIMEOUT must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
