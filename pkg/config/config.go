// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups the settings of both binaries (server and notifier).
type Config struct {
	App       AppConfig
	DB        DBConfig
	HTTP      HTTPConfig
	JWT       JWTConfig
	Kafka     KafkaConfig
	Publish   PublishConfig
	Notifier  NotifierConfig
	Directory DirectoryConfig
	Activity  ActivityConfig
	SMTP      SMTPConfig
}

type AppConfig struct {
	Env      string // development, staging, production
	LogLevel string
}

// IsDevelopment switches the logger to console encoding.
func (c AppConfig) IsDevelopment() bool { return c.Env == "development" }

// DBConfig holds PostgreSQL settings. DatabaseURL wins over the discrete fields.
type DBConfig struct {
	DatabaseURL     string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	ApplySchema     bool
}

// ConnectionString returns DATABASE_URL if set, otherwise a DSN built from the parts.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type KafkaConfig struct {
	Brokers       []string
	LowStockTopic string
	DLQTopic      string
	GroupID       string
}

// PublishConfig bounds the low-stock producer retries.
type PublishConfig struct {
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

type NotifierConfig struct {
	Workers           int
	MaxRedeliveries   int
	RedeliveryBackoff time.Duration
	MetricsAddr       string
}

type DirectoryConfig struct {
	URL     string
	Timeout time.Duration
}

type ActivityConfig struct {
	URL     string
	Timeout time.Duration
}

// SMTPConfig is optional; with an empty Host the notifier logs notifications instead of mailing them.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads configuration from environment variables, then .env / config files if present.
// Environment variables take precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.MergeInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	topic := getString(v, "KAFKA_TOPIC_LOW_STOCK", "low_stock_notifications")
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL:     getString(v, "DATABASE_URL", ""),
			Host:            getString(v, "DB_HOST", "localhost"),
			Port:            getInt(v, "DB_PORT", 5432),
			User:            getString(v, "DB_USER", "postgres"),
			Password:        getString(v, "DB_PASSWORD", ""),
			Name:            getString(v, "DB_NAME", "tradeledger"),
			SSLMode:         getString(v, "DB_SSLMODE", "disable"),
			MaxConns:        getInt(v, "DB_MAX_CONNS", 25),
			MinConns:        getInt(v, "DB_MIN_CONNS", 5),
			MaxConnLifetime: getDuration(v, "DB_MAX_CONN_LIFETIME", time.Hour),
			ApplySchema:     getBool(v, "DB_APPLY_SCHEMA", false),
		},
		HTTP: HTTPConfig{
			Addr:            getString(v, "HTTP_ADDR", ":8080"),
			ReadTimeout:     getDuration(v, "HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration(v, "HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDuration(v, "HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		JWT: JWTConfig{
			Secret: getString(v, "JWT_SECRET", ""),
			Issuer: getString(v, "JWT_ISSUER", ""),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getString(v, "KAFKA_BROKERS", "localhost:9092")),
			LowStockTopic: topic,
			DLQTopic:      getString(v, "KAFKA_TOPIC_LOW_STOCK_DLQ", topic+".dlq"),
			GroupID:       getString(v, "KAFKA_GROUP_ID", "low-stock-notifier"),
		},
		Publish: PublishConfig{
			Timeout:      getDuration(v, "PUBLISH_TIMEOUT", 5*time.Second),
			MaxAttempts:  getInt(v, "PUBLISH_MAX_ATTEMPTS", 3),
			InitialDelay: getDuration(v, "PUBLISH_INITIAL_DELAY", time.Second),
			MaxDelay:     getDuration(v, "PUBLISH_MAX_DELAY", 10*time.Second),
		},
		Notifier: NotifierConfig{
			Workers:           getInt(v, "NOTIFIER_WORKERS", 4),
			MaxRedeliveries:   getInt(v, "NOTIFIER_MAX_REDELIVERIES", 5),
			RedeliveryBackoff: getDuration(v, "NOTIFIER_REDELIVERY_BACKOFF", 2*time.Second),
			MetricsAddr:       getString(v, "NOTIFIER_METRICS_ADDR", ":9091"),
		},
		Directory: DirectoryConfig{
			URL:     getString(v, "DIRECTORY_URL", "http://localhost:8000"),
			Timeout: getDuration(v, "DIRECTORY_TIMEOUT", 10*time.Second),
		},
		Activity: ActivityConfig{
			URL:     getString(v, "ACTIVITY_URL", ""),
			Timeout: getDuration(v, "ACTIVITY_TIMEOUT", 5*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getString(v, "SMTP_HOST", ""),
			Port:     getInt(v, "SMTP_PORT", 587),
			Username: getString(v, "SMTP_USERNAME", ""),
			Password: getString(v, "SMTP_PASSWORD", ""),
			From:     getString(v, "SMTP_FROM", "noreply@tradeledger.local"),
		},
	}

	if cfg.Notifier.Workers < 1 {
		return nil, fmt.Errorf("NOTIFIER_WORKERS must be >= 1, got %d", cfg.Notifier.Workers)
	}
	if cfg.Publish.MaxAttempts < 1 {
		return nil, fmt.Errorf("PUBLISH_MAX_ATTEMPTS must be >= 1, got %d", cfg.Publish.MaxAttempts)
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	if s, ok := v.Get(key).(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return n
	}
	return v.GetInt(key)
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	d := v.GetDuration(key)
	if d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
