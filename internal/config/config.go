package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr        string // API bind address, e.g., "127.0.0.1:8080" (Windows) or ":8080" (Docker)
	LogDir      string // logs directory
	LogLevel    string
	LogConsole  bool   // tee logs to stderr
	DatabaseURL string // empty means use in-memory store

	RetryAttempts int           // storage write attempts per result
	RetryBackoff  time.Duration // initial backoff between write attempts
	HTTPTimeout   time.Duration // probe timeout

	PublicAPIKeys  []string
	AdminAPIKeys   []string
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
	AllowedOrigins []string

	ResyncSchedule string // cron spec for registry resync; empty disables

	KafkaBrokers []string // empty disables result fan-out
	KafkaTopic   string

	SlackWebhookURL string
	AlertOnRecovery bool
	AlertCooldown   time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", false)
	v.SetDefault("database_url", "")

	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_backoff_ms", 300)
	v.SetDefault("http_timeout_ms", 10000)

	v.SetDefault("public_api_keys", "")
	v.SetDefault("admin_api_keys", "")
	v.SetDefault("public_rpm", 60)
	v.SetDefault("public_burst", 20)
	v.SetDefault("admin_rpm", 30)
	v.SetDefault("admin_burst", 10)
	v.SetDefault("allowed_origins", "*")

	v.SetDefault("resync_schedule", "@every 1m")

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "check-results")

	v.SetDefault("slack_webhook_url", "")
	v.SetDefault("alert_on_recovery", true)
	v.SetDefault("alert_cooldown_ms", 300000)
}

// Load reads configuration from the environment. If CONFIG_FILE names a file
// (yaml, toml, json...), its keys act as defaults under the environment.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", file, err)
			}
		}
	}

	cfg := Config{
		Addr:        v.GetString("api_addr"),
		LogDir:      v.GetString("log_dir"),
		LogLevel:    v.GetString("log_level"),
		LogConsole:  v.GetBool("log_console"),
		DatabaseURL: v.GetString("database_url"),

		RetryAttempts: atLeast(v.GetInt("retry_attempts"), 1),
		RetryBackoff:  millis(atLeast(v.GetInt("retry_backoff_ms"), 0)),
		HTTPTimeout:   millis(atLeast(v.GetInt("http_timeout_ms"), 1)),

		PublicAPIKeys:  splitList(v.GetString("public_api_keys")),
		AdminAPIKeys:   splitList(v.GetString("admin_api_keys")),
		PublicRPM:      atLeast(v.GetInt("public_rpm"), 0), // 0 disables
		PublicBurst:    atLeast(v.GetInt("public_burst"), 1),
		AdminRPM:       atLeast(v.GetInt("admin_rpm"), 0),
		AdminBurst:     atLeast(v.GetInt("admin_burst"), 1),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),

		ResyncSchedule: strings.TrimSpace(v.GetString("resync_schedule")),

		KafkaBrokers: splitList(v.GetString("kafka_brokers")),
		KafkaTopic:   v.GetString("kafka_topic"),

		SlackWebhookURL: strings.TrimSpace(v.GetString("slack_webhook_url")),
		AlertOnRecovery: v.GetBool("alert_on_recovery"),
		AlertCooldown:   millis(atLeast(v.GetInt("alert_cooldown_ms"), 0)),
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atLeast(n, min int) int {
	if n < min {
		return min
	}
	return n
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
