// Package container wires every component into the bridge's two
// processes (the bot's poller/escalation/notifier/observability side and
// the web service's config HTTP surface) and owns their shared lifecycle.
package container

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration, populated from environment
// variables. Both cmd/bot and cmd/server load one of these; each uses
// only the fields relevant to its own process.
type Config struct {
	Environment     string `mapstructure:"environment"`
	StrictReadiness bool   `mapstructure:"strict_readiness"`

	WebBaseURL string `mapstructure:"web_base_url"`

	PollIntervalS   int `mapstructure:"poll_interval_s"`
	PollMaxBackoffS int `mapstructure:"poll_max_backoff_s"`
	ConfigSyncS     int `mapstructure:"config_sync_interval_s"`

	BotToken       string `mapstructure:"bot_token"`
	ChatAPIBaseURL string `mapstructure:"chat_api_base_url"`

	DatabaseURL      string `mapstructure:"database_url"`
	ConfigAdminToken string `mapstructure:"config_admin_token"`

	SDWebTimeoutS int `mapstructure:"sd_web_timeout_s"`
	WebTimeoutS   int `mapstructure:"web_timeout_s"`
	WebCacheTTLS  int `mapstructure:"web_cache_ttl_s"`

	ServiceDeskBaseURL  string `mapstructure:"servicedesk_base_url"`
	ServiceDeskAPIToken string `mapstructure:"servicedesk_api_token"`

	RedisAddr string `mapstructure:"redis_addr"`

	HTTPPort string `mapstructure:"http_port"`
}

// LoadConfig reads the environment-variable surface into a Config,
// applying the same defaults the reference deployment ships with.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("environment", "local")
	v.SetDefault("strict_readiness", false)
	v.SetDefault("web_base_url", "http://localhost:8080")
	v.SetDefault("poll_interval_s", 30)
	v.SetDefault("poll_max_backoff_s", 300)
	v.SetDefault("config_sync_interval_s", 30)
	v.SetDefault("chat_api_base_url", "https://api.telegram.org")
	v.SetDefault("sd_web_timeout_s", 3)
	v.SetDefault("web_timeout_s", 3)
	v.SetDefault("web_cache_ttl_s", 30)
	v.SetDefault("redis_addr", "")
	v.SetDefault("http_port", "8080")

	// PORT is the conventional override for http_port in container platforms.
	if port := os.Getenv("PORT"); port != "" {
		v.Set("http_port", port)
	}

	cfg := &Config{
		Environment:         v.GetString("environment"),
		StrictReadiness:     v.GetString("strict_readiness") == "1",
		WebBaseURL:          v.GetString("web_base_url"),
		PollIntervalS:       v.GetInt("poll_interval_s"),
		PollMaxBackoffS:     v.GetInt("poll_max_backoff_s"),
		ConfigSyncS:         v.GetInt("config_sync_interval_s"),
		BotToken:            v.GetString("bot_token"),
		ChatAPIBaseURL:      v.GetString("chat_api_base_url"),
		DatabaseURL:         v.GetString("database_url"),
		ConfigAdminToken:    v.GetString("config_admin_token"),
		SDWebTimeoutS:       v.GetInt("sd_web_timeout_s"),
		WebTimeoutS:         v.GetInt("web_timeout_s"),
		WebCacheTTLS:        v.GetInt("web_cache_ttl_s"),
		ServiceDeskBaseURL:  v.GetString("servicedesk_base_url"),
		ServiceDeskAPIToken: v.GetString("servicedesk_api_token"),
		RedisAddr:           v.GetString("redis_addr"),
		HTTPPort:            v.GetString("http_port"),
	}

	switch cfg.Environment {
	case "staging", "prod", "local":
	default:
		return nil, fmt.Errorf("container: unrecognized ENVIRONMENT %q", cfg.Environment)
	}

	return cfg, nil
}

func (c *Config) pollInterval() time.Duration   { return time.Duration(c.PollIntervalS) * time.Second }
func (c *Config) pollMaxBackoff() time.Duration { return time.Duration(c.PollMaxBackoffS) * time.Second }
func (c *Config) configSyncInterval() time.Duration {
	return time.Duration(c.ConfigSyncS) * time.Second
}
