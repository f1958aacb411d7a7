package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type UpstreamConfig struct {
	BaseURL        string
	SocketURL      string
	TimeoutSeconds int
}

type AuthConfig struct {
	AccessSecret string
}

type DashboardConfig struct {
	FallbackOffsetMinutes int
	AlertPollSeconds      int
	AlertPageSize         int
	EntriesPageSize       int
}

type RealtimeConfig struct {
	ReconnectDelayMillis int
	MaxReconnectAttempts int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	Upstream    UpstreamConfig
	Auth        AuthConfig
	Dashboard   DashboardConfig
	Realtime    RealtimeConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Upstream: UpstreamConfig{
			BaseURL:        v.GetString("UPSTREAM_BASE_URL"),
			SocketURL:      v.GetString("UPSTREAM_SOCKET_URL"),
			TimeoutSeconds: v.GetInt("UPSTREAM_TIMEOUT_SECONDS"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Dashboard: DashboardConfig{
			FallbackOffsetMinutes: v.GetInt("SITE_FALLBACK_OFFSET_MINUTES"),
			AlertPollSeconds:      v.GetInt("ALERT_POLL_SECONDS"),
			AlertPageSize:         v.GetInt("ALERT_PAGE_SIZE"),
			EntriesPageSize:       v.GetInt("ENTRIES_PAGE_SIZE"),
		},
		Realtime: RealtimeConfig{
			ReconnectDelayMillis: v.GetInt("WS_RECONNECT_DELAY_MS"),
			MaxReconnectAttempts: v.GetInt("WS_MAX_RECONNECT_ATTEMPTS"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 15
	}
	if cfg.Dashboard.FallbackOffsetMinutes == 0 {
		cfg.Dashboard.FallbackOffsetMinutes = 240 // UTC+4, Gulf Standard Time
	}
	if cfg.Dashboard.AlertPollSeconds <= 0 {
		cfg.Dashboard.AlertPollSeconds = 30
	}
	if cfg.Dashboard.AlertPageSize <= 0 {
		cfg.Dashboard.AlertPageSize = 50
	}
	if cfg.Dashboard.EntriesPageSize <= 0 {
		cfg.Dashboard.EntriesPageSize = 10
	}
	if cfg.Realtime.ReconnectDelayMillis <= 0 {
		cfg.Realtime.ReconnectDelayMillis = 1000
	}
	if cfg.Realtime.MaxReconnectAttempts <= 0 {
		cfg.Realtime.MaxReconnectAttempts = 5
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	return nil
}
