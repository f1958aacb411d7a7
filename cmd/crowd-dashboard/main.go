package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crowd-dashboard/internal/auth"
	"crowd-dashboard/internal/config"
	httphandler "crowd-dashboard/internal/http"
	"crowd-dashboard/internal/http/middleware"
	"crowd-dashboard/internal/logger"
	"crowd-dashboard/internal/realtime"
	"crowd-dashboard/internal/service"
	"crowd-dashboard/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	sessions := auth.NewSessionStore()
	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	client := upstream.NewClient(
		cfg.Upstream.BaseURL,
		time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second,
		sessions,
		appLogger,
	)

	dashboard := service.NewDashboardService(client, sessions, tokenParser, service.Options{
		FallbackOffsetMinutes: cfg.Dashboard.FallbackOffsetMinutes,
		AlertPageSize:         cfg.Dashboard.AlertPageSize,
		EntriesPageSize:       cfg.Dashboard.EntriesPageSize,
	}, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dashboard.RunAlertRefresher(ctx, time.Duration(cfg.Dashboard.AlertPollSeconds)*time.Second)

	if cfg.Upstream.SocketURL != "" {
		push := realtime.NewClient(
			cfg.Upstream.SocketURL,
			sessions,
			time.Duration(cfg.Realtime.ReconnectDelayMillis)*time.Millisecond,
			cfg.Realtime.MaxReconnectAttempts,
			appLogger,
		)
		push.OnLiveOccupancy = dashboard.ApplyLiveOccupancy
		go push.Run(ctx)
	}

	handler := httphandler.NewHandler(dashboard, appLogger)
	authMiddleware := middleware.Auth(tokenParser, sessions)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting crowd dashboard")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
