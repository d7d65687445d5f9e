package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LocoMH/wwtbam-server/auth"
	"github.com/LocoMH/wwtbam-server/config"
	"github.com/LocoMH/wwtbam-server/hub"
	"github.com/LocoMH/wwtbam-server/metrics"
	"github.com/LocoMH/wwtbam-server/protocol"
	"github.com/LocoMH/wwtbam-server/server"
	"github.com/LocoMH/wwtbam-server/version"
	ws "github.com/LocoMH/wwtbam-server/websocket"
)

func newServeCommand() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("WWTBAM_CONFIG")
			}
			return runServe(cmd.Context(), configPath, listen)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (default: $WWTBAM_CONFIG)")
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides config and environment")
	return cmd
}

func runServe(ctx context.Context, configPath, listen string) error {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.Info("relay starting", "version", version.String(), "listen", cfg.Listen, "closeOnAuthFailure", cfg.CloseOnAuthFailure())
	if roles := cfg.DefaultTokenRoles(); len(roles) > 0 {
		slog.Warn("built-in development tokens in use, set auth.tokens or WWTBAM_TOKEN_<ROLE>", "roles", roles)
	}

	reg := metrics.NewRegistry(version.String())
	relayMetrics := metrics.NewRelay(reg)

	relay := hub.New(relayMetrics)
	handler := protocol.NewHandler(relay, auth.New(cfg.TokenTable()),
		protocol.Policy{CloseOnAuthFailure: cfg.CloseOnAuthFailure()}, relayMetrics)

	srv := server.New(server.Config{
		Addr:            cfg.Listen,
		Path:            cfg.Path,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Conn: ws.Options{
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			PingPeriod:     cfg.WebSocket.PingPeriod,
			MaxMessageSize: cfg.WebSocket.ReadLimit,
			SendBuffer:     cfg.WebSocket.SendBuffer,
		},
	}, relay, handler, relayMetrics, reg)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("relay server: %w", err)
	}
	slog.Info("relay stopped")
	return nil
}
