package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LocoMH/wwtbam-server/version"
)

var (
	// Shared client flags
	serverURL string
	role      string
	token     string
	timeout   time.Duration
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wwtbam-server",
		Short: "Live-production message relay for the game show clients",
		Long: `wwtbam-server relays controller events to the contestant, host,
TV screen and audience displays over WebSocket connections.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSendCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// addClientFlags registers the connection flags shared by client commands.
func addClientFlags(cmd *cobra.Command, defaultRole string) {
	cmd.Flags().StringVar(&serverURL, "url", "ws://localhost:6789", "Relay WebSocket URL")
	cmd.Flags().StringVar(&role, "role", defaultRole, "Role to authenticate as")
	cmd.Flags().StringVar(&token, "token", "", "Shared secret for the role (default: $WWTBAM_TOKEN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Dial timeout")
}

func clientToken() string {
	if token != "" {
		return token
	}
	return os.Getenv("WWTBAM_TOKEN")
}

func setupLogger(levelName, format string) {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
