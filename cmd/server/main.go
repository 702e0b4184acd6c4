package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/zeusnet/internal/injector"
	"github.com/zeusync/zeusnet/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath  string
		host        string
		port        uint16
		gameDir     string
		logLevel    string
		metricsAddr string
		console     bool
	)

	cmd := &cobra.Command{
		Use:   "zeusnet-server",
		Short: "Run a zeusnet UDP game server",
		Long: `Run a zeusnet UDP game server.

Every sub-directory of the game directory holding a config.cfg or
config.yaml is loaded as a game. Flags override the configuration file;
ZEUSNET_GAME_DIR overrides the game directory of the file.

Examples:
  zeusnet-server --game-dir Games --port 8081
  zeusnet-server --config server.yaml --console`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := server.LoadConfig(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("host") {
				config.Host = host
			}
			if flags.Changed("port") {
				config.Port = port
			}
			if flags.Changed("game-dir") {
				config.GameDir = gameDir
			}
			if flags.Changed("log-level") {
				config.LogLevel = logLevel
			}
			if flags.Changed("metrics-addr") {
				config.MetricsAddr = metricsAddr
			}
			if flags.Changed("console") {
				config.Console = console
			}
			if err := config.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), config)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&host, "host", "H", "", "Address to bind to")
	flags.Uint16VarP(&port, "port", "p", 0, "UDP port to bind to")
	flags.StringVarP(&gameDir, "game-dir", "g", "", "Directory holding one sub-directory per game")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Address of the /metrics and /healthz endpoint, empty to disable")
	flags.BoolVar(&console, "console", false, "Read admin commands from standard input")

	return cmd
}

func run(parent context.Context, config server.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := injector.InitializeServer(config)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return s.Run(ctx)
}
