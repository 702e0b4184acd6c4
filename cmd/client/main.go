package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/sdk/go/client"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	config := client.DefaultConfig()
	var (
		logLevel string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "zeusnet-client <game>",
		Short: "Join a game and print the packets the server sends",
		Long: `Join a game on a zeusnet server and print every packet received.

The client sends a heartbeat whenever the server stays silent for the
keep-alive interval and stops on REP_DISCONNECT, on Ctrl+C or once the
duration elapses.

Examples:
  zeusnet-client Arena
  zeusnet-client Arena --name alice --port 8081 --duration 30s`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			config.Game = args[0]
			config.LogLevel = level

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return run(ctx, config)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&config.Host, "host", "H", config.Host, "Server host")
	flags.Uint16VarP(&config.Port, "port", "p", config.Port, "Server UDP port")
	flags.StringVar(&config.Family, "family", config.Family, "ipv4 or ipv6")
	flags.StringVarP(&config.Name, "name", "n", "", "Player name sent with the connect request")
	flags.DurationVar(&config.KeepAliveInterval, "keepalive", config.KeepAliveInterval, "Heartbeat interval")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flags.DurationVarP(&duration, "duration", "d", 0, "Stop after this long, 0 runs until interrupted")

	return cmd
}

func run(ctx context.Context, config client.Config) error {
	c := client.New(config, nil)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	received := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("Stopped. Total packets received: %d\n", received)
			return nil
		case <-ticker.C:
		}

		for {
			p, ok := c.NextPacket()
			if !ok {
				break
			}
			received++
			fmt.Printf("#%d %s priority=%s payload=%dB\n", received, p.Header.Command, p.Header.Priority, len(p.Payload))

			if p.Header.Command == protocol.RepConnect {
				if w, err := client.ReadWelcome(p); err == nil {
					fmt.Printf("Joined scene %s as entity %d (%s)\n", w.Scene, w.Entity, w.Template)
				}
			}
			if p.Header.Command == protocol.RepDisconnect {
				fmt.Printf("Server closed the session. Total packets received: %d\n", received)
				return nil
			}
		}
	}
}
