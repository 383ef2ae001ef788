// SPDX-License-Identifier: GPL-3.0-or-later

// Command socol runs small echo servers and clients on top of the
// socol registry. It mostly exists to exercise the package end to end.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bassosimone/socol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "socol: %s\n", err)
		os.Exit(1)
	}
}

// newRootCmd returns the root command with every subcommand attached.
func newRootCmd() *cobra.Command {
	gf := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "socol",
		Short: "Callback-driven TCP and UDP echo tools",
		Long: `socol drives a non-blocking socket registry from a single goroutine.

Each command creates a registry, registers some sockets, and calls Update
on every tick until interrupted or done.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&gf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g., 127.0.0.1:9100)")
	flags.DurationVar(&gf.tick, "tick", 10*time.Millisecond, "interval between registry updates")
	flags.BoolVarP(&gf.verbose, "verbose", "v", false, "emit debug logs as JSON")

	rootCmd.AddCommand(
		serveCmd(gf),
		udpCmd(gf),
		sendCmd(gf),
		versionCmd(),
	)
	return rootCmd
}

// globalFlags contains the flags shared by every command.
type globalFlags struct {
	metricsAddr string
	tick        time.Duration
	verbose     bool
}

// setup returns the configuration and logger for a command and starts
// the metrics server when requested. The server stops when ctx is done.
func (gf *globalFlags) setup(ctx context.Context) (*socol.Config, *slog.Logger) {
	var logger *slog.Logger
	if gf.verbose {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	cfg := socol.NewConfig()
	if gf.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		cfg.Metrics = socol.NewMetrics(reg)
		serveMetrics(ctx, gf.metricsAddr, reg, logger)
	}
	return cfg, logger
}

// run calls Update on every tick until ctx is done.
func (gf *globalFlags) run(ctx context.Context, reg *socol.Registry) {
	ticker := time.NewTicker(gf.tick)
	defer ticker.Stop()
	for {
		reg.Update()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	context.AfterFunc(ctx, func() {
		srv.Close()
	})
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metricsServerDone", slog.Any("err", err))
		}
	}()
}

// familyOf maps the --ipv6 flag to a [socol.Family].
func familyOf(ipv6 bool) socol.Family {
	if ipv6 {
		return socol.IPv6
	}
	return socol.IPv4
}
