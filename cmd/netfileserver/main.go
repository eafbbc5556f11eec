// Command netfileserver boots a netfiles Access Manager server over TCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/snyderdan/netfiles/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		addr           string
		root           string
		maxConns       int
		bandwidthLimit int64
		bandwidthConn  int64
		idleTimeout    time.Duration
		logLevel       string
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "netfileserver",
		Short: "Serve the netfiles remote file-access protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: parseLevel(logLevel),
			}))

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithRoot(root),
				server.WithMaxConnections(maxConns),
				server.WithIdleTimeout(idleTimeout),
				server.WithBandwidthLimit(bandwidthLimit, bandwidthConn),
			}

			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				metrics := server.NewPrometheusMetrics(reg)
				opts = append(opts, server.WithMetricsCollector(metrics))

				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Error("metrics listener failed", "err", err)
					}
				}()
			}

			srv, err := server.NewServer(addr, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":20000", "address to listen on")
	cmd.Flags().StringVar(&root, "root", ".", "directory the server's file access is jailed to")
	cmd.Flags().IntVar(&maxConns, "max-conns", 0, "maximum simultaneous connections (0 = unlimited)")
	cmd.Flags().Int64Var(&bandwidthLimit, "bandwidth-limit", 0, "aggregate bandwidth limit in bytes/sec (0 = unlimited)")
	cmd.Flags().Int64Var(&bandwidthConn, "bandwidth-limit-per-conn", 0, "per-connection bandwidth limit in bytes/sec (0 = unlimited)")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "drop a connection that sends no request within this duration (0 = disabled)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty = disabled)")

	return cmd
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
