// Command lumina-server is the offline metadata-sharing server: it
// accepts IDA HELO/PUSH_MD/PULL_MD sessions over TCP or TLS and backs
// them with a JSON-file signature store.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synacktiv/lumina-server/internal/config"
	"github.com/synacktiv/lumina-server/internal/logger"
	"github.com/synacktiv/lumina-server/internal/metrics"
	"github.com/synacktiv/lumina-server/internal/server"
	"github.com/synacktiv/lumina-server/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "lumina-server <db-path>",
	Short: "Offline signature-keyed metadata server",
	Long: `lumina-server stores and serves function metadata keyed by
signature, speaking the HELO/PUSH_MD/PULL_MD protocol over a plain TCP
or TLS 1.2 listener.

Examples:
  lumina-server db.json
  lumina-server --ip 0.0.0.0 --port 4443 --cert server.pem --key server.key db.json
  LUMINA_LOG=DEBUG lumina-server --metrics-addr 127.0.0.1:9443 db.json`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	config.BindFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd, args)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store loaded", "path", cfg.DBPath)

	var tlsConfig *tls.Config
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			_ = st.Close(false)
			return fmt.Errorf("load TLS keypair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	mtr := (*metrics.Metrics)(nil)
	if cfg.MetricsEnabled() {
		mtr = metrics.New()
	}

	srv := server.New(server.Config{
		Addr:           fmt.Sprintf("%s:%d", cfg.IP, cfg.Port),
		TLSConfig:      tlsConfig,
		Store:          st,
		SessionTimeout: cfg.SessionTimeout,
		Metrics:        mtr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsEnabled() {
		go metrics.Serve(ctx, cfg.MetricsAddr, mtr)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = <-serveErr
	case runErr = <-serveErr:
		cancel()
	}

	if closeErr := st.Close(true); closeErr != nil {
		logger.Error("store close failed", "error", closeErr)
		if runErr == nil {
			runErr = closeErr
		}
	} else {
		logger.Info("store saved and closed")
	}

	return runErr
}
