package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eringen/posterkit"
)

type serveOpts struct {
	config    string
	addr      string
	database  string
	staticDir string
	dev       bool
	jsonLogs  bool
}

func newServeCmd() *cobra.Command {
	var opts serveOpts
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), &opts)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", posterkit.EnvOr("POSTERKIT_CONFIG", ""), "TOML config file")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.database, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&opts.staticDir, "static", "", "static assets directory (overrides config)")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "generate a throwaway session secret when none is set")
	cmd.Flags().BoolVar(&opts.jsonLogs, "json-logs", false, "write server logs as JSON")
	return cmd
}

func runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := loadConfig(opts.config)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.database != "" {
		cfg.DatabasePath = opts.database
	}
	if opts.staticDir != "" {
		cfg.StaticDir = opts.staticDir
	}
	if cfg.SessionSecret == "" && opts.dev {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		cfg.SessionSecret = hex.EncodeToString(buf)
		logger.Warn("using a generated session secret; sessions end on restart")
	}
	if cfg.SessionSecret == "" {
		logger.Error("POSTERKIT_SESSION_SECRET is not set (use --dev for local runs)")
		return errors.New("missing session secret")
	}
	if cfg.RemoveBgAPIKey == "" {
		logger.Info("REMOVEBG_API_KEY not set; users must enter their own key")
	}

	serverLog := logrus.New()
	if opts.jsonLogs {
		serverLog.SetFormatter(&logrus.JSONFormatter{})
	}
	if logger.GetLevel() == charmlog.DebugLevel {
		serverLog.SetLevel(logrus.DebugLevel)
	}

	app := posterkit.New(cfg, posterkit.WithLogger(serverLog))
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
