package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"diskuto/internal/logging"
	"diskuto/pkg/config"
	"diskuto/server"
	"diskuto/store/sqlite"
)

var (
	bindFlags []string
	openFlag  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diskuto REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return err
		}
		if len(bindFlags) > 0 {
			cfg.Server.Binds = bindFlags
		}
		if openFlag {
			cfg.Server.Open = true
			cfg.Server.Binds = append(cfg.Server.Binds, "0.0.0.0:8080")
		}
		if err := logging.Configure(cfg.Logging.Level, cfg.Logging.File); err != nil {
			return err
		}

		builder := &sqlite.Builder{
			Path:         cfg.Storage.SQLiteFile,
			MaxOpenConns: cfg.Storage.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MaxIdleConns,
		}
		exists, err := builder.Exists()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if !exists {
			if err := builder.Create(ctx); err != nil {
				return err
			}
		}
		factory, err := builder.Factory()
		if err != nil {
			return err
		}
		defer factory.Close()

		sqliteFactory, ok := factory.(*sqlite.Factory)
		if !ok {
			return fmt.Errorf("unexpected factory implementation %T", factory)
		}
		if n, err := sqlite.SweepTempBlobs(ctx, sqliteFactory); err != nil {
			return err
		} else if n > 0 {
			logging.For("feedctl").WithField("count", n).Info("swept stray temp blobs at startup")
		}

		app := server.NewApp(factory, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return app.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringArrayVar(&bindFlags, "bind", nil, "address to listen on (repeatable)")
	serveCmd.Flags().BoolVar(&openFlag, "open", false, "also bind 0.0.0.0:8080 for non-loopback access")
}
