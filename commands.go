package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yield-monitor-go/internal/dispatch"
)

func init() {
	cleanupCmd.Flags().Int("days", 0, "delete yield snapshots older than this many days (default HISTORY_RETENTION_DAYS)")

	rootCmd.AddCommand(serveCmd, dailyCmd, migrateCmd, cleanupCmd, vapidCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily notification schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Migrate(ctx); err != nil {
			return errors.Wrap(err, "failed to run migrations")
		}
		logger.Info("database migrations completed")

		c := dispatch.NewCron(logger)
		if cfg.DailyCron != "" {
			if _, err := dispatch.Schedule(ctx, c, cfg.DailyCron, a.runner); err != nil {
				return err
			}
			c.Start()
			logger.Info("daily notifications scheduled", zap.String("cron", cfg.DailyCron))
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           a.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errc := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("addr", srv.Addr))
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down")
		}

		// ctx is done here, so a run in progress returns promptly.
		<-c.Stop().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Send the daily push and email summaries once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), dispatch.RunTimeout)
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.runner.Run(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.UsesDatabase() {
			return errors.New("DATABASE_URL is required for migrate")
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("database initialized successfully")
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old yield history",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := cmd.Flags().GetInt("days")
		if err != nil {
			return err
		}
		if days == 0 {
			days = cfg.HistoryRetentionDays
		}
		if days < 1 {
			return errors.Errorf("--days must be positive, got %d", days)
		}

		if !cfg.UsesDatabase() {
			return errors.New("DATABASE_URL is required for cleanup")
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		deleted, err := st.CleanupHistory(cmd.Context(), days)
		if err != nil {
			return err
		}
		logger.Info("yield history cleaned up", zap.Int("days", days), zap.Int64("deleted", deleted))
		return nil
	},
}

var vapidCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Print a fresh VAPID key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return errors.Wrap(err, "failed to generate VAPID keys")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
		return nil
	},
}
