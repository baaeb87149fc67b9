package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "telecare",
		Short:         "Telehealth consultation API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var withReminders bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, withReminders)
		},
	}
	cmd.Flags().BoolVar(&withReminders, "with-reminders", false, "also run the appointment reminder loop in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume domain events and send appointment reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer log.Sync() //nolint:errcheck

			db, err := database.Connect(cmd.Context(), cfg.Database, log)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			return database.Migrate(db, log)
		},
	}
}

func runServer(ctx context.Context, withReminders bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("starting telecare api",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("addr", a.cfg.Server.Address()),
		zap.Bool("kafka", a.cfg.Kafka.Enabled),
		zap.String("storage", a.cfg.Storage.Backend),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server().Run(gctx) })
	if withReminders {
		g.Go(func() error { return a.runReminders(gctx) })
	}

	if err := g.Wait(); err != nil {
		a.log.Error("server stopped with error", zap.Error(err))
		return err
	}
	a.log.Info("server stopped")
	return nil
}

func runWorker(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var consumer *events.Consumer
	if a.cfg.Kafka.Enabled {
		consumer, err = events.NewConsumer(a.cfg.Kafka, a.notificationSvc, a.log)
		if err != nil {
			return fmt.Errorf("creating event consumer: %w", err)
		}
		defer consumer.Close()
	} else {
		a.log.Warn("kafka disabled, worker only sends reminders")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runReminders(gctx) })
	if consumer != nil {
		a.log.Info("consuming events",
			zap.String("topic", a.cfg.Kafka.Topic),
			zap.String("group", a.cfg.Kafka.ConsumerGroup),
		)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		a.log.Error("worker stopped with error", zap.Error(err))
		return err
	}
	a.log.Info("worker stopped")
	return nil
}
