package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/lecternhq/lectern/internal/adapter"
	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/httpapi"
	"github.com/lecternhq/lectern/internal/orchestrator"
	"github.com/lecternhq/lectern/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and chat adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		forceCleanLocks, _ := cmd.Flags().GetBool("force-clean-locks")
		if err := store.CleanupStaleLocks(cfg.Store.DataPath, time.Hour, forceCleanLocks); err != nil {
			slog.Warn("Stale lock check failed", "error", err)
		}

		rt, err := buildRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		sig := NewSignalHandler(cmd.Context())
		sig.Start()
		ctx := sig.Context()

		readTimeout, err := config.DurationOrDefault(cfg.Server.ReadTimeout, config.DefaultServerReadTimeout)
		if err != nil {
			return err
		}
		writeTimeout, err := config.DurationOrDefault(cfg.Server.WriteTimeout, config.DefaultServerWriteTimeout)
		if err != nil {
			return err
		}
		idleTimeout, err := config.DurationOrDefault(cfg.Server.IdleTimeout, config.DefaultServerIdleTimeout)
		if err != nil {
			return err
		}
		shutdownTimeout, err := config.DurationOrDefault(cfg.Server.ShutdownTimeout, config.DefaultServerShutdownTimeout)
		if err != nil {
			return err
		}

		server := httpapi.NewServer(rt.Kernel, rt.Backend, httpapi.Options{
			Port:         cfg.Server.Port,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
			Ready:        rt.Store.IsRunning,
		})
		server.Start()

		handler := adapter.QueryHandler(func(ctx context.Context, sessionID, query string) (*orchestrator.Answer, error) {
			return rt.Kernel.Answer(ctx, sessionID, query)
		})
		startAdapters(ctx, handler)

		scheduler := startReindexScheduler(ctx, rt)

		<-ctx.Done()

		if scheduler != nil {
			scheduler.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown failed", "error", err)
		}

		sig.Stop()
		return nil
	},
}

func startAdapters(ctx context.Context, handler adapter.QueryHandler) {
	if cfg.Adapters.Telegram.Enabled {
		tg := adapter.NewTelegramAdapter(cfg.Adapters.Telegram.BotToken, handler, cfg.Adapters.Telegram.UpdateTimeout)
		if err := tg.Start(ctx); err != nil {
			slog.Error("Failed to start Telegram adapter", "error", err)
		}
	}

	if cfg.Adapters.Slack.Enabled {
		sl := adapter.NewSlackAdapter(cfg.Adapters.Slack.Port, cfg.Adapters.Slack.SigningSecret, cfg.Adapters.Slack.BotToken, handler)
		go func() {
			if err := sl.Start(ctx); err != nil {
				slog.Error("Slack adapter stopped", "error", err)
			}
		}()
	}
}

// startReindexScheduler re-ingests the docs directory on the configured cron
// schedule so new course files show up without a restart.
func startReindexScheduler(ctx context.Context, rt *Runtime) *cron.Cron {
	schedule := cfg.Ingest.ReindexSchedule
	if schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()

		stats, err := rt.Ingestor.IngestDirectory(runCtx, cfg.Ingest.DocsPath, false)
		if err != nil {
			slog.Error("Scheduled reindex failed", "error", err)
			return
		}
		slog.Info("Scheduled reindex finished", "added", stats.CoursesAdded, "skipped", stats.CoursesSkipped)
	})
	if err != nil {
		slog.Error("Invalid reindex schedule", "schedule", schedule, "error", err)
		return nil
	}

	c.Start()
	slog.Info("Reindex scheduler started", "schedule", schedule)
	return c
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("ingest.reindex_schedule", "", "cron schedule for background reindexing (e.g. '@hourly')")
	serveCmd.Flags().Bool("force-clean-locks", false, "remove a stale store lock before starting")
}
