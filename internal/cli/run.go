package cli

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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scribeops/scribe/internal/api"
	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/collab/llm"
	"github.com/scribeops/scribe/internal/collab/moderation"
	"github.com/scribeops/scribe/internal/collab/reddit"
	"github.com/scribeops/scribe/internal/config"
	"github.com/scribeops/scribe/internal/engine"
	"github.com/scribeops/scribe/internal/gate"
	"github.com/scribeops/scribe/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	DryRun     bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the lifecycle engine",
		Long: `Start the answer lifecycle engine and the review API server.

The engine polls the configured subreddit for new questions, drafts
answers, screens them, and queues them for human review. Approved
answers are published back to the platform.

Example:
  scribe run --config ./scribe.yaml
  scribe run --config ./scribe.yaml --dry-run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log publishes instead of posting")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DryRun {
		cfg.Publisher.DryRun = true
	}

	logger := newLogger(cfg.LogLevel, opts.Verbose)
	slog.SetDefault(logger)

	logger.Info("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	drafter, err := llm.New(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build drafter", err)
	}
	moderator := moderation.New(cfg.Moderation.ExtraFlaggedKeywords, cfg.Moderation.ExtraBlockedTerms)

	redditClient := reddit.New(reddit.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
		UserAgent:    cfg.Reddit.UserAgent,
	})

	var platform collab.Platform = redditClient
	if cfg.Publisher.DryRun {
		logger.Warn("dry run enabled, replies will not be posted")
		platform = &collab.DryRunPlatform{Logger: logger}
	}

	eng := engine.New(engine.Config{
		Topic:              cfg.Poller.Topic,
		PollEvery:          cfg.Poller.Interval.Std(),
		PollLimit:          cfg.Poller.BatchLimit,
		OrphanAfter:        cfg.Poller.OrphanAfter.Std(),
		LeaseFor:           cfg.Publisher.LeaseDuration.Std(),
		PublishEvery:       cfg.Publisher.Interval.Std(),
		SweepEvery:         cfg.Publisher.SweepInterval.Std(),
		MaxPublishAttempts: cfg.Publisher.MaxAttempts,
		BaseBackoff:        cfg.Publisher.BaseBackoff.Std(),
		MaxBackoff:         cfg.Publisher.MaxBackoff.Std(),
		PublishConcurrency: cfg.Publisher.Concurrency,
		DraftTimeout:       cfg.LLM.Timeout.Std(),
		PublishTimeout:     cfg.Publisher.Timeout.Std(),
	}, st, redditClient, drafter, moderator, platform, logger)

	reviewGate := gate.New(st, moderator, gate.Options{
		RemoderateOnEdit: cfg.Gate.RemoderateOnEdit,
	}, logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })

	if cfg.API.Enabled {
		srv := &http.Server{
			Addr:    cfg.API.Addr,
			Handler: api.NewServer(reviewGate, st, logger).Router(nil),
		}
		g.Go(func() error {
			logger.Info("review API listening", "addr", cfg.API.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("engine starting", "topic", cfg.Poller.Topic, "db", cfg.Database.Path)
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	logger.Info("engine stopped gracefully")
	return nil
}

func newLogger(level string, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
