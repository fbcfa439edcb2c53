package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/app"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/internal/services"
	"github.com/fastygo/taskboard/pkg/logger"
	achievementUC "github.com/fastygo/taskboard/usecase/achievement"
	cleanupUC "github.com/fastygo/taskboard/usecase/cleanup"
	notifyUC "github.com/fastygo/taskboard/usecase/notify"
)

// env carries what every store-backed command needs. Tests supply their own
// loader.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

type loader func() (*env, error)

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("logger error: %w", err)
	}
	return &env{cfg: cfg, logger: zapLogger}, nil
}

func newRootCmd(load loader) *cobra.Command {
	if load == nil {
		load = loadEnv
	}
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Maintenance commands for the task board",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(load))
	root.AddCommand(cleanupCmd(load))
	root.AddCommand(drainCmd(load))
	root.AddCommand(storyPointCmd())
	return root
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			e.cfg.Migrations.Enabled = true
			if err := app.Migrate(e.cfg, e.logger); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", e.cfg.Store.Driver)
			return nil
		},
	}
}

func cleanupCmd(load loader) *cobra.Command {
	var withNotifications bool

	cmd := &cobra.Command{
		Use:   "cleanup <user-id>",
		Short: "Remove dangling friends, collaborators and requests of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			stores, err := app.OpenStores(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			uc := cleanupUC.New(stores.Users, stores.Tasks, stores.Requests, stores.Notifications, nil, e.logger)
			run := uc.CleanupUserData
			if withNotifications {
				run = uc.RunOnLogin
			}
			report, runErr := run(ctx, args[0])

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&withNotifications, "notifications", false, "also delete notifications from former friends")
	return cmd
}

func drainCmd(load loader) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Replay the offline write buffer against the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			stores, err := app.OpenStores(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			store, err := buffer.Open(e.cfg.Buffer.Path, "buffer", e.cfg.Buffer.MaxSize)
			if err != nil {
				return fmt.Errorf("open buffer: %w", err)
			}
			defer store.Close()

			notifier := notifyUC.New(stores.Notifications, e.logger)
			awarder := achievementUC.New(stores.Users, stores.Ledger, notifier, e.logger)
			processor := services.NewBufferProcessor(store, nil, stores.Users, stores.Tasks, awarder, e.logger,
				services.ProcessorConfig{
					BatchSize:  batch,
					MaxRetries: e.cfg.Buffer.MaxRetry,
					Retention:  time.Duration(e.cfg.Buffer.RetentionHours) * time.Hour,
				})

			before := processor.Size()
			left, err := drainAll(ctx, processor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d, %d left\n", before-left, left)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "items replayed per pass")
	return cmd
}

type drainer interface {
	Drain(ctx context.Context) error
	Size() int
}

// drainAll repeats Drain until the buffer is empty or a pass makes no
// progress, and returns the number of items left.
func drainAll(ctx context.Context, d drainer) (int, error) {
	size := d.Size()
	for size > 0 {
		if err := d.Drain(ctx); err != nil {
			return size, err
		}
		next := d.Size()
		if next >= size {
			return next, nil
		}
		size = next
	}
	return 0, nil
}

func storyPointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "story-point <difficulty> <workload> <risk> <subtasks>",
		Short: "Print the story points a task with these ratings is worth",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]int, len(args))
			for i, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil || n < 0 {
					return fmt.Errorf("argument %d: %q is not a non-negative integer", i+1, arg)
				}
				values[i] = n
			}
			points := domain.CalculateStoryPoint(values[0], values[1], values[2], values[3])
			fmt.Fprintln(cmd.OutOrStdout(), points)
			return nil
		},
	}
}
