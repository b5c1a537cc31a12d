package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zapfinder/internal/config"
	"zapfinder/internal/schedule"
)

// scheduleCmd runs the daemon that fires campaigns at the configured times.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scheduler daemon",
	Long: `Watches the clock and fires a campaign run whenever the current time
matches one of schedule.times (HH:MM, at most once per minute). Edits to the
config file take effect live, no restart needed.`,
	RunE: runScheduler,
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(cfg.Schedule.Times) == 0 {
		return fmt.Errorf("schedule.times is empty, nothing to do")
	}

	entries, err := schedule.NewEntrySet(cfg.Schedule.Times...)
	if err != nil {
		return err
	}
	tick, err := cfg.Tick()
	if err != nil {
		return err
	}

	runner, store, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sched := schedule.New(entries, func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	}, logger, schedule.WithTick(tick))

	watcher := config.NewWatcher(configPath, func(next *config.Config) {
		n := entries.Replace(next.Schedule.Times)
		logger.Info("schedule updated", zap.Int("entries", n))
	}, logger)
	if err := watcher.Start(); err != nil {
		logger.Warn("config watcher unavailable, live reload disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	sched.Start(ctx)
	defer sched.Stop()

	logger.Info("scheduler daemon up", zap.Strings("times", entries.Entries()))

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	<-sigCh
	logger.Info("shutting down, waiting for any in-flight run")
	runner.Control().RequestStop()

	// A second signal aborts the in-flight run instead of waiting.
	go func() {
		<-sigCh
		logger.Warn("second signal, aborting")
		cancel()
	}()

	return nil
}
