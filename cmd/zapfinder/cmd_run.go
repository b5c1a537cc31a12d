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
)

// runCmd fires one campaign run immediately.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one campaign now",
	Long: `Fetches offers from the enabled sources and delivers them to the
configured WhatsApp group. Ctrl+C requests a graceful stop after the message
in flight; a second Ctrl+C aborts.`,
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
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

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("stop requested, finishing current delivery")
		runner.Control().RequestStop()
		<-sigCh
		logger.Warn("second signal, aborting")
		cancel()
	}()

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("campaign finished",
		zap.String("run_id", summary.RunID),
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Bool("aborted", summary.Aborted))

	fmt.Printf("Delivered %d/%d offers", summary.Succeeded, summary.Attempted)
	if summary.Aborted {
		fmt.Print(" (stopped early)")
	}
	fmt.Println()
	return nil
}
