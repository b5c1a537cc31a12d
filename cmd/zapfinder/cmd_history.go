package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"zapfinder/internal/config"
	"zapfinder/internal/history"
)

var historyLimit int

// historyCmd lists recent delivery attempts, most recent first.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent delivery attempts",
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultListLimit, "maximum entries to show")
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.History.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	attempts, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Println("No deliveries recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SENT AT\tSTATUS\tCHANNEL\tOFFER")
	for _, a := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.SentAt.Format("2006-01-02 15:04:05"), a.Status, a.Channel, a.OfferTitle)
	}
	return w.Flush()
}
