package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/towncrier/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent deliveries",
	Long:  `Show the most recent notifications delivered by the relay, newest first. Requires history to be enabled in the config.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of deliveries to show")
}

func runHistory(_ *cobra.Command, _ []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled; enable it in the config to record deliveries")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	deliveries, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		fmt.Println("no deliveries recorded")
		return nil
	}

	for _, d := range deliveries {
		fmt.Printf("%s  %-13s  %-12s  %s\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"), d.Kind, d.Rig, d.Title)
	}
	return nil
}
