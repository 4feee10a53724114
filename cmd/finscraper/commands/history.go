package commands

import (
	"os"

	"finscraper/internal/components/chrono"
	"finscraper/internal/runstore"
	"finscraper/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var historyLimit *int

func init() {
	historyLimit = historyCmd.Flags().Int("limit", 10, "The number of runs to print, 0 prints every run.")
	rootCmd.AddCommand(historyCmd)
}

// openStore opens the configured store, the process exits when it cannot.
func openStore() runstore.Store {
	cfg, err := readConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		serviceutil.Fatal("failed to load timezone", err)
	}
	db, err := cfg.Store.OpenDB()
	if err != nil {
		serviceutil.Fatal("failed to open store", err)
	}
	return runstore.NewStore(db, clock)
}

var historyCmd = &cobra.Command{
	Use:   "history <profile> [--limit <n>]",
	Short: "Prints the previous runs of a profile, newest first.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		runs, err := store.List(cmd.Context(), args[0], *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}
		printRuns(os.Stdout, runs)
	},
}
