package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"finscraper/internal/components/chrono"
	"finscraper/internal/components/telemetry"
	"finscraper/internal/pipeline"
	"finscraper/internal/profile"
	"finscraper/internal/runstore"
	"finscraper/lib/util/restyutil"
	"finscraper/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var noStore *bool
var printJson *bool
var dumpDir *string

func init() {
	noStore = runCmd.Flags().Bool("no-store", false, "Do not record the run in the store.")
	printJson = runCmd.Flags().Bool("json", false, "Print the outcome as JSON instead of tables.")
	dumpDir = runCmd.Flags().String("dump", "", "Write every response received during the run into this directory.")
	rootCmd.AddCommand(runCmd)
}

func progressLogger(adapter string, phase pipeline.Phase) {
	switch phase {
	case pipeline.VALIDATE_ADAPTER, pipeline.START_ADAPTER, pipeline.END_ADAPTER:
		slog.Debug("progress", "adapter", adapter, "phase", phase)
	case pipeline.FAILED_ADAPTER:
		slog.Warn("progress", "adapter", adapter, "phase", phase)
	default:
		slog.Info("progress", "adapter", adapter, "phase", phase)
	}
}

var runCmd = &cobra.Command{
	Use:   "run <profile> [--no-store] [--json] [--dump <dir>]",
	Short: "Runs the pipeline of a profile and prints its outcome.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		cfg, err := readConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		p, err := profile.Find(cfg.Profiles, name)
		if err != nil {
			serviceutil.Fatal("failed to find profile", err)
		}
		if *dumpDir != "" {
			out, err := restyutil.NewFilesystemOutput(*dumpDir)
			if err != nil {
				serviceutil.Fatal("failed to create dump directory", err)
			}
			p.Dump = &out
		}

		tel := telemetry.SlogAPI{}
		main, cleanup, err := profile.Build(p, cfg.Credentials[name], tel)
		if err != nil {
			serviceutil.Fatal("failed to build pipeline", err)
		}

		clock, err := chrono.NewStandardImpl(cfg.Timezone)
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}

		var store *runstore.Store
		if !*noStore {
			db, err := cfg.Store.OpenDB()
			if err != nil {
				serviceutil.Fatal("failed to open store", err)
			}
			defer db.Close()
			s := runstore.NewStore(db, clock)
			store = &s
		}

		var run runstore.Run
		if store != nil {
			run, err = store.Start(name)
			if err != nil {
				serviceutil.Fatal("failed to start run", err)
			}
		}

		slog.Info("running profile", "profile", name, "adapters", len(main))
		outcome := pipeline.NewRunner(tel).Run(cmd.Context(), pipeline.Options{
			OnProgress: progressLogger,
			OnCleanupError: func(adapter string, err error) {
				tel.ReportWarning("cleanup", adapter, err)
			},
		}, main, cleanup)

		if store != nil {
			run.Outcome = outcome
			// the run context may already be cancelled, the outcome should still be kept
			run, err = store.Record(context.WithoutCancel(cmd.Context()), run)
			if err != nil {
				slog.Error("failed to record run", "err", err)
			} else {
				slog.Info("recorded run", "id", run.ID)
			}
		}

		if *printJson {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			err = encoder.Encode(outcome)
			if err != nil {
				serviceutil.Fatal("failed to encode outcome", err)
			}
		} else {
			printOutcome(os.Stdout, name, outcome)
		}

		if !outcome.Success {
			exitCode = 1
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id> [--json]",
	Short: "Prints the outcome of a recorded run.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		run, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to get run", err)
		}

		if *showJson {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			err = encoder.Encode(run.Outcome)
			if err != nil {
				serviceutil.Fatal("failed to encode outcome", err)
			}
			return
		}
		fmt.Fprintf(os.Stdout, "run %s started %s\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05 MST"))
		printOutcome(os.Stdout, run.Profile, run.Outcome)
	},
}

var showJson *bool

func init() {
	showJson = showCmd.Flags().Bool("json", false, "Print the outcome as JSON instead of tables.")
	rootCmd.AddCommand(showCmd)
}
