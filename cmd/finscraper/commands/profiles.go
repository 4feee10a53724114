package commands

import (
	"os"

	"finscraper/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(profilesCmd)
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Prints the configured institution profiles.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		t := newTable(os.Stdout)
		t.AppendHeader(table.Row{"Profile", "Base URL", "Login", "Tables", "Fields", "JSON", "Credentials"})
		for _, p := range cfg.Profiles {
			_, hasCredentials := cfg.Credentials[p.Name]
			t.AppendRow(table.Row{
				p.Name,
				p.BaseUrl,
				loginKind(p.Login.Kind),
				len(p.Tables),
				len(p.Fields),
				len(p.JSON),
				hasCredentials,
			})
		}
		t.Render()
	},
}
