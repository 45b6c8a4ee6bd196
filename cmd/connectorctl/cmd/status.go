package cmd

import (
	"log"
	"os"
	"time"

	"surplus-backend/services/connectors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the latest run status of every registered connector.",
	Run: func(cmd *cobra.Command, args []string) {
		var views []connectors.ConnectorStatusView
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&views).
			Get("/api/connectors/status")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon returned %s: %s", res.Status(), res.String())
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Connector", "Spider", "Last run", "Cursor", "Extracted", "Created", "Failures", "Last error",
		})
		for _, view := range views {
			lastRun := ""
			if !view.Status.LastRun.IsZero() {
				lastRun = view.Status.LastRun.Format(time.ANSIC)
			}
			t.AppendRow(table.Row{
				view.Connector.Key.String(),
				view.Connector.SpiderName,
				lastRun,
				view.Status.LastCursor,
				view.Status.Extracted,
				view.Status.Created,
				view.Status.Failures,
				view.Status.LastError,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
