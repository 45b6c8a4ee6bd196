package cmd

import (
	"fmt"
	"log"
	"os"

	"surplus-backend/services/connectors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(connectorsCmd)
}

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "Prints the registered connectors.",
	Run: func(cmd *cobra.Command, args []string) {
		var configs []connectors.ConnectorConfig
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&configs).
			Get("/api/connectors")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon returned %s: %s", res.Status(), res.String())
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Connector", "Spider", "Interval", "Parsing mode"})
		for _, config := range configs {
			t.AppendRow(table.Row{
				config.Key.String(),
				config.SpiderName,
				fmt.Sprintf("%ds", config.ScheduleInterval),
				string(config.ParsingMode),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
