package cmd

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"surplus-backend/services/connectors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(auditsCmd)
}

var auditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "Prints the audit event ledger.",
	Run: func(cmd *cobra.Command, args []string) {
		var events []connectors.AuditEvent
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&events).
			Get("/api/connectors/audits")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon returned %s: %s", res.Status(), res.String())
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"At", "Connector", "Event", "Payload"})
		for _, event := range events {
			payload := ""
			if event.Payload != nil {
				raw, err := json.Marshal(event.Payload)
				if err == nil {
					payload = string(raw)
				}
			}
			t.AppendRow(table.Row{
				event.At.Format(time.ANSIC),
				event.Connector.String(),
				string(event.Event),
				payload,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
