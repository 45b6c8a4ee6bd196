package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"surplus-backend/services/connectors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <STATE>-<COUNTY>",
	Short: "Triggers a single connector run and prints its outcome.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		parts := strings.SplitN(args[0], "-", 2)
		if len(parts) != 2 {
			log.Fatalf("expected <STATE>-<COUNTY>, got %q", args[0])
		}

		var outcome connectors.RunOutcome
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&outcome).
			Post(fmt.Sprintf("/api/connectors/%s/%s/run", parts[0], parts[1]))
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon returned %s: %s", res.Status(), res.String())
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Job", "Attempt", "Extracted", "Created"})
		t.AppendRow(table.Row{
			outcome.RunID,
			outcome.JobID,
			outcome.AttemptCount,
			outcome.Extracted,
			outcome.Created,
		})
		t.SetStyle(table.StyleRounded)
		t.Render()

		for _, ref := range outcome.CaseRefs {
			fmt.Println(ref)
		}
	},
}
