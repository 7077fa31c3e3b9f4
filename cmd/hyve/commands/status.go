package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhyve/openhyve/pkg/stores"
)

func newStatusCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show managed resources and recent runs",
		Long: `Show the resources currently tracked in local state and the most
recent reconciliation runs. Reads only the local state database; the
control plane is not contacted.`,
		Example: `  # Show current state
  hyve status

  # Show the last 25 runs as JSON
  hyve status --limit 25 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			outputs, err := store.ListOutputs(ctx, limit, 0)
			if err != nil {
				return fmt.Errorf("listing outputs: %w", err)
			}
			runs, err := store.ListRuns(ctx, limit, 0)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"outputs": outputs,
					"runs":    runs,
				})
			}

			printOutputs(outputs)
			fmt.Println()
			printRuns(runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")

	return cmd
}

func printOutputs(outputs []*stores.Output) {
	fmt.Printf("Managed resources (%d):\n", len(outputs))
	if len(outputs) == 0 {
		fmt.Println("  none")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  RESOURCE\tTYPE\tVERSION\tLAST RUN")
	for _, o := range outputs {
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n", o.ResourceID, o.ResourceType, o.Version, o.LastRunID)
	}
	w.Flush()
}

func printRuns(runs []*stores.Run) {
	fmt.Printf("Recent runs (%d):\n", len(runs))
	if len(runs) == 0 {
		fmt.Println("  none")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  RUN\tPHASE\tSTATUS\tSTARTED\tERROR")
	for _, r := range runs {
		errMsg := ""
		if r.Error != nil {
			errMsg = *r.Error
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Phase, r.Status, r.StartedAt.Format(time.RFC3339), errMsg)
	}
	w.Flush()
}
