package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/openhyve/openhyve/pkg/runner"
)

// printRunResult renders a run result as a table, or as JSON when the
// --json flag is set.
func printRunResult(result *runner.RunResult) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("\nRun %s (%s) finished in %s\n", result.RunID, result.Phase, result.Duration.Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  RESOURCE\tPHASE\tSTATUS\tDURATION\tERROR")
	for _, r := range result.Results {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			r.ResourceID, r.Phase, r.Status, r.Duration.Round(time.Millisecond), r.Error)
	}
	w.Flush()

	fmt.Printf("\nSummary: %d total, %d succeeded, %d failed, %d skipped\n",
		result.Summary.Total, result.Summary.Succeeded,
		result.Summary.Failed, result.Summary.Skipped)
	return nil
}
