package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newApplyCommand() *cobra.Command {
	var parallelism int

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the manifest against the cluster",
		Long: `Reconcile every resource in the manifest toward its desired state.

This command:
  - Loads and validates the manifest
  - Determines the lifecycle phase per resource from stored state
  - Creates missing resources and updates existing ones
  - Waits for asynchronous control-plane tasks within time budgets
  - Persists normalized outputs and the full run history`,
		Example: `  # Apply the default manifest
  hyve apply

  # Apply a specific manifest with limited parallelism
  hyve apply -f cluster.yaml --parallelism 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, parallelism)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			log.Info().
				Str("manifest", manifestPath).
				Int("resources", len(app.manifest.Resources)).
				Int("parallelism", parallelism).
				Msg("Applying manifest")

			result, err := app.runner.Apply(ctx)
			if err != nil {
				return err
			}
			if err := printRunResult(result); err != nil {
				return err
			}
			if result.Failed() {
				return fmt.Errorf("%d of %d reconciliations failed",
					result.Summary.Failed, result.Summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "max parallel reconciliations")

	return cmd
}
