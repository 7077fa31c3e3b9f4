package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDestroyCommand() *cobra.Command {
	var (
		autoApprove bool
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Tear down the manifest's resources",
		Long: `Run delete-phase reconciliation for every resource in the manifest.

Teardown is idempotent: resources that are already gone converge
without error, so an interrupted destroy can simply be re-run. Resource
kinds that default to skipping the destructive call (storage backends)
are only deleted when the manifest opts in with deleteRequested, and
every destructive delete passes the policy gate first.`,
		Example: `  # Destroy with confirmation prompt
  hyve destroy

  # Destroy without prompting
  hyve destroy --auto-approve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, parallelism)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if !autoApprove {
				ok, err := confirm(fmt.Sprintf(
					"Destroy %d resources from %s? Only 'yes' will be accepted: ",
					len(app.manifest.Resources), manifestPath))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Destroy cancelled.")
					return nil
				}
			}

			log.Info().
				Str("manifest", manifestPath).
				Int("resources", len(app.manifest.Resources)).
				Msg("Destroying manifest resources")

			result, err := app.runner.Destroy(ctx)
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

	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "skip confirmation prompt")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "max parallel reconciliations")

	return cmd
}

func confirm(prompt string) (bool, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "yes", nil
}
