package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openhyve/openhyve/pkg/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest",
		Long: `Parse and validate the manifest without contacting the cluster.

Checks performed:
  - YAML syntax, with unknown fields rejected
  - Required fields and value formats
  - Resource identity uniqueness
  - Node presence for node-scoped resource kinds`,
		Example: `  # Validate the default manifest
  hyve validate

  # Validate a specific manifest
  hyve validate -f cluster.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := config.NewLoader().Load(manifestPath)
			if err != nil {
				return fmt.Errorf("manifest invalid: %w", err)
			}

			byType := map[string]int{}
			for _, r := range manifest.Resources {
				byType[r.Type]++
			}

			fmt.Printf("Manifest %s is valid.\n", manifestPath)
			fmt.Printf("  endpoint:  %s\n", manifest.Endpoint)
			fmt.Printf("  resources: %d\n", len(manifest.Resources))
			for typ, n := range byType {
				fmt.Printf("    %-10s %d\n", typ, n)
			}
			return nil
		},
	}

	return cmd
}
