package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	manifestPath string
	statePath    string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hyve",
		Short: "OpenHyve - Hypervisor Reconciliation Engine",
		Long: `OpenHyve reconciles a declarative manifest of hypervisor resources
(VMs, containers, storage, pools, HA, ACLs, networks, downloads,
firewall rules) against a Proxmox VE-style control plane.

Features:
  - Declarative YAML manifests
  - Asynchronous task tracking with per-class time budgets
  - Idempotent, repeatable teardown
  - Policy-gated destructive operations via OPA
  - Local SQLite state with full run history`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "f", "hyve.yaml", "manifest file path")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "hyve.db", "state database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newDestroyCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}
