// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k8tenant/cmd/k8tenant/handlers"
	"github.com/imamik/k8tenant/internal/entity"
)

// Root returns the root command for the k8tenant CLI.
func Root() *cobra.Command {
	g := &handlers.Globals{}

	cmd := &cobra.Command{
		Use:           "k8tenant",
		Short:         "Manage tenants, deployers, DNS resolvers and registry credentials on k3s",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.ConfigPath, "config", "c", "", "Path to k8tenant.yaml (default: nearest k8tenant.yaml, then built-in defaults)")
	flags.StringVar(&g.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig used to reach the cluster")
	flags.StringVar(&g.EnvFile, "env-file", "", "Load credential variables from a dotenv file; set variables win")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "Log every step")

	// Entity groups
	for _, variant := range entity.Variants {
		cmd.AddCommand(EntityGroup(g, variant))
	}

	// Utility commands
	cmd.AddCommand(Archives(g))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
