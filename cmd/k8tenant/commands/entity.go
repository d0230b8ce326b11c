package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/k8tenant/cmd/k8tenant/handlers"
	"github.com/imamik/k8tenant/internal/entity"
)

type groupInfo struct {
	short   string
	argName string
	example string
}

var groups = map[entity.Variant]groupInfo{
	entity.VariantTenant: {
		short:   "Manage tenant accounts scoped to their own namespace",
		argName: "name",
		example: "  k8tenant tenant add acme\n  k8tenant tenant update acme --rotate-token",
	},
	entity.VariantAdmin: {
		short:   "Manage cluster-wide admin deployer accounts",
		argName: "name",
		example: "  k8tenant admin add ci\n  k8tenant admin remove ci --force",
	},
	entity.VariantDNS: {
		short:   "Manage DNS provider credentials for Traefik certificate resolvers",
		argName: "provider",
		example: "  CF_DNS_API_TOKEN=... k8tenant dns add cloudflare\n  k8tenant dns add ovh --suffix prod\n  k8tenant dns check",
	},
	entity.VariantRegistry: {
		short:   "Manage private registry credentials",
		argName: "name",
		example: "  k8tenant registry add main --domain registry.example.com --cert-resolver letsencrypt-cloudflare\n  k8tenant registry update main --rotate-token",
	},
}

// EntityGroup returns the command group of one entity variant.
func EntityGroup(g *handlers.Globals, variant entity.Variant) *cobra.Command {
	info := groups[variant]
	cmd := &cobra.Command{
		Use:     string(variant),
		Short:   info.short,
		Example: info.example,
	}
	cmd.AddCommand(addCommand(g, variant, info))
	cmd.AddCommand(removeCommand(g, variant))
	cmd.AddCommand(listCommand(g, variant))
	cmd.AddCommand(updateCommand(g, variant))
	cmd.AddCommand(checkCommand(g, variant))
	return cmd
}

func addCommand(g *handlers.Globals, variant entity.Variant, info groupInfo) *cobra.Command {
	var opts handlers.CreateOptions

	cmd := &cobra.Command{
		Use:     fmt.Sprintf("add <%s>", info.argName),
		Aliases: []string{"create"},
		Short:   fmt.Sprintf("Create a %s", variant),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Create(cmd.Context(), g, variant, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false, "Never prompt; read credentials from the environment only")
	switch variant {
	case entity.VariantDNS:
		cmd.Flags().StringVar(&opts.Suffix, "suffix", "", "Resolver name suffix, for several resolvers of one provider")
		cmd.Flags().StringVar(&opts.Email, "email", "", "ACME account email (default: ACME_EMAIL or acme.email)")
	case entity.VariantRegistry:
		cmd.Flags().StringVar(&opts.Domain, "domain", "", "Registry host name (default: REGISTRY_DOMAIN)")
		cmd.Flags().StringVar(&opts.Username, "username", "", "Registry user (default: REGISTRY_USERNAME, then the entity name)")
		cmd.Flags().StringVar(&opts.CertResolver, "cert-resolver", "", "Traefik certificate resolver (default: REGISTRY_CERT_RESOLVER)")
		cmd.Flags().BoolVar(&opts.SkipTLS, "skip-tls-verify", false, "Skip TLS verification when pulling (default: REGISTRY_SKIP_TLS)")
	}
	return cmd
}

func removeCommand(g *handlers.Globals, variant entity.Variant) *cobra.Command {
	var opts handlers.DeleteOptions

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Archive and remove a %s", variant),
		Long: fmt.Sprintf(`Remove deletes the %s and everything it owns.

Before anything is deleted its metadata, credentials and backing objects are
written to an archive bundle. Deletion asks for confirmation unless --force is
given.`, variant),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Delete(cmd.Context(), g, variant, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.NoArchive, "no-archive", false, "Skip the archive bundle")
	cmd.Flags().BoolVar(&opts.KeepRecord, "keep-record", false, "Keep the metadata record with status archived")
	return cmd
}

func listCommand(g *handlers.Globals, variant entity.Variant) *cobra.Command {
	var opts handlers.ListOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("List %s entities with their health", variant),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), g, variant, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "o", "table", "Output format: table or json")
	cmd.Flags().StringVar(&opts.Status, "status", string(entity.StatusActive), "Filter by status: active, archived or all")
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormat)
	_ = cmd.RegisterFlagCompletionFunc("status", completeStatus)
	return cmd
}

func updateCommand(g *handlers.Globals, variant entity.Variant) *cobra.Command {
	var opts handlers.UpdateOptions

	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: fmt.Sprintf("Update a %s; the previous state is archived first", variant),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Update(cmd.Context(), g, variant, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false, "Never prompt; read credentials from the environment only")
	if variant != entity.VariantDNS {
		cmd.Flags().BoolVar(&opts.RotateToken, "rotate-token", false, "Issue a new token or password")
	}
	return cmd
}

func checkCommand(g *handlers.Globals, variant entity.Variant) *cobra.Command {
	return &cobra.Command{
		Use:   "check [name]",
		Short: fmt.Sprintf("Verify the stored credentials of one or all %s entities", variant),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return handlers.Check(cmd.Context(), g, variant, name)
		},
	}
}

// Archives returns the archives command.
func Archives(g *handlers.Globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:       fmt.Sprintf("archives [%s]", strings.Join(variantNames(), "|")),
		Short:     "List archive bundles",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: variantNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant := ""
			if len(args) == 1 {
				variant = args[0]
			}
			return handlers.Archives(cmd.Context(), g, variant, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", "table", "Output format: table or json")
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormat)
	return cmd
}
