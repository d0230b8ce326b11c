package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/ui/render"
)

// shellGenerators writes the completion script of one shell.
var shellGenerators = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":  func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish": func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error {
		return root.GenPowerShellCompletionWithDesc(w)
	},
}

func shells() []string {
	names := make([]string, 0, len(shellGenerators))
	for name := range shellGenerators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Completion returns the completion command.
func Completion() *cobra.Command {
	names := shells()
	return &cobra.Command{
		Use:   fmt.Sprintf("completion [%s]", strings.Join(names, "|")),
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for k8tenant.

On a k3s server node the binary usually runs as root, so install the
script system-wide:

  k8tenant completion bash > /etc/bash_completion.d/k8tenant
  k8tenant completion zsh > "${fpath[1]}/_k8tenant"
  k8tenant completion fish > ~/.config/fish/completions/k8tenant.fish

For the current session only:

  source <(k8tenant completion bash)
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             names,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shellGenerators[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}

// completeFixed offers a fixed set of flag values.
func completeFixed(values ...string) cobra.CompletionFunc {
	return cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp)
}

var (
	completeFormat = completeFixed(render.FormatTable, render.FormatJSON)
	completeStatus = completeFixed(string(entity.StatusActive), string(entity.StatusArchived), "all")
)

func variantNames() []string {
	names := make([]string, len(entity.Variants))
	for i, v := range entity.Variants {
		names[i] = string(v)
	}
	return names
}
