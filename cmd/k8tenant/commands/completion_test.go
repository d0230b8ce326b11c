package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion(t *testing.T) {
	cmd := Completion()

	require.NotNil(t, cmd)
	assert.Equal(t, "completion [bash|fish|powershell|zsh]", cmd.Use)
	assert.Equal(t, []string{"bash", "fish", "powershell", "zsh"}, cmd.ValidArgs)
	assert.True(t, cmd.DisableFlagsInUseLine)
}

func TestCompletion_Output(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := Root()
			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs([]string{"completion", shell})

			require.NoError(t, root.Execute())
			assert.Contains(t, buf.String(), "k8tenant")
		})
	}
}

func TestCompletion_InvalidShell(t *testing.T) {
	root := Root()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"completion", "tcsh"})

	assert.Error(t, root.Execute())
}

func TestCompletion_FlagValues(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"dns", "list", "--status", ""}, []string{"active", "archived", "all"}},
		{[]string{"tenant", "list", "--format", ""}, []string{"table", "json"}},
		{[]string{"archives", "--format", ""}, []string{"table", "json"}},
		{[]string{"archives", ""}, []string{"tenant", "admin", "dns", "registry"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			root := Root()
			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs(append([]string{cobra.ShellCompRequestCmd}, tt.args...))

			require.NoError(t, root.Execute())
			for _, value := range tt.want {
				assert.Contains(t, buf.String(), value+"\n")
			}
		})
	}
}
