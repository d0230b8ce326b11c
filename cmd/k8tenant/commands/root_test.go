package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "k8tenant", cmd.Use)
	assert.True(t, cmd.SilenceErrors, "main prints errors with their category")

	for _, flag := range []string{"config", "kubeconfig", "env-file", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing global flag %s", flag)
	}
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, expected := range []string{"tenant", "admin", "dns", "registry", "archives", "version", "completion"} {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
}

func TestEntityGroup_Operations(t *testing.T) {
	cmd := Root()

	for _, group := range []string{"tenant", "admin", "dns", "registry"} {
		sub, _, err := cmd.Find([]string{group})
		require.NoError(t, err)

		names := map[string]bool{}
		for _, op := range sub.Commands() {
			names[op.Name()] = true
			for _, alias := range op.Aliases {
				names[alias] = true
			}
		}
		for _, op := range []string{"add", "create", "remove", "delete", "list", "update", "check"} {
			assert.True(t, names[op], "%s is missing %s", group, op)
		}
	}
}

func TestEntityGroup_VariantFlags(t *testing.T) {
	cmd := Root()

	add, _, err := cmd.Find([]string{"dns", "add"})
	require.NoError(t, err)
	assert.NotNil(t, add.Flags().Lookup("suffix"))
	assert.Nil(t, add.Flags().Lookup("domain"))

	add, _, err = cmd.Find([]string{"registry", "create"})
	require.NoError(t, err)
	assert.NotNil(t, add.Flags().Lookup("domain"))
	assert.NotNil(t, add.Flags().Lookup("cert-resolver"))

	update, _, err := cmd.Find([]string{"tenant", "update"})
	require.NoError(t, err)
	assert.NotNil(t, update.Flags().Lookup("rotate-token"))

	update, _, err = cmd.Find([]string{"dns", "update"})
	require.NoError(t, err)
	assert.Nil(t, update.Flags().Lookup("rotate-token"), "resolver credentials are replaced, not rotated")

	remove, _, err := cmd.Find([]string{"admin", "delete"})
	require.NoError(t, err)
	for _, flag := range []string{"force", "no-archive", "keep-record"} {
		assert.NotNil(t, remove.Flags().Lookup(flag))
	}
}

func TestEntityGroup_ArgsValidation(t *testing.T) {
	root := Root()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"tenant", "add"})

	err := root.Execute()
	assert.Error(t, err, "add needs a name")
}
