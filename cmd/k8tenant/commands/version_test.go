package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	cmd := Version()

	require.NotNil(t, cmd)
	assert.Equal(t, "version", cmd.Use)
	assert.Equal(t, "Print version information", cmd.Short)
}

func TestSetVersionInfo(t *testing.T) {
	origVersion := version
	origCommit := commit
	origDate := date
	defer func() {
		SetVersionInfo(origVersion, origCommit, origDate)
	}()

	SetVersionInfo("1.2.3", "abc123", "2026-10-18")

	var buf bytes.Buffer
	cmd := Version()
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	assert.Contains(t, buf.String(), "k8tenant 1.2.3")
	assert.Contains(t, buf.String(), "commit: abc123")
	assert.Contains(t, buf.String(), "built:  2026-10-18")
}
