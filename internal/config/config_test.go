package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Equal(t, ConcurrencyLastWriteWins, cfg.Store.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Wait.Timeout())
}

func TestLoadFromBytes_OverlaysDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromBytes([]byte(`
namespace: platform
store:
  concurrency: compare-and-swap
wait:
  interval: 500ms
acme:
  email: ops@example.com
  staging: true
`))
	require.NoError(t, err)

	assert.Equal(t, "platform", cfg.Namespace)
	assert.Equal(t, ConcurrencyCompareAndSwap, cfg.Store.Concurrency)
	assert.Equal(t, 5, cfg.Store.MaxConflictRetries, "unset keys keep defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Wait.Interval)
	assert.Equal(t, 30, cfg.Wait.Attempts)
	assert.Equal(t, "traefik", cfg.Traefik.Deployment)
	assert.Contains(t, cfg.ACME.CAServer(), "staging")
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"bad namespace", "namespace: Bad_NS"},
		{"relative state dir", "stateDir: state"},
		{"unknown concurrency", "store:\n  concurrency: optimistic"},
		{"zero attempts", "wait:\n  attempts: 0"},
		{"bad email", "acme:\n  email: not-an-email"},
		{"half s3 credentials", "archive:\n  s3:\n    bucket: b\n    accessKey: a"},
		{"malformed yaml", "namespace: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFromBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		EnvNamespace:   "from-env",
		EnvStateDir:    "/tmp/state",
		EnvConcurrency: ConcurrencyCompareAndSwap,
		EnvWaitInt:     "1s",
		EnvWaitCount:   "not-a-number",
		EnvKubeconfig:  "/root/.kube/config",
		EnvACMEEmail:   "acme@example.com",
	}
	cfg := Default()
	cfg.ACME.Email = "file@example.com"
	applyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "from-env", cfg.Namespace)
	assert.Equal(t, "/tmp/state", cfg.StateDir)
	assert.Equal(t, ConcurrencyCompareAndSwap, cfg.Store.Concurrency)
	assert.Equal(t, time.Second, cfg.Wait.Interval)
	assert.Equal(t, 30, cfg.Wait.Attempts, "malformed values fall back")
	assert.Equal(t, "/root/.kube/config", cfg.Kubeconfig)
	assert.Equal(t, "file@example.com", cfg.ACME.Email, "file value wins over ACME_EMAIL")
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte("archiveDir: /srv/archive\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/archive", cfg.ArchiveDir)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFindUpwards(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))

	_, err := findUpwards(nested)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	want := filepath.Join(root, "a", DefaultConfigFilename)
	require.NoError(t, os.WriteFile(want, []byte("{}"), 0600))

	got, err := findUpwards(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Namespace = "round-trip"
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip", loaded.Namespace)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("K8TENANT_TEST_DOTENV=loaded\nK8TENANT_TEST_PRESET=file\n"), 0600))
	t.Setenv("K8TENANT_TEST_PRESET", "shell")
	t.Cleanup(func() { _ = os.Unsetenv("K8TENANT_TEST_DOTENV") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("K8TENANT_TEST_DOTENV"))
	assert.Equal(t, "shell", os.Getenv("K8TENANT_TEST_PRESET"))

	assert.NoError(t, LoadEnvFile(""))
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}
