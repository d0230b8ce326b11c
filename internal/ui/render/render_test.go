package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/k8tenant/internal/archive"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/lifecycle"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.ErrorIs(t, err, entity.ErrInvalidName)
}

func TestList(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	List(&buf, entity.VariantTenant, []lifecycle.Entry{
		{
			Record: &entity.Record{
				Name:      "acme",
				Status:    entity.StatusActive,
				CreatedAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
				Account:   &entity.AccountInfo{Namespace: "tenant-acme"},
			},
			Health:  entity.HealthDegraded,
			Missing: []string{"Role/tenant-acme/k8tenant:tenant:acme"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "tenant entities (1)")
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "2026-10-18 12:00:00")
	assert.Contains(t, out, "namespace tenant-acme")
	assert.Contains(t, out, "missing:")

	buf.Reset()
	List(&buf, entity.VariantDNS, nil)
	assert.Contains(t, buf.String(), "none")
}

func TestCheckAndOutcome(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	Check(&buf, entity.VariantDNS, []lifecycle.CheckResult{
		{Name: "letsencrypt-cloudflare", OK: true},
		{Name: "letsencrypt-ovh", Err: errors.New("x"), Message: "missing credential"},
	})
	assert.Contains(t, buf.String(), "missing credential")

	buf.Reset()
	Outcome(&buf, "removed", entity.VariantRegistry, "main", &lifecycle.Outcome{
		ArchiveID: "registry-main-remove-20261018-120000",
		Removed:   []entity.ResourceRef{{Kind: "Secret", Namespace: "registry", Name: "registry-main-htpasswd"}},
		Warnings:  []string{"traefik reload failed"},
	})
	out := buf.String()
	assert.Contains(t, out, "registry/main")
	assert.Contains(t, out, "registry-main-remove-20261018-120000")
	assert.Contains(t, out, "Secret/registry/registry-main-htpasswd")
	assert.Contains(t, out, "traefik reload failed")
}

func TestJSONAndArchives(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, map[string]int{"n": 1}))
	assert.Equal(t, "{\n  \"n\": 1\n}\n", buf.String())

	buf.Reset()
	Archives(&buf, []archive.Bundle{{ID: "tenant-acme-remove-20261018-120000", Captured: []string{"metadata", "credentials"}}})
	assert.True(t, strings.Contains(buf.String(), "metadata,credentials"))
}
