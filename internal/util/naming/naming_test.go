package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/k8tenant/internal/entity"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "acme", false},
		{"with hyphen", "acme-prod", false},
		{"single char", "a", false},
		{"digits", "team42", false},
		{"empty", "", true},
		{"uppercase", "Acme", true},
		{"leading hyphen", "-acme", true},
		{"trailing hyphen", "acme-", true},
		{"underscore", "acme_prod", true},
		{"dot", "acme.prod", true},
		{"too long", strings.Repeat("a", 64), true},
		{"max length", strings.Repeat("a", 63), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, entity.ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSuffix(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateSuffix(""))
	assert.NoError(t, ValidateSuffix("prod"))
	assert.NoError(t, ValidateSuffix("eu-1"))
	assert.ErrorIs(t, ValidateSuffix("-prod"), entity.ErrInvalidName)
	assert.ErrorIs(t, ValidateSuffix("Prod"), entity.ErrInvalidName)
}

func TestResolverName(t *testing.T) {
	t.Parallel()

	name, err := ResolverName("cloudflare", "")
	require.NoError(t, err)
	assert.Equal(t, "letsencrypt-cloudflare", name)

	name, err = ResolverName("ovh", "prod")
	require.NoError(t, err)
	assert.Equal(t, "letsencrypt-ovh-prod", name)

	_, err = ResolverName("gandi", "")
	assert.ErrorIs(t, err, entity.ErrUnsupportedProvider)

	_, err = ResolverName("route53", "Bad")
	assert.ErrorIs(t, err, entity.ErrInvalidName)
}

func TestParseResolverName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input     string
		provider  Provider
		suffix    string
		wantErrIs error
	}{
		{"letsencrypt-cloudflare", ProviderCloudflare, "", nil},
		{"letsencrypt-ovh-prod", ProviderOVH, "prod", nil},
		{"letsencrypt-route53-eu-west", ProviderRoute53, "eu-west", nil},
		{"digitalocean", ProviderDigitalOcean, "", nil},
		{"letsencrypt-gandi", "", "", entity.ErrUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			p, s, err := ParseResolverName(tt.input)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p)
			assert.Equal(t, tt.suffix, s)
		})
	}
}

func TestResolverNameRoundTrip(t *testing.T) {
	t.Parallel()

	for _, p := range Providers {
		for _, suffix := range []string{"", "a", "prod-2"} {
			name, err := ResolverName(string(p), suffix)
			require.NoError(t, err)

			gotP, gotS, err := ParseResolverName(name)
			require.NoError(t, err)
			assert.Equal(t, p, gotP)
			assert.Equal(t, suffix, gotS)
		}
	}
}

func TestObjectNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "k8tenant-dns-metadata", MetadataConfigMap("dns"))
	assert.Equal(t, "k8tenant-tenant-credentials", CredentialSecret("tenant"))
	assert.Equal(t, "acme.token", CredentialKey("acme", "token"))
	assert.Equal(t, "tenant-acme", TenantNamespace("acme"))
	assert.Equal(t, "tenant-acme", ServiceAccount("tenant", "acme"))
	assert.Equal(t, "k8tenant:admin:ci", Role("admin", "ci"))
	assert.Equal(t, "tenant-acme-token", TokenSecret("tenant", "acme"))
	assert.Equal(t, "letsencrypt-ovh-prod-credentials", ResolverSecret("letsencrypt-ovh-prod"))
	assert.Equal(t, "registry-main-htpasswd", HTPasswdSecret("main"))
	assert.Equal(t, "admin-ci.yaml", KubeconfigFile("admin", "ci"))
}
