package ingress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/k8tenant/internal/config"
	"github.com/imamik/k8tenant/internal/entity"
)

func resolverRecord(name, provider string, status entity.Status, keys ...string) *entity.Record {
	return &entity.Record{
		Name:           name,
		Variant:        entity.VariantDNS,
		Status:         status,
		CredentialKeys: keys,
		DNS:            &entity.DNSInfo{Provider: provider, Email: "ops@example.com"},
	}
}

func TestResolversFrom_SkipsInactiveAndSorts(t *testing.T) {
	t.Parallel()
	records := []*entity.Record{
		resolverRecord("letsencrypt-route53", "route53", entity.StatusActive, "AWS_ACCESS_KEY_ID"),
		resolverRecord("letsencrypt-cloudflare", "cloudflare", "", "CF_DNS_API_TOKEN"),
		resolverRecord("letsencrypt-ovh", "ovh", entity.StatusArchived, "OVH_ENDPOINT"),
		{Name: "not-a-resolver", Variant: entity.VariantDNS},
	}

	got := ResolversFrom(records)
	require.Len(t, got, 2)
	assert.Equal(t, "letsencrypt-cloudflare", got[0].Name)
	assert.Equal(t, "letsencrypt-route53", got[1].Name)
}

func TestBuildValues_NoResolvers(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	values, warnings := BuildValues(nil, cfg.Traefik, cfg.ACME)
	assert.Empty(t, warnings)
	assert.NotContains(t, values, "certificatesResolvers")
	assert.NotContains(t, values, "env")

	ports := values["ports"].(Values)
	websecure := ports["websecure"].(Values)
	assert.Equal(t, Values{"enabled": true}, websecure["tls"])
}

func TestBuildValues_Resolvers(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.ACME.Staging = true
	resolvers := []Resolver{
		{Name: "letsencrypt-cloudflare", Provider: "cloudflare", Email: "ops@example.com", Keys: []string{"CF_DNS_API_TOKEN"}},
		{Name: "letsencrypt-route53", Provider: "route53", Keys: []string{"AWS_ACCESS_KEY_ID", "AWS_REGION", "AWS_SECRET_ACCESS_KEY"}},
	}
	cfg.ACME.Email = "fallback@example.com"

	values, warnings := BuildValues(resolvers, cfg.Traefik, cfg.ACME)
	assert.Empty(t, warnings)

	crs := values["certificatesResolvers"].(Values)
	require.Len(t, crs, 2)
	cf := crs["letsencrypt-cloudflare"].(Values)["acme"].(Values)
	assert.Equal(t, "ops@example.com", cf["email"])
	assert.Equal(t, "/data/acme.json", cf["storage"])
	assert.Contains(t, cf["caServer"], "staging")
	assert.Equal(t, Values{"provider": "cloudflare"}, cf["dnsChallenge"])

	r53 := crs["letsencrypt-route53"].(Values)["acme"].(Values)
	assert.Equal(t, "fallback@example.com", r53["email"], "resolvers without email use the default")

	env := values["env"].([]Values)
	require.Len(t, env, 4)
	assert.Equal(t, "CF_DNS_API_TOKEN", env[0]["name"])
	assert.Equal(t, Values{"secretKeyRef": Values{
		"name": "letsencrypt-cloudflare-credentials",
		"key":  "CF_DNS_API_TOKEN",
	}}, env[0]["valueFrom"])
	assert.Equal(t, "AWS_SECRET_ACCESS_KEY", env[3]["name"])

	assert.Equal(t, Values{"enabled": true, "path": "/data"}, values["persistence"])
}

func TestBuildValues_SharedProviderWarns(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	resolvers := []Resolver{
		{Name: "letsencrypt-cloudflare", Provider: "cloudflare", Keys: []string{"CF_DNS_API_TOKEN"}},
		{Name: "letsencrypt-cloudflare-staging", Provider: "cloudflare", Keys: []string{"CF_API_EMAIL", "CF_API_KEY"}},
	}

	values, warnings := BuildValues(resolvers, cfg.Traefik, cfg.ACME)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "letsencrypt-cloudflare-staging")

	assert.Len(t, values["certificatesResolvers"].(Values), 2, "both resolvers are published")
	env := values["env"].([]Values)
	require.Len(t, env, 1, "only the first resolver supplies provider variables")
	assert.Equal(t, "CF_DNS_API_TOKEN", env[0]["name"])
}

func TestValues_YAMLRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	values, _ := BuildValues([]Resolver{
		{Name: "letsencrypt-digitalocean", Provider: "digitalocean", Keys: []string{"DO_AUTH_TOKEN"}},
	}, cfg.Traefik, cfg.ACME)

	data, err := values.ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "certificatesResolvers:\n  letsencrypt-digitalocean:\n")

	parsed, err := FromYAML(data)
	require.NoError(t, err)
	assert.Contains(t, parsed, "env")
	assert.Contains(t, parsed, "persistence")

	_, err = FromYAML([]byte("ports: [unterminated"))
	assert.Error(t, err)
}
