package dns

import (
	"fmt"
	"slices"
	"strings"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/lifecycle"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// ProviderSpec lists the environment variables a provider understands.
// Credentials are complete when every variable of one alternative is set.
type ProviderSpec struct {
	Provider     naming.Provider
	Alternatives [][]string
	Optional     []string
}

// EnvACMEEmail supplies the ACME account email non-interactively.
const EnvACMEEmail = "ACME_EMAIL"

var providerSpecs = map[naming.Provider]ProviderSpec{
	naming.ProviderCloudflare: {
		Provider:     naming.ProviderCloudflare,
		Alternatives: [][]string{{"CF_DNS_API_TOKEN"}, {"CF_API_EMAIL", "CF_API_KEY"}},
	},
	naming.ProviderOVH: {
		Provider:     naming.ProviderOVH,
		Alternatives: [][]string{{"OVH_ENDPOINT", "OVH_APPLICATION_KEY", "OVH_APPLICATION_SECRET", "OVH_CONSUMER_KEY"}},
	},
	naming.ProviderRoute53: {
		Provider:     naming.ProviderRoute53,
		Alternatives: [][]string{{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION"}},
		Optional:     []string{"AWS_HOSTED_ZONE_ID"},
	},
	naming.ProviderDigitalOcean: {
		Provider:     naming.ProviderDigitalOcean,
		Alternatives: [][]string{{"DO_AUTH_TOKEN"}},
	},
}

// SpecFor returns the variable table of provider.
func SpecFor(provider naming.Provider) (ProviderSpec, error) {
	spec, ok := providerSpecs[provider]
	if !ok {
		_, err := naming.ParseProvider(string(provider))
		return ProviderSpec{}, err
	}
	return spec, nil
}

// PromptKeys returns the variables asked for interactively: the preferred
// alternative followed by the optional ones.
func (p ProviderSpec) PromptKeys() []string {
	return append(slices.Clone(p.Alternatives[0]), p.Optional...)
}

// Keys returns every variable the provider understands.
func (p ProviderSpec) Keys() []string {
	var keys []string
	for _, alt := range p.Alternatives {
		keys = append(keys, alt...)
	}
	return append(keys, p.Optional...)
}

// Select picks the values of the first complete alternative plus any
// optional values from lookup. Incomplete input wraps
// entity.ErrMissingCredential and names what the preferred alternative lacks.
func (p ProviderSpec) Select(lookup func(key string) (string, bool)) (lifecycle.Credentials, error) {
	for _, alt := range p.Alternatives {
		creds := lifecycle.Credentials{}
		for _, key := range alt {
			if v, ok := lookup(key); ok && v != "" {
				creds[key] = []byte(v)
			}
		}
		if len(creds) != len(alt) {
			continue
		}
		for _, key := range p.Optional {
			if v, ok := lookup(key); ok && v != "" {
				creds[key] = []byte(v)
			}
		}
		return creds, nil
	}

	var missing []string
	for _, key := range p.Alternatives[0] {
		if v, ok := lookup(key); !ok || v == "" {
			missing = append(missing, key)
		}
	}
	return nil, fmt.Errorf("%w: %s needs %s", entity.ErrMissingCredential, p.Provider, strings.Join(missing, ", "))
}

// Validate checks that creds hold a complete alternative and nothing the
// provider does not understand.
func (p ProviderSpec) Validate(creds lifecycle.Credentials) (lifecycle.Credentials, error) {
	known := p.Keys()
	for key := range creds {
		if !slices.Contains(known, key) {
			return nil, fmt.Errorf("%w: %s does not use %s", entity.ErrInvalidName, p.Provider, key)
		}
	}
	return p.Select(func(key string) (string, bool) {
		v, ok := creds[key]
		return string(v), ok
	})
}
