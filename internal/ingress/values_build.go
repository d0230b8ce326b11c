package ingress

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/imamik/k8tenant/internal/config"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// Resolver is one certificate resolver to publish.
type Resolver struct {
	Name     string
	Provider string
	Email    string
	// Keys are the environment variable names stored in the resolver's
	// credential Secret.
	Keys []string
}

// ResolversFrom selects the active DNS records, sorted by name.
func ResolversFrom(records []*entity.Record) []Resolver {
	var out []Resolver
	for _, rec := range records {
		if !rec.IsActive() || rec.DNS == nil {
			continue
		}
		out = append(out, Resolver{
			Name:     rec.Name,
			Provider: rec.DNS.Provider,
			Email:    rec.DNS.Email,
			Keys:     slices.Clone(rec.CredentialKeys),
		})
	}
	slices.SortFunc(out, func(a, b Resolver) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// BuildValues creates the Traefik values for resolvers. Traefik reads
// provider credentials from process environment variables, so only one
// resolver per provider can supply them: the first by name wins and every
// other one is reported as a warning.
func BuildValues(resolvers []Resolver, traefik config.TraefikConfig, acme config.ACMEConfig) (Values, []string) {
	values := Values{
		"ports": buildPorts(),
	}
	if len(resolvers) == 0 {
		return values, nil
	}

	var warnings []string
	resolverValues := Values{}
	envOwner := map[string]string{}
	var env []Values
	for _, r := range resolvers {
		resolverValues[r.Name] = buildResolver(r, traefik, acme)

		if owner, ok := envOwner[r.Provider]; ok {
			warnings = append(warnings, fmt.Sprintf(
				"resolver %s shares provider %s with %s; Traefik uses the credentials of %s",
				r.Name, r.Provider, owner, owner))
			continue
		}
		envOwner[r.Provider] = r.Name
		env = append(env, buildEnv(r)...)
	}

	values["certificatesResolvers"] = resolverValues
	values["env"] = env
	values["persistence"] = buildPersistence(traefik.ACMEStorage)
	return values, warnings
}

func buildResolver(r Resolver, traefik config.TraefikConfig, acme config.ACMEConfig) Values {
	email := r.Email
	if email == "" {
		email = acme.Email
	}
	return Values{
		"acme": Values{
			"email":    email,
			"storage":  traefik.ACMEStorage,
			"caServer": acme.CAServer(),
			"dnsChallenge": Values{
				"provider": r.Provider,
			},
		},
	}
}

// buildEnv maps every credential key of r to a secretKeyRef on the
// resolver's mirrored Secret. The key doubles as the variable name.
func buildEnv(r Resolver) []Values {
	env := make([]Values, 0, len(r.Keys))
	for _, key := range r.Keys {
		env = append(env, Values{
			"name": key,
			"valueFrom": Values{
				"secretKeyRef": Values{
					"name": naming.ResolverSecret(r.Name),
					"key":  key,
				},
			},
		})
	}
	return env
}

// buildPersistence keeps the ACME storage file across restarts.
func buildPersistence(storage string) Values {
	return Values{
		"enabled": true,
		"path":    path.Dir(storage),
	}
}

// buildPorts enables TLS on websecure and redirects web to it.
func buildPorts() Values {
	return Values{
		"web": Values{
			"redirections": Values{
				"entryPoint": Values{
					"to":        "websecure",
					"scheme":    "https",
					"permanent": true,
				},
			},
		},
		"websecure": Values{
			"tls": Values{
				"enabled": true,
			},
		},
	}
}
