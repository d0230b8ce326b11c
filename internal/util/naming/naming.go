package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/imamik/k8tenant/internal/entity"
)

// MaxNameLength is the DNS-1123 label limit.
const MaxNameLength = 63

var nameRegex = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateName checks a tenant, admin deployer or registry name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", entity.ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", entity.ErrInvalidName, name, MaxNameLength)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must consist of lowercase alphanumeric characters or '-', and start and end with an alphanumeric character", entity.ErrInvalidName, name)
	}
	return nil
}

// ValidateSuffix checks an optional DNS resolver suffix. Empty is allowed.
func ValidateSuffix(suffix string) error {
	if suffix == "" {
		return nil
	}
	if !nameRegex.MatchString(suffix) {
		return fmt.Errorf("%w: suffix %q must consist of lowercase alphanumeric characters or '-', and start and end with an alphanumeric character", entity.ErrInvalidName, suffix)
	}
	return nil
}

// Provider is a supported DNS provider.
type Provider string

const (
	ProviderCloudflare   Provider = "cloudflare"
	ProviderOVH          Provider = "ovh"
	ProviderRoute53      Provider = "route53"
	ProviderDigitalOcean Provider = "digitalocean"
)

// Providers lists the supported DNS providers.
var Providers = []Provider{ProviderCloudflare, ProviderOVH, ProviderRoute53, ProviderDigitalOcean}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", entity.ErrUnsupportedProvider, s, providerList())
}

func providerList() string {
	names := make([]string, len(Providers))
	for i, p := range Providers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// ResolverPrefix prefixes every certificate resolver name.
const ResolverPrefix = "letsencrypt"

// ResolverName returns letsencrypt-{provider} or letsencrypt-{provider}-{suffix}.
func ResolverName(provider, suffix string) (string, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return "", err
	}
	if err := ValidateSuffix(suffix); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s", ResolverPrefix, p)
	if suffix != "" {
		name += "-" + suffix
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: resolver name %q is longer than %d characters", entity.ErrInvalidName, name, MaxNameLength)
	}
	return name, nil
}

// ParseResolverName splits a canonical resolver name into provider and suffix.
// A bare provider name ("cloudflare") is accepted as shorthand.
func ParseResolverName(name string) (Provider, string, error) {
	rest := strings.TrimPrefix(name, ResolverPrefix+"-")
	providerPart, suffix, _ := strings.Cut(rest, "-")
	p, err := ParseProvider(providerPart)
	if err != nil {
		return "", "", err
	}
	if err := ValidateSuffix(suffix); err != nil {
		return "", "", err
	}
	return p, suffix, nil
}

// Object names. All backing objects are derived from the entity name.

func MetadataConfigMap(variant string) string {
	return fmt.Sprintf("k8tenant-%s-metadata", variant)
}

func CredentialSecret(variant string) string {
	return fmt.Sprintf("k8tenant-%s-credentials", variant)
}

// CredentialKey namespaces a credential key by entity inside the shared secret.
func CredentialKey(entityName, key string) string {
	return entityName + "." + key
}

func TenantNamespace(tenant string) string {
	return "tenant-" + tenant
}

func ServiceAccount(variant, name string) string {
	return fmt.Sprintf("%s-%s", variant, name)
}

func Role(variant, name string) string {
	return fmt.Sprintf("k8tenant:%s:%s", variant, name)
}

func RoleBinding(variant, name string) string {
	return fmt.Sprintf("k8tenant:%s:%s", variant, name)
}

func TokenSecret(variant, name string) string {
	return fmt.Sprintf("%s-%s-token", variant, name)
}

func ResolverSecret(resolver string) string {
	return resolver + "-credentials"
}

func HTPasswdSecret(registry string) string {
	return fmt.Sprintf("registry-%s-htpasswd", registry)
}

func RegistryIngress(registry string) string {
	return "registry-" + registry
}

func KubeconfigFile(variant, name string) string {
	return fmt.Sprintf("%s-%s.yaml", variant, name)
}

func AccessFile(variant, name string) string {
	return fmt.Sprintf("%s-%s.json", variant, name)
}
