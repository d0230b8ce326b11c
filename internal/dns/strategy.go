package dns

import (
	"context"
	"fmt"
	"maps"
	"net/mail"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/lifecycle"
	"github.com/imamik/k8tenant/internal/util/labels"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// Spec parameter keys.
const (
	ParamProvider = "provider"
	ParamSuffix   = "suffix"
	ParamEmail    = "email"
)

// Strategy implements lifecycle.Strategy for DNS resolvers.
type Strategy struct {
	k *kube.Client
	// secretNamespace is where Traefik runs.
	secretNamespace string
	defaultEmail    string
	probers         map[naming.Provider]Prober
}

// NewStrategy creates the resolver strategy. Credential Secrets are
// mirrored into traefikNamespace.
func NewStrategy(k *kube.Client, traefikNamespace, defaultEmail string) *Strategy {
	return &Strategy{
		k:               k,
		secretNamespace: traefikNamespace,
		defaultEmail:    defaultEmail,
		probers:         DefaultProbers(),
	}
}

// Variant implements lifecycle.Strategy.
func (s *Strategy) Variant() entity.Variant {
	return entity.VariantDNS
}

// Prepare implements lifecycle.Strategy. The entity name must be the
// canonical resolver name of the provider and suffix.
func (s *Strategy) Prepare(spec *lifecycle.Spec) error {
	provider, suffix, err := naming.ParseResolverName(spec.Name)
	if err != nil {
		return err
	}
	canonical, err := naming.ResolverName(string(provider), suffix)
	if err != nil {
		return err
	}
	if canonical != spec.Name {
		return fmt.Errorf("%w: resolver must be named %q", entity.ErrInvalidName, canonical)
	}
	if p := spec.Param(ParamProvider); p != "" && p != string(provider) {
		return fmt.Errorf("%w: name %q does not match provider %q", entity.ErrInvalidName, spec.Name, p)
	}
	if sfx := spec.Param(ParamSuffix); sfx != "" && sfx != suffix {
		return fmt.Errorf("%w: name %q does not match suffix %q", entity.ErrInvalidName, spec.Name, sfx)
	}

	email := spec.Param(ParamEmail)
	if email == "" {
		email = s.defaultEmail
	}
	if email == "" {
		return fmt.Errorf("%w: ACME email (set %s or acme.email)", entity.ErrMissingCredential, EnvACMEEmail)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid ACME email %q", entity.ErrInvalidName, email)
	}

	ps, err := SpecFor(provider)
	if err != nil {
		return err
	}
	creds, err := ps.Validate(spec.Inputs)
	if err != nil {
		return err
	}
	spec.Inputs = creds

	spec.Record.DNS = &entity.DNSInfo{Provider: string(provider), Suffix: suffix, Email: email}
	return nil
}

func (s *Strategy) secretStep(name string, creds lifecycle.Credentials) lifecycle.Step {
	return lifecycle.Step{
		Name: "credential",
		Run: func(ctx context.Context) ([]entity.ResourceRef, error) {
			secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{
				Namespace: s.secretNamespace,
				Name:      naming.ResolverSecret(name),
			}}
			_, err := s.k.Ensure(ctx, secret, func() error {
				secret.Labels = labels.ForEntity(string(entity.VariantDNS), name).Apply(secret.Labels)
				secret.Type = corev1.SecretTypeOpaque
				secret.Data = maps.Clone(creds)
				return nil
			})
			if err != nil {
				return nil, err
			}
			return []entity.ResourceRef{s.k.RefOf(secret)}, nil
		},
	}
}

// Steps implements lifecycle.Strategy. A resolver has no principal or
// policy; its only backing object is the credential Secret read by Traefik.
func (s *Strategy) Steps(spec *lifecycle.Spec) []lifecycle.Step {
	return []lifecycle.Step{s.secretStep(spec.Name, spec.Inputs)}
}

// Derive implements lifecycle.Strategy. Resolver credentials are user input.
func (s *Strategy) Derive(_ context.Context, spec *lifecycle.Spec) (lifecycle.Credentials, error) {
	return spec.Inputs, nil
}

// Teardown implements lifecycle.Strategy.
func (s *Strategy) Teardown(rec *entity.Record) []lifecycle.Step {
	return lifecycle.DeleteRefsStep("delete", s.k.DeleteRef, rec.ResourceRefs)
}

// Manifests implements lifecycle.Strategy.
func (s *Strategy) Manifests(ctx context.Context, rec *entity.Record) ([]client.Object, error) {
	return lifecycle.FetchManifests(ctx, s.k.Fetch, rec.ResourceRefs)
}

// ExistsRef implements lifecycle.RefChecker.
func (s *Strategy) ExistsRef(ctx context.Context, ref entity.ResourceRef) (bool, error) {
	return s.k.ExistsRef(ctx, ref)
}

// Update implements lifecycle.Updater by replacing the provider
// credentials wholesale.
func (s *Strategy) Update(ctx context.Context, rec *entity.Record, _ lifecycle.Credentials, m lifecycle.Mutation) (lifecycle.Credentials, error) {
	if rec.DNS == nil {
		return nil, fmt.Errorf("%w: resolver %q has no provider", entity.ErrStoreUnavailable, rec.Name)
	}
	if len(m.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no replacement credentials for %q", entity.ErrMissingCredential, rec.Name)
	}
	ps, err := SpecFor(naming.Provider(rec.DNS.Provider))
	if err != nil {
		return nil, err
	}
	creds, err := ps.Validate(m.Inputs)
	if err != nil {
		return nil, err
	}
	refs, err := s.secretStep(rec.Name, creds).Run(ctx)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if !containsRef(rec.ResourceRefs, ref) {
			rec.ResourceRefs = append(rec.ResourceRefs, ref)
		}
	}
	rec.CredentialKeys = creds.Keys()
	return creds, nil
}

// Probe implements lifecycle.Strategy.
func (s *Strategy) Probe(ctx context.Context, rec *entity.Record, creds lifecycle.Credentials) error {
	if rec.DNS == nil {
		return fmt.Errorf("%w: resolver %q has no provider", entity.ErrStoreUnavailable, rec.Name)
	}
	probe, ok := s.probers[naming.Provider(rec.DNS.Provider)]
	if !ok {
		return nil
	}
	return probe(ctx, creds)
}

func containsRef(refs []entity.ResourceRef, ref entity.ResourceRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}
