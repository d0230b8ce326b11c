package registry

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/lifecycle"
	"github.com/imamik/k8tenant/internal/util/keygen"
	"github.com/imamik/k8tenant/internal/util/labels"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// KeyPassword is the only credential key of a registry entity.
const KeyPassword = "password"

// HTPasswdKey is the data key of the htpasswd Secret.
const HTPasswdKey = "htpasswd"

// Spec parameter keys.
const (
	ParamDomain       = "domain"
	ParamUsername     = "username"
	ParamCertResolver = "certResolver"
	ParamSkipTLS      = "skipTLS"
)

// Environment variables read for non-interactive registration.
const (
	EnvUsername     = "REGISTRY_USERNAME"
	EnvDomain       = "REGISTRY_DOMAIN"
	EnvCertResolver = "REGISTRY_CERT_RESOLVER"
	EnvSkipTLS      = "REGISTRY_SKIP_TLS"
)

// Traefik ingress annotations.
const (
	annotationEntrypoints  = "traefik.ingress.kubernetes.io/router.entrypoints"
	annotationTLS          = "traefik.ingress.kubernetes.io/router.tls"
	annotationCertResolver = "traefik.ingress.kubernetes.io/router.tls.certresolver"
)

// Options locates the registry deployment.
type Options struct {
	Namespace string
	Service   string
	Port      int
}

// Strategy implements lifecycle.Strategy for registry credential sets.
type Strategy struct {
	k    *kube.Client
	opts Options

	// generate is replaced in tests.
	generate func() (string, error)
}

// NewStrategy creates the registry strategy.
func NewStrategy(k *kube.Client, opts Options) *Strategy {
	return &Strategy{
		k:    k,
		opts: opts,
		generate: func() (string, error) {
			return keygen.GeneratePassword(keygen.DefaultPasswordLength)
		},
	}
}

// Variant implements lifecycle.Strategy.
func (s *Strategy) Variant() entity.Variant {
	return entity.VariantRegistry
}

// Prepare implements lifecycle.Strategy. A password is generated unless
// one is supplied as input.
func (s *Strategy) Prepare(spec *lifecycle.Spec) error {
	domain := strings.ToLower(strings.TrimSpace(spec.Param(ParamDomain)))
	if domain == "" {
		return fmt.Errorf("%w: registry domain (set %s or --domain)", entity.ErrMissingCredential, EnvDomain)
	}
	if errs := validation.IsDNS1123Subdomain(domain); len(errs) > 0 {
		return fmt.Errorf("%w: domain %q: %s", entity.ErrInvalidName, domain, strings.Join(errs, "; "))
	}

	username := spec.Param(ParamUsername)
	if username == "" {
		username = spec.Name
	}
	if strings.ContainsAny(username, ": \t\n") {
		return fmt.Errorf("%w: registry username %q", entity.ErrInvalidName, username)
	}

	resolver := spec.Param(ParamCertResolver)
	if resolver != "" {
		if _, _, err := naming.ParseResolverName(resolver); err != nil {
			return err
		}
	}

	skipTLS := false
	if v := spec.Param(ParamSkipTLS); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be a boolean, got %q", entity.ErrInvalidName, EnvSkipTLS, v)
		}
		skipTLS = b
	}

	for key := range spec.Inputs {
		if key != KeyPassword {
			return fmt.Errorf("%w: unexpected registry credential %q", entity.ErrInvalidName, key)
		}
	}
	if len(spec.Inputs[KeyPassword]) == 0 {
		password, err := s.generate()
		if err != nil {
			return err
		}
		spec.Inputs = lifecycle.Credentials{KeyPassword: []byte(password)}
	}

	spec.Record.Registry = &entity.RegistryInfo{
		Domain:             domain,
		Username:           username,
		CertResolverRef:    resolver,
		InsecureSkipVerify: skipTLS,
	}
	return nil
}

func (s *Strategy) ensureStep(stepName, name string, obj client.Object, mutate func() error) lifecycle.Step {
	return lifecycle.Step{
		Name: stepName,
		Run: func(ctx context.Context) ([]entity.ResourceRef, error) {
			_, err := s.k.Ensure(ctx, obj, func() error {
				obj.SetLabels(labels.ForEntity(string(entity.VariantRegistry), name).Apply(obj.GetLabels()))
				return mutate()
			})
			if err != nil {
				return nil, err
			}
			return []entity.ResourceRef{s.k.RefOf(obj)}, nil
		},
	}
}

func (s *Strategy) steps(name string, info *entity.RegistryInfo, password string) []lifecycle.Step {
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{
		Namespace: s.opts.Namespace,
		Name:      naming.HTPasswdSecret(name),
	}}
	ingress := &networkingv1.Ingress{ObjectMeta: metav1.ObjectMeta{
		Namespace: s.opts.Namespace,
		Name:      naming.RegistryIngress(name),
	}}

	return []lifecycle.Step{
		s.ensureStep("auth", name, secret, func() error {
			secret.Type = corev1.SecretTypeOpaque
			// bcrypt salts every hash; keep a line that still matches.
			if keygen.VerifyHTPasswd(string(secret.Data[HTPasswdKey]), info.Username, password) {
				return nil
			}
			line, err := keygen.HTPasswd(info.Username, password)
			if err != nil {
				return err
			}
			secret.Data = map[string][]byte{HTPasswdKey: []byte(line + "\n")}
			return nil
		}),
		s.ensureStep("ingress", name, ingress, func() error {
			annotations := ingress.GetAnnotations()
			if annotations == nil {
				annotations = map[string]string{}
			}
			annotations[annotationEntrypoints] = "websecure"
			annotations[annotationTLS] = "true"
			if info.CertResolverRef != "" {
				annotations[annotationCertResolver] = info.CertResolverRef
			} else {
				delete(annotations, annotationCertResolver)
			}
			ingress.SetAnnotations(annotations)
			ingress.Spec = s.ingressSpec(info.Domain)
			return nil
		}),
	}
}

func (s *Strategy) ingressSpec(domain string) networkingv1.IngressSpec {
	return networkingv1.IngressSpec{
		TLS: []networkingv1.IngressTLS{{Hosts: []string{domain}}},
		Rules: []networkingv1.IngressRule{{
			Host: domain,
			IngressRuleValue: networkingv1.IngressRuleValue{
				HTTP: &networkingv1.HTTPIngressRuleValue{
					Paths: []networkingv1.HTTPIngressPath{{
						Path:     "/",
						PathType: ptr.To(networkingv1.PathTypePrefix),
						Backend: networkingv1.IngressBackend{
							Service: &networkingv1.IngressServiceBackend{
								Name: s.opts.Service,
								Port: networkingv1.ServiceBackendPort{Number: int32(s.opts.Port)},
							},
						},
					}},
				},
			},
		}},
	}
}

// Steps implements lifecycle.Strategy.
func (s *Strategy) Steps(spec *lifecycle.Spec) []lifecycle.Step {
	return s.steps(spec.Name, spec.Record.Registry, string(spec.Inputs[KeyPassword]))
}

// Derive implements lifecycle.Strategy. The password was fixed by Prepare.
func (s *Strategy) Derive(_ context.Context, spec *lifecycle.Spec) (lifecycle.Credentials, error) {
	return lifecycle.Credentials{KeyPassword: spec.Inputs[KeyPassword]}, nil
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

// Update implements lifecycle.Updater. RotateToken generates a new
// password; a supplied password replaces the current one; otherwise the
// backing objects are re-ensured with the current password.
func (s *Strategy) Update(ctx context.Context, rec *entity.Record, creds lifecycle.Credentials, m lifecycle.Mutation) (lifecycle.Credentials, error) {
	if rec.Registry == nil {
		return nil, fmt.Errorf("%w: registry %q has no registry fields", entity.ErrStoreUnavailable, rec.Name)
	}

	current := string(creds[KeyPassword])
	password := current
	switch {
	case m.RotateToken:
		for password == current {
			next, err := s.generate()
			if err != nil {
				return nil, err
			}
			password = next
		}
	case len(m.Inputs[KeyPassword]) > 0:
		password = string(m.Inputs[KeyPassword])
	case current == "":
		return nil, fmt.Errorf("%w: no stored password for %q, use --rotate-token", entity.ErrMissingCredential, rec.Name)
	}

	for _, step := range s.steps(rec.Name, rec.Registry, password) {
		refs, err := step.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to %s: %w", step.Name, err)
		}
		for _, ref := range refs {
			if !slices.Contains(rec.ResourceRefs, ref) {
				rec.ResourceRefs = append(rec.ResourceRefs, ref)
			}
		}
	}
	return lifecycle.Credentials{KeyPassword: []byte(password)}, nil
}

// Probe implements lifecycle.Strategy.
func (s *Strategy) Probe(ctx context.Context, rec *entity.Record, creds lifecycle.Credentials) error {
	if rec.Registry == nil {
		return fmt.Errorf("%w: registry %q has no registry fields", entity.ErrStoreUnavailable, rec.Name)
	}
	return probeCatalog(ctx, *rec.Registry, string(creds[KeyPassword]))
}
