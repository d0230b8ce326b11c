package accounts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/lifecycle"
	"github.com/imamik/k8tenant/internal/util/labels"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// Credential keys stored for accounts.
const (
	KeyToken = "token"
	KeyCA    = "ca.crt"
)

// KubeconfigDir is the state subdirectory for generated kubeconfigs.
const KubeconfigDir = "kubeconfigs"

// Options configures account strategies.
type Options struct {
	// SystemNamespace hosts admin deployer principals.
	SystemNamespace string
	// StateDir receives the kubeconfigs subdirectory.
	StateDir string
	// ClusterServer overrides the API server written into kubeconfigs.
	ClusterServer string
	// Poll bounds token and kubeconfig validation waits.
	Poll kube.Poll
	// SkipValidation disables the post-create kubeconfig probe.
	SkipValidation bool
}

// Strategy implements lifecycle.Strategy for tenants and admin deployers.
type Strategy struct {
	k       *kube.Client
	variant entity.Variant
	opts    Options

	// validate is replaced in tests.
	validate func(ctx context.Context, kubeconfig []byte, namespace string, p kube.Poll) error
}

// NewTenant returns the tenant strategy.
func NewTenant(k *kube.Client, opts Options) *Strategy {
	return &Strategy{k: k, variant: entity.VariantTenant, opts: opts, validate: kube.ValidateKubeconfig}
}

// NewAdmin returns the admin deployer strategy.
func NewAdmin(k *kube.Client, opts Options) *Strategy {
	return &Strategy{k: k, variant: entity.VariantAdmin, opts: opts, validate: kube.ValidateKubeconfig}
}

// Variant implements lifecycle.Strategy.
func (s *Strategy) Variant() entity.Variant {
	return s.variant
}

func (s *Strategy) clusterScoped() bool {
	return s.variant == entity.VariantAdmin
}

func (s *Strategy) namespace(name string) string {
	if s.clusterScoped() {
		return s.opts.SystemNamespace
	}
	return naming.TenantNamespace(name)
}

// KubeconfigPath returns where the kubeconfig of name is written.
func (s *Strategy) KubeconfigPath(name string) string {
	return filepath.Join(s.opts.StateDir, KubeconfigDir, naming.KubeconfigFile(string(s.variant), name))
}

// AccessPath returns where the JSON access file of name is written.
func (s *Strategy) AccessPath(name string) string {
	return filepath.Join(s.opts.StateDir, KubeconfigDir, naming.AccessFile(string(s.variant), name))
}

// Prepare implements lifecycle.Strategy.
func (s *Strategy) Prepare(spec *lifecycle.Spec) error {
	if s.clusterScoped() && s.opts.SystemNamespace == "" {
		return fmt.Errorf("%w: admin deployers need a system namespace", entity.ErrInvalidName)
	}
	if !s.clusterScoped() {
		if err := naming.ValidateName(naming.TenantNamespace(spec.Name)); err != nil {
			return err
		}
	}
	spec.Record.Account = &entity.AccountInfo{
		Namespace:      s.namespace(spec.Name),
		ServiceAccount: naming.ServiceAccount(string(s.variant), spec.Name),
		ClusterScoped:  s.clusterScoped(),
		KubeconfigPath: s.KubeconfigPath(spec.Name),
	}
	return nil
}

func (s *Strategy) stamp(obj client.Object, name string) {
	obj.SetLabels(labels.ForEntity(string(s.variant), name).Apply(obj.GetLabels()))
}

func (s *Strategy) ensureStep(stepName, name string, obj client.Object, mutate func()) lifecycle.Step {
	return lifecycle.Step{
		Name: stepName,
		Run: func(ctx context.Context) ([]entity.ResourceRef, error) {
			_, err := s.k.Ensure(ctx, obj, func() error {
				s.stamp(obj, name)
				mutate()
				return nil
			})
			if err != nil {
				return nil, err
			}
			return []entity.ResourceRef{s.k.RefOf(obj)}, nil
		},
	}
}

// Steps implements lifecycle.Strategy: namespace, principal, policy,
// binding and token secret. Admin deployers share the system namespace,
// which is created when missing but never recorded as owned.
func (s *Strategy) Steps(spec *lifecycle.Spec) []lifecycle.Step {
	name := spec.Name
	ns := s.namespace(name)
	saName := naming.ServiceAccount(string(s.variant), name)
	roleName := naming.Role(string(s.variant), name)

	var steps []lifecycle.Step
	if s.clusterScoped() {
		steps = append(steps, lifecycle.Step{
			Name: "system namespace",
			Run: func(ctx context.Context) ([]entity.ResourceRef, error) {
				return nil, s.k.EnsureNamespace(ctx, ns, labels.NewLabelBuilder().Build())
			},
		})
	} else {
		namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: ns}}
		steps = append(steps, s.ensureStep("namespace", name, namespace, func() {}))
	}

	sa := &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: saName}}
	steps = append(steps, s.ensureStep("principal", name, sa, func() {}))

	subjects := []rbacv1.Subject{{Kind: rbacv1.ServiceAccountKind, Name: saName, Namespace: ns}}
	if s.clusterScoped() {
		role := &rbacv1.ClusterRole{ObjectMeta: metav1.ObjectMeta{Name: roleName}}
		binding := &rbacv1.ClusterRoleBinding{ObjectMeta: metav1.ObjectMeta{Name: naming.RoleBinding(string(s.variant), name)}}
		steps = append(steps,
			s.ensureStep("policy", name, role, func() { role.Rules = clusterRules() }),
			s.ensureStep("binding", name, binding, func() {
				binding.RoleRef = rbacv1.RoleRef{APIGroup: rbacv1.GroupName, Kind: "ClusterRole", Name: roleName}
				binding.Subjects = subjects
			}),
		)
	} else {
		role := &rbacv1.Role{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: roleName}}
		binding := &rbacv1.RoleBinding{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: naming.RoleBinding(string(s.variant), name)}}
		steps = append(steps,
			s.ensureStep("policy", name, role, func() { role.Rules = allowedRules() }),
			s.ensureStep("binding", name, binding, func() {
				binding.RoleRef = rbacv1.RoleRef{APIGroup: rbacv1.GroupName, Kind: "Role", Name: roleName}
				binding.Subjects = subjects
			}),
		)
	}

	return append(steps, s.tokenSecretStep(name, ns, saName))
}

func (s *Strategy) tokenSecretStep(name, ns, saName string) lifecycle.Step {
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: naming.TokenSecret(string(s.variant), name)}}
	return s.ensureStep("credential", name, secret, func() {
		secret.Type = corev1.SecretTypeServiceAccountToken
		if secret.Annotations == nil {
			secret.Annotations = map[string]string{}
		}
		secret.Annotations[corev1.ServiceAccountNameKey] = saName
	})
}

// Derive implements lifecycle.Strategy. It waits for the token controller
// to populate the token secret; running out of attempts is a hard failure.
func (s *Strategy) Derive(ctx context.Context, spec *lifecycle.Spec) (lifecycle.Credentials, error) {
	return s.readToken(ctx, spec.Name, nil)
}

func (s *Strategy) readToken(ctx context.Context, name string, previous []byte) (lifecycle.Credentials, error) {
	ns := s.namespace(name)
	secretName := naming.TokenSecret(string(s.variant), name)
	token, err := s.k.WaitForSecretKey(ctx, ns, secretName, corev1.ServiceAccountTokenKey, s.opts.Poll)
	if err != nil {
		return nil, fmt.Errorf("failed to read token of %s %q: %w", s.variant, name, err)
	}
	if previous != nil && bytes.Equal(token, previous) {
		return nil, fmt.Errorf("%w: token secret %s/%s still holds the previous token", entity.ErrTimeout, ns, secretName)
	}

	creds := lifecycle.Credentials{KeyToken: token}
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: secretName}}
	if ok, err := s.k.Exists(ctx, secret); err == nil && ok && len(secret.Data[corev1.ServiceAccountRootCAKey]) > 0 {
		creds[KeyCA] = secret.Data[corev1.ServiceAccountRootCAKey]
	}
	return creds, nil
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

// Update implements lifecycle.Updater. Token rotation replaces the token
// secret and waits for a fresh token; a plain update re-ensures every
// backing object.
func (s *Strategy) Update(ctx context.Context, rec *entity.Record, creds lifecycle.Credentials, m lifecycle.Mutation) (lifecycle.Credentials, error) {
	spec := &lifecycle.Spec{Name: rec.Name, Record: rec}
	steps := s.Steps(spec)
	if m.RotateToken {
		ref := entity.ResourceRef{Kind: "Secret", Namespace: s.namespace(rec.Name), Name: naming.TokenSecret(string(s.variant), rec.Name)}
		if _, err := s.k.DeleteRef(ctx, ref); err != nil {
			return nil, fmt.Errorf("failed to revoke token: %w", err)
		}
	}
	for _, step := range steps {
		if _, err := step.Run(ctx); err != nil {
			return nil, &entity.StepError{Step: step.Name, Err: err}
		}
	}
	if !m.RotateToken {
		return lifecycle.Credentials{}, nil
	}
	return s.readToken(ctx, rec.Name, creds[KeyToken])
}

func (s *Strategy) access(rec *entity.Record, creds lifecycle.Credentials) (AccessFile, error) {
	server, ca, err := s.k.ClusterInfo()
	if err != nil && s.opts.ClusterServer == "" {
		return AccessFile{}, err
	}
	if s.opts.ClusterServer != "" {
		server = s.opts.ClusterServer
	}
	if len(creds[KeyCA]) > 0 {
		ca = creds[KeyCA]
	}
	access := AccessFile{
		Server: server,
		CA:     base64.StdEncoding.EncodeToString(ca),
		Token:  string(creds[KeyToken]),
	}
	if !s.clusterScoped() && rec.Account != nil {
		access.Namespace = rec.Account.Namespace
	}
	return access, nil
}

// Kubeconfig renders the kubeconfig for rec.
func (s *Strategy) Kubeconfig(rec *entity.Record, creds lifecycle.Credentials) ([]byte, AccessFile, error) {
	access, err := s.access(rec, creds)
	if err != nil {
		return nil, AccessFile{}, err
	}
	data, err := BuildKubeconfig("k8tenant", naming.ServiceAccount(string(s.variant), rec.Name), access)
	return data, access, err
}

// WriteFiles implements lifecycle.LocalFiles. A kubeconfig that does not
// authenticate within the poll bound is reported as a warning.
func (s *Strategy) WriteFiles(ctx context.Context, rec *entity.Record, creds lifecycle.Credentials) ([]string, error) {
	if len(creds[KeyToken]) == 0 {
		return nil, fmt.Errorf("%w: %s %q has no token", entity.ErrMissingCredential, s.variant, rec.Name)
	}
	kubeconfig, access, err := s.Kubeconfig(rec, creds)
	if err != nil {
		return nil, err
	}
	if err := writeAccessFiles(s.KubeconfigPath(rec.Name), s.AccessPath(rec.Name), kubeconfig, access); err != nil {
		return nil, err
	}
	if s.opts.SkipValidation {
		return nil, nil
	}
	if err := s.validate(ctx, kubeconfig, access.Namespace, s.opts.Poll); err != nil {
		return []string{fmt.Sprintf("kubeconfig %s was written but could not be validated: %v", s.KubeconfigPath(rec.Name), err)}, nil
	}
	return nil, nil
}

// RemoveFiles implements lifecycle.LocalFiles.
func (s *Strategy) RemoveFiles(rec *entity.Record) error {
	return removeIfExists(s.KubeconfigPath(rec.Name), s.AccessPath(rec.Name))
}

// Probe implements lifecycle.Strategy with a single authenticated list.
func (s *Strategy) Probe(ctx context.Context, rec *entity.Record, creds lifecycle.Credentials) error {
	kubeconfig, access, err := s.Kubeconfig(rec, creds)
	if err != nil {
		return err
	}
	return s.validate(ctx, kubeconfig, access.Namespace, kube.Poll{Interval: s.opts.Poll.Interval, Attempts: 1})
}
