package lifecycle

import (
	"context"
	"maps"
	"slices"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/internal/entity"
)

// Credentials are secret values keyed by their short credential key
// (for example "token" or "CF_DNS_API_TOKEN"). The controller namespaces
// them per entity inside the credential store.
type Credentials map[string][]byte

// Keys returns the credential keys in sorted order.
func (c Credentials) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Spec carries the inputs of a create operation. Record is pre-filled with
// the common fields; Prepare adds the variant fields.
type Spec struct {
	Name   string
	Record *entity.Record
	Inputs Credentials
	Params map[string]string
}

// Param returns a non-secret input parameter.
func (s *Spec) Param(key string) string {
	if s.Params == nil {
		return ""
	}
	return s.Params[key]
}

// Step is one idempotent ensure (or teardown) action. Run returns the
// references of the objects it created or removed.
type Step struct {
	Name string
	Run  func(ctx context.Context) ([]entity.ResourceRef, error)
}

// Mutation describes an update.
type Mutation struct {
	// RotateToken regenerates the derived credential (token or password).
	RotateToken bool
	// Inputs replaces user supplied credential values.
	Inputs Credentials
}

// Strategy supplies the variant specific parts of the lifecycle.
type Strategy interface {
	Variant() entity.Variant

	// Prepare validates the inputs and fills the variant fields of
	// spec.Record. It must not touch any store.
	Prepare(spec *Spec) error

	// Steps returns the ordered ensure steps: principal, policy, binding.
	Steps(spec *Spec) []Step

	// Derive produces the derived credential once the steps succeeded.
	Derive(ctx context.Context, spec *Spec) (Credentials, error)

	// Teardown returns the removal steps in reverse creation order.
	Teardown(rec *entity.Record) []Step

	// Manifests returns the live backing objects for archive snapshots.
	Manifests(ctx context.Context, rec *entity.Record) ([]client.Object, error)

	// Probe checks that creds are accepted by the consuming system.
	Probe(ctx context.Context, rec *entity.Record, creds Credentials) error
}

// Updater is implemented by strategies that support update.
type Updater interface {
	// Update applies m to rec in place and returns the credentials to
	// store. Keys absent from the result are left untouched unless the
	// strategy also drops them from rec.CredentialKeys.
	Update(ctx context.Context, rec *entity.Record, creds Credentials, m Mutation) (Credentials, error)
}

// LocalFiles is implemented by strategies that write per-entity files,
// such as generated kubeconfigs. Returned warnings do not fail the
// operation.
type LocalFiles interface {
	WriteFiles(ctx context.Context, rec *entity.Record, creds Credentials) (warnings []string, err error)
	RemoveFiles(rec *entity.Record) error
}

// Downstream is configuration derived from the whole entity set of a
// variant, rebuilt after every change.
type Downstream interface {
	Name() string
	Regenerate(ctx context.Context) (warnings []string, err error)
}

// DeleteRefsStep returns a teardown step that deletes refs in reverse order
// and keeps going on failures.
func DeleteRefsStep(name string, deleteRef func(context.Context, entity.ResourceRef) (bool, error), refs []entity.ResourceRef) []Step {
	steps := make([]Step, 0, len(refs))
	for i := len(refs) - 1; i >= 0; i-- {
		ref := refs[i]
		steps = append(steps, Step{
			Name: name + " " + ref.String(),
			Run: func(ctx context.Context) ([]entity.ResourceRef, error) {
				removed, err := deleteRef(ctx, ref)
				if err != nil || !removed {
					return nil, err
				}
				return []entity.ResourceRef{ref}, nil
			},
		})
	}
	return steps
}

// FetchManifests fetches the live objects behind refs. Missing objects are
// skipped; the first error is returned along with whatever was fetched.
func FetchManifests(ctx context.Context, fetch func(context.Context, entity.ResourceRef) (client.Object, error), refs []entity.ResourceRef) ([]client.Object, error) {
	var (
		objs     []client.Object
		firstErr error
	)
	for _, ref := range refs {
		obj, err := fetch(ctx, ref)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if obj != nil {
			objs = append(objs, obj)
		}
	}
	return objs, firstErr
}
