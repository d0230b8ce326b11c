package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/internal/archive"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/metrics"
	"github.com/imamik/k8tenant/internal/observability"
	"github.com/imamik/k8tenant/internal/store"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// Operation names used for archives, events and metrics.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpRemove = "remove"
	OpList   = "list"
	OpCheck  = "check"
)

// ConfirmFunc asks the operator to approve a destructive operation.
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

// Outcome reports what a mutating operation did besides succeeding.
type Outcome struct {
	Record      *entity.Record
	Credentials Credentials
	ArchiveID   string
	Removed     []entity.ResourceRef
	Warnings    []string
}

func (o *Outcome) warn(obs observability.Observer, entityID, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	o.Warnings = append(o.Warnings, msg)
	observability.LogWarning(obs, entityID, "%s", msg)
}

// DeleteOptions controls Delete.
type DeleteOptions struct {
	Archive    bool
	Force      bool
	KeepRecord bool
}

// DefaultDeleteOptions archives and asks for confirmation.
func DefaultDeleteOptions() DeleteOptions {
	return DeleteOptions{Archive: true}
}

// Controller runs lifecycle operations for one variant.
type Controller struct {
	strategy    Strategy
	meta        *store.MetadataStore
	creds       *store.CredentialStore
	archives    *archive.Manager
	downstreams []Downstream
	confirm     ConfirmFunc
	observer    observability.Observer
	metrics     *metrics.Recorder
	identity    string
	toolVersion string
	probeLimit  int
	now         func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithDownstream registers configuration rebuilt after every change.
func WithDownstream(d ...Downstream) Option {
	return func(c *Controller) { c.downstreams = append(c.downstreams, d...) }
}

// WithConfirm sets the confirmation gate used by Delete without Force.
func WithConfirm(fn ConfirmFunc) Option {
	return func(c *Controller) { c.confirm = fn }
}

// WithObserver sets the event observer.
func WithObserver(o observability.Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithMetrics records operation metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Controller) { c.metrics = r }
}

// WithIdentity sets the createdBy value of new records.
func WithIdentity(identity string) Option {
	return func(c *Controller) { c.identity = identity }
}

// WithToolVersion sets the toolVersion value of written records.
func WithToolVersion(v string) Option {
	return func(c *Controller) { c.toolVersion = v }
}

// WithProbeConcurrency bounds parallel health checks and probes.
func WithProbeConcurrency(n int) Option {
	return func(c *Controller) { c.probeLimit = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController wires a Controller for strategy's variant.
func NewController(strategy Strategy, meta *store.MetadataStore, creds *store.CredentialStore, archives *archive.Manager, opts ...Option) *Controller {
	c := &Controller{
		strategy:   strategy,
		meta:       meta,
		creds:      creds,
		archives:   archives,
		observer:   observability.Discard(),
		probeLimit: 4,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.confirm == nil {
		c.confirm = func(context.Context, string) (bool, error) { return false, nil }
	}
	return c
}

// Variant returns the managed variant.
func (c *Controller) Variant() entity.Variant {
	return c.strategy.Variant()
}

func (c *Controller) entityID(name string) string {
	return string(c.strategy.Variant()) + "/" + name
}

func (c *Controller) credentialKeys(name string, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = naming.CredentialKey(name, k)
	}
	return out
}

func (c *Controller) prefixed(name string, creds Credentials) map[string][]byte {
	out := make(map[string][]byte, len(creds))
	for k, v := range creds {
		out[naming.CredentialKey(name, k)] = v
	}
	return out
}

func (c *Controller) loadCredentials(ctx context.Context, rec *entity.Record) (Credentials, error) {
	values, err := c.creds.Get(ctx, c.credentialKeys(rec.Name, rec.CredentialKeys))
	if err != nil {
		return nil, err
	}
	out := make(Credentials, len(values))
	for _, k := range rec.CredentialKeys {
		if v, ok := values[naming.CredentialKey(rec.Name, k)]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// track wraps one operation with events and metrics.
func (c *Controller) track(name, op string, fn func() error) error {
	start := c.now()
	id := c.entityID(name)
	observability.LogOperationStart(c.observer, id, op)
	err := fn()
	duration := c.now().Sub(start)
	c.metrics.RecordOperation(string(c.strategy.Variant()), op, err, duration)
	if err != nil {
		observability.LogOperationFailed(c.observer, id, op, err)
		return err
	}
	observability.LogOperationComplete(c.observer, id, op, duration)
	return nil
}

// Create provisions a new entity. Steps run in order; when one fails, the
// already ensured objects stay in place and no metadata is written, so
// running Create again resumes where it stopped.
func (c *Controller) Create(ctx context.Context, spec *Spec) (*Outcome, error) {
	out := &Outcome{}
	err := c.track(spec.Name, OpCreate, func() error {
		return c.create(ctx, spec, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Controller) create(ctx context.Context, spec *Spec, out *Outcome) error {
	if err := naming.ValidateName(spec.Name); err != nil {
		return err
	}
	now := c.now().UTC().Truncate(time.Second)
	spec.Record = &entity.Record{
		Name:        spec.Name,
		Variant:     c.strategy.Variant(),
		Status:      entity.StatusActive,
		CreatedAt:   now,
		CreatedBy:   c.identity,
		ToolVersion: c.toolVersion,
	}
	if err := c.strategy.Prepare(spec); err != nil {
		return err
	}

	existing, err := c.meta.Get(ctx, spec.Name)
	switch {
	case err == nil && existing.IsActive():
		return fmt.Errorf("%w: %s %q", entity.ErrAlreadyExists, c.strategy.Variant(), spec.Name)
	case err != nil && !errors.Is(err, entity.ErrNotFound):
		return err
	}

	id := c.entityID(spec.Name)
	var created []entity.ResourceRef
	for _, step := range c.strategy.Steps(spec) {
		observability.LogResourceEnsuring(c.observer, id, step.Name, step.Name)
		refs, err := step.Run(ctx)
		if err != nil {
			return &entity.StepError{Step: step.Name, Created: created, Err: err}
		}
		for _, ref := range refs {
			observability.LogResourceEnsured(c.observer, id, step.Name, ref.String(), "ensured")
		}
		created = appendRefs(created, refs...)
	}

	creds, err := c.strategy.Derive(ctx, spec)
	if err != nil {
		return &entity.StepError{Step: "derive credential", Created: created, Err: err}
	}

	rec := spec.Record
	rec.ResourceRefs = created
	rec.CredentialKeys = creds.Keys()

	if err := c.creds.Put(ctx, c.prefixed(spec.Name, creds)); err != nil {
		return &entity.StepError{Step: "store credentials", Created: created, Err: err}
	}
	if err := c.meta.Put(ctx, rec); err != nil {
		return &entity.StepError{Step: "store metadata", Created: created, Err: err}
	}
	if err := c.writeFiles(ctx, rec, creds, out); err != nil {
		return &entity.StepError{Step: "write local files", Created: created, Err: err}
	}
	c.regenerate(ctx, spec.Name, out)

	out.Record = rec
	out.Credentials = creds
	return nil
}

// Update archives the entity, then applies m.
func (c *Controller) Update(ctx context.Context, name string, m Mutation) (*Outcome, error) {
	out := &Outcome{}
	err := c.track(name, OpUpdate, func() error {
		return c.update(ctx, name, m, out)
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

func (c *Controller) update(ctx context.Context, name string, m Mutation, out *Outcome) error {
	if err := naming.ValidateName(name); err != nil {
		return err
	}
	updater, ok := c.strategy.(Updater)
	if !ok {
		return fmt.Errorf("%w: %s entities cannot be updated", entity.ErrInvalidName, c.strategy.Variant())
	}
	rec, err := c.activeRecord(ctx, name)
	if err != nil {
		return err
	}

	out.ArchiveID = c.archive(ctx, rec, OpUpdate, out)

	current, err := c.loadCredentials(ctx, rec)
	if err != nil {
		return err
	}
	previousKeys := rec.CredentialKeys
	rec = rec.Clone()
	updated, err := updater.Update(ctx, rec, current, m)
	if err != nil {
		return err
	}

	if err := c.creds.Put(ctx, c.prefixed(name, updated)); err != nil {
		return err
	}
	for k, v := range updated {
		current[k] = v
	}
	rec.CredentialKeys = mergeKeys(rec.CredentialKeys, updated.Keys())

	var dropped []string
	for _, k := range previousKeys {
		if !slices.Contains(rec.CredentialKeys, k) {
			dropped = append(dropped, k)
			delete(current, k)
		}
	}
	if len(dropped) > 0 {
		if err := c.creds.Remove(ctx, c.credentialKeys(name, dropped)); err != nil {
			return err
		}
	}

	if err := c.meta.Put(ctx, rec); err != nil {
		return err
	}
	if err := c.writeFiles(ctx, rec, current, out); err != nil {
		return err
	}
	c.regenerate(ctx, name, out)

	out.Record = rec
	out.Credentials = updated
	return nil
}

// Delete removes the entity. Teardown failures are reported as warnings;
// the metadata record is removed (or marked archived) regardless.
func (c *Controller) Delete(ctx context.Context, name string, opts DeleteOptions) (*Outcome, error) {
	out := &Outcome{}
	err := c.track(name, OpRemove, func() error {
		return c.delete(ctx, name, opts, out)
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

func (c *Controller) delete(ctx context.Context, name string, opts DeleteOptions, out *Outcome) error {
	if err := naming.ValidateName(name); err != nil {
		return err
	}
	rec, err := c.meta.Get(ctx, name)
	if err != nil {
		return err
	}

	if !opts.Force {
		ok, err := c.confirm(ctx, fmt.Sprintf("Delete %s %q and all of its resources?", c.strategy.Variant(), name))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %q was not deleted", entity.ErrDeclined, c.strategy.Variant(), name)
		}
	}

	if opts.Archive {
		out.ArchiveID = c.archive(ctx, rec, OpRemove, out)
	}

	id := c.entityID(name)
	for _, step := range c.strategy.Teardown(rec) {
		refs, err := step.Run(ctx)
		if err != nil {
			observability.LogResourceDeleteFailed(c.observer, id, step.Name, err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", step.Name, err))
			continue
		}
		for _, ref := range refs {
			observability.LogResourceDeleted(c.observer, id, ref.String())
		}
		out.Removed = append(out.Removed, refs...)
	}

	if err := c.creds.Remove(ctx, c.credentialKeys(name, rec.CredentialKeys)); err != nil {
		return err
	}

	if opts.KeepRecord {
		rec = rec.Clone()
		rec.Status = entity.StatusArchived
		if err := c.meta.Put(ctx, rec); err != nil {
			return err
		}
	} else if err := c.meta.Remove(ctx, name); err != nil {
		return err
	}

	if files, ok := c.strategy.(LocalFiles); ok {
		if err := files.RemoveFiles(rec); err != nil {
			out.warn(c.observer, id, "failed to remove local files: %v", err)
		}
	}
	c.regenerate(ctx, name, out)

	out.Record = rec
	return nil
}

func (c *Controller) activeRecord(ctx context.Context, name string) (*entity.Record, error) {
	rec, err := c.meta.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive() {
		return nil, fmt.Errorf("%w: %s %q is archived", entity.ErrNotFound, c.strategy.Variant(), name)
	}
	return rec, nil
}

// archive snapshots rec. Failures end up in the outcome warnings only.
func (c *Controller) archive(ctx context.Context, rec *entity.Record, op string, out *Outcome) string {
	if c.archives == nil {
		out.warn(c.observer, c.entityID(rec.Name), "archiving is not configured; %s %q was not archived", rec.Variant, rec.Name)
		return ""
	}
	snapshot := rec.Clone()
	id, err := c.archives.Archive(ctx, archive.Snapshot{
		Variant:   c.strategy.Variant(),
		Name:      rec.Name,
		Operation: op,
		Record: func(context.Context) (*entity.Record, error) {
			return snapshot, nil
		},
		Credentials: func(ctx context.Context) (map[string][]byte, error) {
			return c.creds.Get(ctx, c.credentialKeys(rec.Name, rec.CredentialKeys))
		},
		Manifests: func(ctx context.Context) ([]client.Object, error) {
			return c.strategy.Manifests(ctx, snapshot)
		},
	})
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("archive skipped: %v", err))
		return ""
	}
	return id
}

func (c *Controller) writeFiles(ctx context.Context, rec *entity.Record, creds Credentials, out *Outcome) error {
	files, ok := c.strategy.(LocalFiles)
	if !ok {
		return nil
	}
	warnings, err := files.WriteFiles(ctx, rec, creds)
	for _, w := range warnings {
		out.warn(c.observer, c.entityID(rec.Name), "%s", w)
	}
	return err
}

// regenerate rebuilds every downstream. Failures never undo the operation.
func (c *Controller) regenerate(ctx context.Context, name string, out *Outcome) {
	for _, d := range c.downstreams {
		warnings, err := d.Regenerate(ctx)
		for _, w := range warnings {
			out.warn(c.observer, c.entityID(name), "%s", w)
		}
		if err != nil {
			if !errors.Is(err, entity.ErrDownstreamReloadFailed) {
				err = fmt.Errorf("%w: %s: %w", entity.ErrDownstreamReloadFailed, d.Name(), err)
			}
			out.warn(c.observer, c.entityID(name), "%v", err)
		}
	}
}

func appendRefs(refs []entity.ResourceRef, add ...entity.ResourceRef) []entity.ResourceRef {
	for _, r := range add {
		if !slices.Contains(refs, r) {
			refs = append(refs, r)
		}
	}
	return refs
}

func mergeKeys(a, b []string) []string {
	out := slices.Clone(a)
	for _, k := range b {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
