package store

import (
	"context"
	"errors"
	"fmt"
	"maps"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/metrics"
	"github.com/imamik/k8tenant/internal/util/labels"
	"github.com/imamik/k8tenant/internal/util/retry"
)

// Concurrency selects how documents are written back.
type Concurrency string

const (
	LastWriteWins  Concurrency = "last-write-wins"
	CompareAndSwap Concurrency = "compare-and-swap"
)

// Document is one whole-document snapshot.
type Document struct {
	Data map[string][]byte
	// Version is the resourceVersion the snapshot was read at; empty when
	// the backing object does not exist yet.
	Version string
}

// DocumentStore reads and replaces whole documents.
type DocumentStore interface {
	// Name identifies the document for logs and metrics.
	Name() string
	// Load returns the current document. A missing document is empty, not an error.
	Load(ctx context.Context) (*Document, error)
	// Save replaces the document. Under CompareAndSwap a stale Version
	// yields entity.ErrConflict.
	Save(ctx context.Context, doc *Document) error
}

// Options configures document writes.
type Options struct {
	Concurrency        Concurrency
	MaxConflictRetries int
	Metrics            *metrics.Recorder
	// RetryOptions tune the conflict backoff; tests shorten it.
	RetryOptions []retry.Option
}

func (o Options) withDefaults() Options {
	if o.Concurrency == "" {
		o.Concurrency = LastWriteWins
	}
	if o.MaxConflictRetries < 1 {
		o.MaxConflictRetries = 5
	}
	return o
}

// kind abstracts the two backing object types.
type kind interface {
	newObject() client.Object
	read(obj client.Object) map[string][]byte
	write(obj client.Object, data map[string][]byte)
}

type objectDocument struct {
	kube      *kube.Client
	namespace string
	name      string
	labels    map[string]string
	mode      Concurrency
	kind      kind
}

func (d *objectDocument) Name() string {
	return d.name
}

func (d *objectDocument) key() client.ObjectKey {
	return client.ObjectKey{Namespace: d.namespace, Name: d.name}
}

func (d *objectDocument) Load(ctx context.Context) (*Document, error) {
	obj := d.kind.newObject()
	if err := d.kube.Ctrl().Get(ctx, d.key(), obj); err != nil {
		if apierrors.IsNotFound(err) {
			return &Document{Data: map[string][]byte{}}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", d.name, storeError(err))
	}
	return &Document{Data: d.kind.read(obj), Version: obj.GetResourceVersion()}, nil
}

func (d *objectDocument) Save(ctx context.Context, doc *Document) error {
	obj := d.kind.newObject()
	obj.SetNamespace(d.namespace)
	obj.SetName(d.name)
	obj.SetLabels(d.labels)
	d.kind.write(obj, doc.Data)

	if doc.Version == "" {
		err := d.create(ctx, obj)
		if apierrors.IsAlreadyExists(err) {
			if d.mode == CompareAndSwap {
				return fmt.Errorf("%w: %s was created concurrently", entity.ErrConflict, d.name)
			}
			obj.SetResourceVersion("")
			err = d.kube.Ctrl().Update(ctx, obj)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", d.name, storeError(err))
		}
		return nil
	}

	if d.mode == CompareAndSwap {
		obj.SetResourceVersion(doc.Version)
	}
	if err := d.kube.Ctrl().Update(ctx, obj); err != nil {
		if apierrors.IsNotFound(err) && d.mode == LastWriteWins {
			obj.SetResourceVersion("")
			err = d.create(ctx, obj)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", d.name, storeError(err))
		}
	}
	return nil
}

// create makes the document, creating the store namespace on first use.
func (d *objectDocument) create(ctx context.Context, obj client.Object) error {
	err := d.kube.Ctrl().Create(ctx, obj)
	if !apierrors.IsNotFound(err) {
		return err
	}
	if err := d.kube.EnsureNamespace(ctx, d.namespace, labels.NewLabelBuilder().Build()); err != nil {
		return err
	}
	obj.SetResourceVersion("")
	return d.kube.Ctrl().Create(ctx, obj)
}

// storeError classifies an API error; a missing namespace or an
// unclassified failure means the store itself is unusable.
func storeError(err error) error {
	classified := kube.Classify(err)
	if errors.Is(classified, entity.ErrInsufficientPrivilege) ||
		errors.Is(classified, entity.ErrConflict) ||
		errors.Is(classified, entity.ErrStoreUnavailable) {
		return classified
	}
	return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
}

type configMapKind struct{}

func (configMapKind) newObject() client.Object { return &corev1.ConfigMap{} }

func (configMapKind) read(obj client.Object) map[string][]byte {
	cm := obj.(*corev1.ConfigMap)
	out := make(map[string][]byte, len(cm.Data))
	for k, v := range cm.Data {
		out[k] = []byte(v)
	}
	return out
}

func (configMapKind) write(obj client.Object, data map[string][]byte) {
	cm := obj.(*corev1.ConfigMap)
	cm.Data = make(map[string]string, len(data))
	for k, v := range data {
		cm.Data[k] = string(v)
	}
}

type secretKind struct{}

func (secretKind) newObject() client.Object { return &corev1.Secret{} }

func (secretKind) read(obj client.Object) map[string][]byte {
	out := maps.Clone(obj.(*corev1.Secret).Data)
	if out == nil {
		out = map[string][]byte{}
	}
	return out
}

func (secretKind) write(obj client.Object, data map[string][]byte) {
	s := obj.(*corev1.Secret)
	s.Type = corev1.SecretTypeOpaque
	s.Data = maps.Clone(data)
}

// NewConfigMapDocument returns a DocumentStore backed by a ConfigMap.
func NewConfigMapDocument(k *kube.Client, namespace, name string, objLabels map[string]string, mode Concurrency) DocumentStore {
	return &objectDocument{kube: k, namespace: namespace, name: name, labels: objLabels, mode: mode, kind: configMapKind{}}
}

// NewSecretDocument returns a DocumentStore backed by an Opaque Secret.
func NewSecretDocument(k *kube.Client, namespace, name string, objLabels map[string]string, mode Concurrency) DocumentStore {
	return &objectDocument{kube: k, namespace: namespace, name: name, labels: objLabels, mode: mode, kind: secretKind{}}
}

// errUnchanged lets a mutation skip the write.
var errUnchanged = errors.New("document unchanged")

// mutate performs one read-modify-write. fn returning an error aborts
// without writing; errUnchanged aborts without error. Conflicts are
// retried only under CompareAndSwap.
func mutate(ctx context.Context, docs DocumentStore, opts Options, fn func(data map[string][]byte) error) error {
	attempts := 1
	if opts.Concurrency == CompareAndSwap {
		attempts = opts.MaxConflictRetries
	}
	retryOpts := append([]retry.Option{retry.WithMaxAttempts(attempts)}, opts.RetryOptions...)

	isConflict := func(err error) bool {
		if errors.Is(err, entity.ErrConflict) {
			opts.Metrics.RecordConflict(docs.Name())
			return true
		}
		return false
	}

	err := retry.OnError(ctx, isConflict, func(ctx context.Context) error {
		doc, err := docs.Load(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		if err := fn(doc.Data); err != nil {
			return retry.Permanent(err)
		}
		return docs.Save(ctx, doc)
	}, retryOpts...)

	if errors.Is(err, errUnchanged) {
		return nil
	}
	if errors.Is(err, entity.ErrConflict) {
		return fmt.Errorf("%s: gave up after %d attempts: %w", docs.Name(), attempts, err)
	}
	return err
}
