package store

import (
	"context"
	"maps"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/util/labels"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// CredentialStore is the per-variant credential store. Keys passed to its
// methods are full document keys, built with naming.CredentialKey.
type CredentialStore struct {
	docs DocumentStore
	opts Options
}

// NewCredentialStore returns the credential store for variant, backed by
// the Secret k8tenant-{variant}-credentials in namespace.
func NewCredentialStore(k *kube.Client, namespace string, variant entity.Variant, opts Options) *CredentialStore {
	opts = opts.withDefaults()
	objLabels := labels.NewLabelBuilder().
		WithVariant(string(variant)).
		WithComponent(labels.ComponentCredentials).
		Build()
	docs := NewSecretDocument(k, namespace, naming.CredentialSecret(string(variant)), objLabels, opts.Concurrency)
	return NewCredentialStoreFor(docs, opts)
}

// NewCredentialStoreFor wraps an arbitrary DocumentStore.
func NewCredentialStoreFor(docs DocumentStore, opts Options) *CredentialStore {
	return &CredentialStore{docs: docs, opts: opts.withDefaults()}
}

// Name returns the backing document name.
func (s *CredentialStore) Name() string {
	return s.docs.Name()
}

// Get returns the values present for keys. Missing keys are omitted.
func (s *CredentialStore) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	doc, err := s.docs.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := doc.Data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Put merges values into the document.
func (s *CredentialStore) Put(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	return mutate(ctx, s.docs, s.opts, func(data map[string][]byte) error {
		maps.Copy(data, values)
		return nil
	})
}

// Remove deletes keys. Missing keys are ignored.
func (s *CredentialStore) Remove(ctx context.Context, keys []string) error {
	return mutate(ctx, s.docs, s.opts, func(data map[string][]byte) error {
		changed := false
		for _, k := range keys {
			if _, ok := data[k]; ok {
				delete(data, k)
				changed = true
			}
		}
		if !changed {
			return errUnchanged
		}
		return nil
	})
}

// Exists reports whether every key is present.
func (s *CredentialStore) Exists(ctx context.Context, keys []string) (bool, error) {
	missing, err := s.Missing(ctx, keys)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Missing returns the keys that are absent, in input order.
func (s *CredentialStore) Missing(ctx context.Context, keys []string) ([]string, error) {
	doc, err := s.docs.Load(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range keys {
		if _, ok := doc.Data[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
