package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/util/labels"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// MetadataKey is the document key holding the JSON record map.
const MetadataKey = "entities.json"

// MetadataStore is the per-variant metadata record store.
type MetadataStore struct {
	docs    DocumentStore
	opts    Options
	variant entity.Variant
	now     func() time.Time
}

// NewMetadataStore returns the metadata store for variant, backed by the
// ConfigMap k8tenant-{variant}-metadata in namespace.
func NewMetadataStore(k *kube.Client, namespace string, variant entity.Variant, opts Options) *MetadataStore {
	opts = opts.withDefaults()
	objLabels := labels.NewLabelBuilder().
		WithVariant(string(variant)).
		WithComponent(labels.ComponentMetadata).
		Build()
	docs := NewConfigMapDocument(k, namespace, naming.MetadataConfigMap(string(variant)), objLabels, opts.Concurrency)
	return NewMetadataStoreFor(docs, variant, opts)
}

// NewMetadataStoreFor wraps an arbitrary DocumentStore.
func NewMetadataStoreFor(docs DocumentStore, variant entity.Variant, opts Options) *MetadataStore {
	return &MetadataStore{docs: docs, opts: opts.withDefaults(), variant: variant, now: time.Now}
}

// Get returns the record for name or an error wrapping entity.ErrNotFound.
func (s *MetadataStore) Get(ctx context.Context, name string) (*entity.Record, error) {
	doc, err := s.docs.Load(ctx)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(doc.Data)
	if err != nil {
		return nil, err
	}
	rec, ok := records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", entity.ErrNotFound, s.variant, name)
	}
	return rec, nil
}

// Put inserts or replaces rec, stamping LastModified. The stamped value is
// written back into rec.
func (s *MetadataStore) Put(ctx context.Context, rec *entity.Record) error {
	if rec.Name == "" {
		return fmt.Errorf("%w: record without a name", entity.ErrInvalidName)
	}
	rec.Variant = s.variant
	if rec.Status == "" {
		rec.Status = entity.StatusActive
	}
	rec.LastModified = s.now().UTC().Truncate(time.Second)

	return mutate(ctx, s.docs, s.opts, func(data map[string][]byte) error {
		records, err := decodeRecords(data)
		if err != nil {
			return err
		}
		records[rec.Name] = rec.Clone()
		return encodeRecords(data, records)
	})
}

// Remove deletes the record for name. Removing a missing record is a no-op.
func (s *MetadataStore) Remove(ctx context.Context, name string) error {
	return mutate(ctx, s.docs, s.opts, func(data map[string][]byte) error {
		records, err := decodeRecords(data)
		if err != nil {
			return err
		}
		if _, ok := records[name]; !ok {
			return errUnchanged
		}
		delete(records, name)
		return encodeRecords(data, records)
	})
}

// List returns all records sorted by name.
func (s *MetadataStore) List(ctx context.Context) ([]*entity.Record, error) {
	doc, err := s.docs.Load(ctx)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(doc.Data)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func decodeRecords(data map[string][]byte) (map[string]*entity.Record, error) {
	records := map[string]*entity.Record{}
	raw := data[MetadataKey]
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: corrupt %s: %v", entity.ErrStoreUnavailable, MetadataKey, err)
	}
	for name, rec := range records {
		if rec.Name == "" {
			rec.Name = name
		}
	}
	return records, nil
}

func encodeRecords(data map[string][]byte, records map[string]*entity.Record) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	data[MetadataKey] = raw
	return nil
}
