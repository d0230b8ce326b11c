package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/metrics"
	"github.com/imamik/k8tenant/internal/observability"
)

// TimestampFormat is the bundle id timestamp layout.
const TimestampFormat = "20060102-150405"

// Bundle file names.
const (
	BundleFile      = "bundle.json"
	MetadataFile    = "metadata.json"
	CredentialsFile = "credentials.yaml"
	ManifestsFile   = "manifests.yaml"
)

// Snapshot describes what to capture. Each capture function is optional and
// may fail independently.
type Snapshot struct {
	Variant   entity.Variant
	Name      string
	Operation string

	Record      func(ctx context.Context) (*entity.Record, error)
	Credentials func(ctx context.Context) (map[string][]byte, error)
	Manifests   func(ctx context.Context) ([]client.Object, error)
}

// Bundle describes a written archive bundle.
type Bundle struct {
	ID          string         `json:"id"`
	Variant     entity.Variant `json:"variant"`
	Name        string         `json:"name"`
	Operation   string         `json:"operation"`
	CreatedAt   time.Time      `json:"createdAt"`
	ToolVersion string         `json:"toolVersion,omitempty"`
	Captured    []string       `json:"captured"`
	Skipped     []string       `json:"skipped,omitempty"`

	// Path is the bundle directory; not persisted.
	Path string `json:"-"`
}

// Mirror receives a copy of every bundle file.
type Mirror interface {
	Upload(ctx context.Context, bundleID, file string, data []byte) error
}

// Manager writes and lists bundles under one directory.
type Manager struct {
	dir         string
	toolVersion string
	observer    observability.Observer
	metrics     *metrics.Recorder
	mirror      Mirror
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the observer used for skipped steps.
func WithObserver(o observability.Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithMetrics records one archive attempt per call.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithMirror uploads every bundle file after it is written locally.
func WithMirror(mirror Mirror) Option {
	return func(m *Manager) { m.mirror = mirror }
}

// WithToolVersion stamps bundles with the CLI version.
func WithToolVersion(v string) Option {
	return func(m *Manager) { m.toolVersion = v }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager rooted at dir.
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{dir: dir, observer: observability.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the archive root.
func (m *Manager) Dir() string {
	return m.dir
}

// Archive captures snap into a new bundle and returns its id. An error is
// returned only when no bundle directory could be created; callers log it
// and carry on.
func (m *Manager) Archive(ctx context.Context, snap Snapshot) (string, error) {
	bundle, err := m.archive(ctx, snap)
	m.metrics.RecordArchive(string(snap.Variant), err)
	if err != nil {
		m.observer.Event(observability.Event{
			Type:    observability.EventArchiveSkipped,
			Entity:  string(snap.Variant) + "/" + snap.Name,
			Message: fmt.Sprintf("archive not written: %v", err),
		})
		return "", err
	}

	m.observer.Event(observability.Event{
		Type:    observability.EventArchiveCreated,
		Entity:  string(snap.Variant) + "/" + snap.Name,
		Message: "archive " + bundle.ID + " written",
		Fields:  map[string]string{"path": bundle.Path},
	})
	return bundle.ID, nil
}

func (m *Manager) archive(ctx context.Context, snap Snapshot) (*Bundle, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	createdAt := m.now().UTC()
	id, path, err := m.reserve(fmt.Sprintf("%s-%s-%s-%s", snap.Variant, snap.Name, snap.Operation, createdAt.Format(TimestampFormat)))
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		ID:          id,
		Variant:     snap.Variant,
		Name:        snap.Name,
		Operation:   snap.Operation,
		CreatedAt:   createdAt,
		ToolVersion: m.toolVersion,
		Captured:    []string{},
		Path:        path,
	}
	files := map[string][]byte{}

	capture := func(file string, produce func() ([]byte, error)) {
		data, err := produce()
		if err == nil && data != nil {
			err = os.WriteFile(filepath.Join(path, file), data, 0600)
		}
		if err != nil {
			bundle.Skipped = append(bundle.Skipped, fmt.Sprintf("%s: %v", file, err))
			observability.LogWarning(m.observer, string(snap.Variant)+"/"+snap.Name, "archive %s: skipped %s: %v", id, file, err)
			return
		}
		if data != nil {
			bundle.Captured = append(bundle.Captured, file)
			files[file] = data
		}
	}

	var rec *entity.Record
	capture(MetadataFile, func() ([]byte, error) {
		if snap.Record == nil {
			return nil, nil
		}
		r, err := snap.Record(ctx)
		if err != nil {
			return nil, err
		}
		rec = r
		return json.MarshalIndent(r, "", "  ")
	})

	capture(CredentialsFile, func() ([]byte, error) {
		if snap.Credentials == nil {
			return nil, nil
		}
		values, err := snap.Credentials(ctx)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if missing := missingKeys(rec.CredentialKeys, values, snap.Name); len(missing) > 0 {
				observability.LogWarning(m.observer, string(snap.Variant)+"/"+snap.Name,
					"archive %s: credentials already absent: %s", id, strings.Join(missing, ", "))
			}
		}
		plain := make(map[string]string, len(values))
		for k, v := range values {
			plain[k] = string(v)
		}
		return yaml.Marshal(plain)
	})

	capture(ManifestsFile, func() ([]byte, error) {
		if snap.Manifests == nil {
			return nil, nil
		}
		objs, err := snap.Manifests(ctx)
		if err != nil && len(objs) == 0 {
			return nil, err
		}
		if err != nil {
			bundle.Skipped = append(bundle.Skipped, fmt.Sprintf("%s (partial): %v", ManifestsFile, err))
		}
		return encodeManifests(objs)
	})

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, BundleFile), data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write bundle index: %w", err)
	}
	files[BundleFile] = data

	m.upload(ctx, bundle, files)
	return bundle, nil
}

// reserve creates a unique bundle directory, appending -2, -3, ... when the
// base id is already taken.
func (m *Manager) reserve(base string) (string, string, error) {
	for n := 1; n < 1000; n++ {
		id := base
		if n > 1 {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		path := filepath.Join(m.dir, id)
		err := os.Mkdir(path, 0700)
		if err == nil {
			return id, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("failed to create bundle directory: %w", err)
		}
	}
	return "", "", fmt.Errorf("too many bundles named %s", base)
}

func (m *Manager) upload(ctx context.Context, bundle *Bundle, files map[string][]byte) {
	if m.mirror == nil {
		return
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.mirror.Upload(ctx, bundle.ID, name, files[name]); err != nil {
			observability.LogWarning(m.observer, string(bundle.Variant)+"/"+bundle.Name,
				"archive %s: mirror upload of %s failed: %v", bundle.ID, name, err)
		}
	}
}

func encodeManifests(objs []client.Object) ([]byte, error) {
	var b strings.Builder
	for i, obj := range objs {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", obj.GetName(), err)
		}
		if i > 0 {
			b.WriteString("---\n")
		}
		b.Write(data)
	}
	return []byte(b.String()), nil
}

func missingKeys(declared []string, values map[string][]byte, entityName string) []string {
	var missing []string
	for _, k := range declared {
		if _, ok := values[k]; ok {
			continue
		}
		if _, ok := values[entityName+"."+k]; ok {
			continue
		}
		missing = append(missing, k)
	}
	return missing
}

// List returns bundles for variant (all variants when empty), oldest first.
func (m *Manager) List(variant entity.Variant) ([]Bundle, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var out []Bundle
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := m.Load(e.Name())
		if err != nil {
			continue
		}
		if variant != "" && b.Variant != variant {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Load reads the index of one bundle.
func (m *Manager) Load(id string) (*Bundle, error) {
	path := filepath.Join(m.dir, id)
	data, err := os.ReadFile(filepath.Join(path, BundleFile)) // #nosec G304 -- path under the archive root
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle %s: %w", id, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle %s: %w", id, err)
	}
	b.Path = path
	return &b, nil
}

// ReadCredentials returns the archived credential values of a bundle.
func (m *Manager) ReadCredentials(id string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, id, CredentialsFile)) // #nosec G304 -- path under the archive root
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials of %s: %w", id, err)
	}
	out := map[string]string{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse credentials of %s: %w", id, err)
	}
	return out, nil
}
