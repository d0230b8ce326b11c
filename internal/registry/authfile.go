package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/observability"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// RecordLister lists registry records. store.MetadataStore satisfies it.
type RecordLister interface {
	List(ctx context.Context) ([]*entity.Record, error)
}

// CredentialReader reads namespaced credential values.
// store.CredentialStore satisfies it.
type CredentialReader interface {
	Get(ctx context.Context, keys []string) (map[string][]byte, error)
}

// RegistriesFile is the k3s registries.yaml document.
type RegistriesFile struct {
	Mirrors map[string]Mirror         `yaml:"mirrors,omitempty"`
	Configs map[string]RegistryConfig `yaml:"configs,omitempty"`
}

// Mirror lists the endpoints serving a registry host.
type Mirror struct {
	Endpoint []string `yaml:"endpoint"`
}

// RegistryConfig holds the auth and TLS settings of a registry host.
type RegistryConfig struct {
	Auth *AuthConfig `yaml:"auth,omitempty"`
	TLS  *TLSConfig  `yaml:"tls,omitempty"`
}

// AuthConfig is basic auth for a registry host.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TLSConfig is the TLS section of a registry host.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AuthFile rebuilds registries.yaml from every active registry entity.
// It implements lifecycle.Downstream.
type AuthFile struct {
	path     string
	records  RecordLister
	creds    CredentialReader
	observer observability.Observer
}

// NewAuthFile creates the registries.yaml downstream.
func NewAuthFile(path string, records RecordLister, creds CredentialReader, observer observability.Observer) *AuthFile {
	if observer == nil {
		observer = observability.Discard()
	}
	return &AuthFile{path: path, records: records, creds: creds, observer: observer}
}

// Name implements lifecycle.Downstream.
func (a *AuthFile) Name() string {
	return "registries.yaml"
}

// Path returns the auth file location.
func (a *AuthFile) Path() string {
	return a.path
}

// Build assembles the document. Entities without a stored password are
// left out and reported as warnings.
func (a *AuthFile) Build(ctx context.Context) (*RegistriesFile, []string, error) {
	records, err := a.records.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list registries: %w", err)
	}
	var active []*entity.Record
	var keys []string
	for _, rec := range records {
		if !rec.IsActive() || rec.Registry == nil {
			continue
		}
		active = append(active, rec)
		keys = append(keys, naming.CredentialKey(rec.Name, KeyPassword))
	}
	slices.SortFunc(active, func(x, y *entity.Record) int { return strings.Compare(x.Name, y.Name) })

	values, err := a.creds.Get(ctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read registry passwords: %w", err)
	}

	doc := &RegistriesFile{
		Mirrors: map[string]Mirror{},
		Configs: map[string]RegistryConfig{},
	}
	var warnings []string
	for _, rec := range active {
		info := rec.Registry
		password, ok := values[naming.CredentialKey(rec.Name, KeyPassword)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("registry %s has no stored password; left out of %s", rec.Name, a.path))
			continue
		}
		if _, dup := doc.Configs[info.Domain]; dup {
			warnings = append(warnings, fmt.Sprintf("registry %s reuses domain %s; keeping the first entry", rec.Name, info.Domain))
			continue
		}
		doc.Mirrors[info.Domain] = Mirror{Endpoint: []string{"https://" + info.Domain}}
		cfg := RegistryConfig{Auth: &AuthConfig{Username: info.Username, Password: string(password)}}
		if info.InsecureSkipVerify {
			cfg.TLS = &TLSConfig{InsecureSkipVerify: true}
		}
		doc.Configs[info.Domain] = cfg
	}
	return doc, warnings, nil
}

// Regenerate implements lifecycle.Downstream by rewriting the file whole.
func (a *AuthFile) Regenerate(ctx context.Context) ([]string, error) {
	doc, warnings, err := a.Build(ctx)
	if err != nil {
		return warnings, err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return warnings, fmt.Errorf("failed to encode %s: %w", a.path, err)
	}
	if err := writeAtomic(a.path, data); err != nil {
		return warnings, err
	}
	a.observer.Event(observability.Event{
		Type:     observability.EventDownstreamPublished,
		Resource: a.path,
		Message:  fmt.Sprintf("wrote %d registry entries; k3s applies %s on restart", len(doc.Configs), filepath.Base(a.path)),
	})
	return warnings, nil
}

// Read parses the current auth file. A missing file yields an empty document.
func (a *AuthFile) Read() (*RegistriesFile, error) {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return &RegistriesFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", a.path, err)
	}
	doc := &RegistriesFile{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", a.path, err)
	}
	return doc, nil
}

// writeAtomic replaces path with data through a rename so readers never
// see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
