package entity

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Variant identifies the kind of managed entity.
type Variant string

const (
	VariantTenant   Variant = "tenant"
	VariantAdmin    Variant = "admin"
	VariantDNS      Variant = "dns"
	VariantRegistry Variant = "registry"
)

// Variants lists every supported variant in display order.
var Variants = []Variant{VariantTenant, VariantAdmin, VariantDNS, VariantRegistry}

// ParseVariant converts a user supplied string into a Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Variants, v) {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown entity type %q", ErrInvalidName, s)
}

// Status is the lifecycle state of an entity record.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// ParseStatus parses a status filter. "all" and "" are accepted and return "".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", nil
	case string(StatusActive):
		return StatusActive, nil
	case string(StatusArchived):
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q (want active, archived or all)", ErrInvalidName, s)
	}
}

// Health is the secondary status reported by list for active entities.
type Health string

const (
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthUnknown  Health = "unknown"
)

// ResourceRef identifies a backing object owned by an entity.
type ResourceRef struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

func (r ResourceRef) String() string {
	if r.Namespace == "" {
		return r.Kind + "/" + r.Name
	}
	return r.Kind + "/" + r.Namespace + "/" + r.Name
}

// AccountInfo holds the fields specific to tenant and admin deployer accounts.
type AccountInfo struct {
	Namespace      string `json:"namespace"`
	ServiceAccount string `json:"serviceAccount"`
	ClusterScoped  bool   `json:"clusterScoped,omitempty"`
	KubeconfigPath string `json:"kubeconfigPath,omitempty"`
}

// DNSInfo holds the fields specific to DNS resolver registrations.
type DNSInfo struct {
	Provider string `json:"provider"`
	Suffix   string `json:"suffix,omitempty"`
	Email    string `json:"email"`
}

// RegistryInfo holds the fields specific to registry credential sets.
type RegistryInfo struct {
	Domain             string `json:"domain"`
	Username           string `json:"username"`
	CertResolverRef    string `json:"certResolverRef,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty"`
}

// Record is the metadata record persisted for an entity. Secret values are
// never stored here; CredentialKeys only names them.
type Record struct {
	Name           string        `json:"name"`
	Variant        Variant       `json:"variant"`
	Status         Status        `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	CreatedBy      string        `json:"createdBy"`
	LastModified   time.Time     `json:"lastModified"`
	ToolVersion    string        `json:"toolVersion"`
	ResourceRefs   []ResourceRef `json:"resourceRefs,omitempty"`
	CredentialKeys []string      `json:"credentialKeys,omitempty"`

	Account  *AccountInfo  `json:"account,omitempty"`
	DNS      *DNSInfo      `json:"dns,omitempty"`
	Registry *RegistryInfo `json:"registry,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.ResourceRefs = slices.Clone(r.ResourceRefs)
	out.CredentialKeys = slices.Clone(r.CredentialKeys)
	if r.Account != nil {
		a := *r.Account
		out.Account = &a
	}
	if r.DNS != nil {
		d := *r.DNS
		out.DNS = &d
	}
	if r.Registry != nil {
		g := *r.Registry
		out.Registry = &g
	}
	return &out
}

// IsActive reports whether the record describes a live entity.
func (r *Record) IsActive() bool {
	return r.Status == "" || r.Status == StatusActive
}
