package labels

// Standard label keys.
const (
	// KeyManagedBy identifies the management system
	KeyManagedBy = "app.kubernetes.io/managed-by"

	// KeyVariant identifies the entity variant (tenant, admin, dns, registry)
	KeyVariant = "k8tenant.io/variant"

	// KeyEntity identifies the owning entity by name
	KeyEntity = "k8tenant.io/entity"

	// KeyComponent identifies internal objects such as the metadata stores
	KeyComponent = "k8tenant.io/component"
)

// ManagedBy value for every object created by the CLI.
const ManagedByK8tenant = "k8tenant"

// Component values
const (
	ComponentMetadata    = "metadata-store"
	ComponentCredentials = "credential-store"
	ComponentIngress     = "ingress"
)

// AnnotationCreatedBy records the operator that created an object.
const AnnotationCreatedBy = "k8tenant.io/created-by"

// LabelBuilder provides a fluent interface for building object labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the managed-by label pre-set.
func NewLabelBuilder() *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyManagedBy: ManagedByK8tenant,
		},
	}
}

// ForEntity creates a builder for an object owned by the given entity.
func ForEntity(variant, name string) *LabelBuilder {
	return NewLabelBuilder().WithVariant(variant).WithEntity(name)
}

// WithVariant sets the entity variant label.
func (lb *LabelBuilder) WithVariant(variant string) *LabelBuilder {
	lb.labels[KeyVariant] = variant
	return lb
}

// WithEntity sets the owning entity label.
func (lb *LabelBuilder) WithEntity(name string) *LabelBuilder {
	lb.labels[KeyEntity] = name
	return lb
}

// WithComponent sets the component label.
func (lb *LabelBuilder) WithComponent(component string) *LabelBuilder {
	lb.labels[KeyComponent] = component
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// Apply merges the built labels into existing, allocating when nil.
// Labels not owned by k8tenant are preserved.
func (lb *LabelBuilder) Apply(existing map[string]string) map[string]string {
	if existing == nil {
		existing = make(map[string]string, len(lb.labels))
	}
	for k, v := range lb.labels {
		existing[k] = v
	}
	return existing
}

// SelectorForEntity returns a label selector string for all objects of an entity.
func SelectorForEntity(variant, name string) string {
	return KeyVariant + "=" + variant + "," + KeyEntity + "=" + name
}
