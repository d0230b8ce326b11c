package labels

import "testing"

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()
	labels := NewLabelBuilder().Build()

	if labels[KeyManagedBy] != ManagedByK8tenant {
		t.Errorf("expected %s=%q, got %q", KeyManagedBy, ManagedByK8tenant, labels[KeyManagedBy])
	}
	if len(labels) != 1 {
		t.Errorf("expected 1 label, got %d", len(labels))
	}
}

func TestForEntity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		variant string
		name    string
	}{
		{"tenant", "acme"},
		{"dns", "letsencrypt-cloudflare"},
		{"registry", "main"},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			t.Parallel()
			labels := ForEntity(tt.variant, tt.name).Build()

			if labels[KeyVariant] != tt.variant {
				t.Errorf("expected %s=%q, got %q", KeyVariant, tt.variant, labels[KeyVariant])
			}
			if labels[KeyEntity] != tt.name {
				t.Errorf("expected %s=%q, got %q", KeyEntity, tt.name, labels[KeyEntity])
			}
			if labels[KeyManagedBy] != ManagedByK8tenant {
				t.Errorf("managed-by label missing")
			}
		})
	}
}

func TestBuild_ReturnsCopy(t *testing.T) {
	t.Parallel()
	lb := ForEntity("tenant", "acme")
	first := lb.Build()
	first[KeyEntity] = "mutated"

	if got := lb.Build()[KeyEntity]; got != "acme" {
		t.Errorf("Build must return a copy, got %q", got)
	}
}

func TestApply_PreservesForeignLabels(t *testing.T) {
	t.Parallel()
	existing := map[string]string{"team": "payments", KeyEntity: "old"}
	out := ForEntity("tenant", "acme").Apply(existing)

	if out["team"] != "payments" {
		t.Errorf("foreign label dropped")
	}
	if out[KeyEntity] != "acme" {
		t.Errorf("expected entity label to be overwritten, got %q", out[KeyEntity])
	}

	if got := ForEntity("dns", "x").Apply(nil); len(got) != 3 {
		t.Errorf("expected 3 labels on nil map, got %d", len(got))
	}
}

func TestMergeAndComponent(t *testing.T) {
	t.Parallel()
	labels := NewLabelBuilder().
		WithComponent(ComponentMetadata).
		Merge(map[string]string{"extra": "1"}).
		Build()

	if labels[KeyComponent] != ComponentMetadata {
		t.Errorf("component label missing")
	}
	if labels["extra"] != "1" {
		t.Errorf("merged label missing")
	}
}

func TestSelectorForEntity(t *testing.T) {
	t.Parallel()
	want := "k8tenant.io/variant=tenant,k8tenant.io/entity=acme"
	if got := SelectorForEntity("tenant", "acme"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
