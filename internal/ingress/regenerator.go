package ingress

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/k8tenant/api/helmv1"
	"github.com/imamik/k8tenant/internal/config"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/observability"
	"github.com/imamik/k8tenant/internal/util/labels"
)

// RecordLister lists the resolver records. store.MetadataStore satisfies it.
type RecordLister interface {
	List(ctx context.Context) ([]*entity.Record, error)
}

// Regenerator publishes the Traefik HelmChartConfig and reloads Traefik.
// It implements lifecycle.Downstream.
type Regenerator struct {
	k         *kube.Client
	resolvers RecordLister
	traefik   config.TraefikConfig
	acme      config.ACMEConfig
	poll      kube.Poll
	observer  observability.Observer
	now       func() time.Time
}

// Option configures a Regenerator.
type Option func(*Regenerator)

// WithObserver sets the observer for publish and reload events.
func WithObserver(o observability.Observer) Option {
	return func(r *Regenerator) { r.observer = o }
}

// WithClock overrides the restart timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Regenerator) { r.now = now }
}

// NewRegenerator creates a Regenerator reading resolvers from lister.
func NewRegenerator(k *kube.Client, lister RecordLister, traefik config.TraefikConfig, acme config.ACMEConfig, p kube.Poll, opts ...Option) *Regenerator {
	r := &Regenerator{
		k:         k,
		resolvers: lister,
		traefik:   traefik,
		acme:      acme,
		poll:      p,
		observer:  observability.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements lifecycle.Downstream.
func (r *Regenerator) Name() string {
	return "traefik"
}

// Regenerate implements lifecycle.Downstream. A published configuration
// is never reverted when the reload fails.
func (r *Regenerator) Regenerate(ctx context.Context) ([]string, error) {
	records, err := r.resolvers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolvers: %w", err)
	}

	resolvers := ResolversFrom(records)
	values, warnings := BuildValues(resolvers, r.traefik, r.acme)
	content, err := values.ToYAML()
	if err != nil {
		return warnings, err
	}

	if err := r.publish(ctx, string(content)); err != nil {
		return warnings, err
	}
	r.observer.Event(observability.Event{
		Type:     observability.EventDownstreamPublished,
		Resource: fmt.Sprintf("HelmChartConfig/%s/%s", r.traefik.Namespace, r.traefik.HelmChartConfig),
		Message:  fmt.Sprintf("published Traefik configuration with %d resolver(s)", len(resolvers)),
	})

	if r.traefik.SkipRestart {
		return warnings, nil
	}
	if err := r.reload(ctx); err != nil {
		r.observer.Event(observability.Event{
			Type:     observability.EventDownstreamReloadFailed,
			Resource: fmt.Sprintf("Deployment/%s/%s", r.traefik.Namespace, r.traefik.Deployment),
			Message:  err.Error(),
		})
		return warnings, fmt.Errorf("%w: %w", entity.ErrDownstreamReloadFailed, err)
	}
	return warnings, nil
}

// publish creates or replaces the HelmChartConfig. valuesContent is
// replaced whole; any hand edits are overwritten.
func (r *Regenerator) publish(ctx context.Context, content string) error {
	hcc := &helmv1.HelmChartConfig{ObjectMeta: metav1.ObjectMeta{
		Namespace: r.traefik.Namespace,
		Name:      r.traefik.HelmChartConfig,
	}}
	_, err := r.k.Ensure(ctx, hcc, func() error {
		hcc.Labels = labels.NewLabelBuilder().WithComponent(labels.ComponentIngress).Apply(hcc.Labels)
		hcc.Spec.ValuesContent = content
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish HelmChartConfig %s/%s: %w", r.traefik.Namespace, r.traefik.HelmChartConfig, err)
	}
	return nil
}

func (r *Regenerator) reload(ctx context.Context) error {
	if err := r.k.RolloutRestart(ctx, r.traefik.Namespace, r.traefik.Deployment, r.now()); err != nil {
		return err
	}
	return r.k.WaitForDeploymentReady(ctx, r.traefik.Namespace, r.traefik.Deployment, r.poll)
}

// Current returns the published values, or nil when nothing is published.
func (r *Regenerator) Current(ctx context.Context) (Values, error) {
	hcc := &helmv1.HelmChartConfig{ObjectMeta: metav1.ObjectMeta{
		Namespace: r.traefik.Namespace,
		Name:      r.traefik.HelmChartConfig,
	}}
	found, err := r.k.Exists(ctx, hcc)
	if err != nil || !found {
		return nil, err
	}
	return FromYAML([]byte(hcc.Spec.ValuesContent))
}
