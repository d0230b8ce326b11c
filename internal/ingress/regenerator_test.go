package ingress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/imamik/k8tenant/api/helmv1"
	"github.com/imamik/k8tenant/internal/config"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/observability"
)

// fakeLister is an in-memory resolver record set.
type fakeLister struct {
	mu      sync.Mutex
	records []*entity.Record
	err     error
}

func (f *fakeLister) List(context.Context) ([]*entity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.err
}

func (f *fakeLister) set(records ...*entity.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func readyTraefik() *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: "kube-system", Name: "traefik", Generation: 1},
		Spec:       appsv1.DeploymentSpec{Replicas: ptr.To(int32(1))},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: 5,
			Replicas:           1,
			UpdatedReplicas:    1,
			AvailableReplicas:  1,
			Conditions: []appsv1.DeploymentCondition{
				{Type: appsv1.DeploymentAvailable, Status: corev1.ConditionTrue},
			},
		},
	}
}

type regenEnv struct {
	ctrl     client.Client
	lister   *fakeLister
	recorder *observability.Recorder
	regen    *Regenerator
}

func newRegenEnv(traefik config.TraefikConfig, objs ...client.Object) *regenEnv {
	ctrl := fake.NewClientBuilder().WithScheme(helmv1.Scheme).WithObjects(objs...).Build()
	cfg := config.Default()
	cfg.ACME.Email = "ops@example.com"
	e := &regenEnv{
		ctrl:     ctrl,
		lister:   &fakeLister{},
		recorder: observability.NewRecorder(),
	}
	e.regen = NewRegenerator(kube.NewFromClients(ctrl, nil, nil), e.lister, traefik, cfg.ACME,
		kube.Poll{Interval: time.Millisecond, Attempts: 2},
		WithObserver(e.recorder),
		WithClock(func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }),
	)
	return e
}

func (e *regenEnv) published(t *testing.T) Values {
	t.Helper()
	values, err := e.regen.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, values, "HelmChartConfig must be published")
	return values
}

func TestRegenerator_PublishesAndRestarts(t *testing.T) {
	t.Parallel()
	e := newRegenEnv(config.Default().Traefik, readyTraefik())
	e.lister.set(resolverRecord("letsencrypt-cloudflare", "cloudflare", entity.StatusActive, "CF_DNS_API_TOKEN"))

	warnings, err := e.regen.Regenerate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "traefik", e.regen.Name())

	values := e.published(t)
	assert.Contains(t, values["certificatesResolvers"], "letsencrypt-cloudflare")

	hcc := &helmv1.HelmChartConfig{}
	require.NoError(t, e.ctrl.Get(context.Background(), client.ObjectKey{Namespace: "kube-system", Name: "traefik"}, hcc))
	assert.Equal(t, "k8tenant", hcc.Labels["app.kubernetes.io/managed-by"])

	deploy := &appsv1.Deployment{}
	require.NoError(t, e.ctrl.Get(context.Background(), client.ObjectKey{Namespace: "kube-system", Name: "traefik"}, deploy))
	assert.Equal(t, "2026-10-18T12:00:00Z", deploy.Spec.Template.Annotations[kube.RestartedAtAnnotation])

	assert.Len(t, e.recorder.OfType(observability.EventDownstreamPublished), 1)
}

func TestRegenerator_ReplacesHandEditedValues(t *testing.T) {
	t.Parallel()
	existing := &helmv1.HelmChartConfig{
		ObjectMeta: metav1.ObjectMeta{Namespace: "kube-system", Name: "traefik"},
		Spec:       helmv1.HelmChartConfigSpec{ValuesContent: "logs:\n  general:\n    level: DEBUG\n"},
	}
	e := newRegenEnv(config.Default().Traefik, readyTraefik(), existing)

	_, err := e.regen.Regenerate(context.Background())
	require.NoError(t, err)

	values := e.published(t)
	assert.NotContains(t, values, "logs")
	assert.NotContains(t, values, "certificatesResolvers", "zero resolvers publish the minimal config")
	assert.Contains(t, values, "ports")
}

func TestRegenerator_ReloadFailureKeepsConfig(t *testing.T) {
	t.Parallel()
	// No Traefik deployment: the restart cannot happen.
	e := newRegenEnv(config.Default().Traefik)
	e.lister.set(resolverRecord("letsencrypt-digitalocean", "digitalocean", entity.StatusActive, "DO_AUTH_TOKEN"))

	_, err := e.regen.Regenerate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrDownstreamReloadFailed)

	values := e.published(t)
	assert.Contains(t, values["certificatesResolvers"], "letsencrypt-digitalocean")
	assert.Len(t, e.recorder.OfType(observability.EventDownstreamReloadFailed), 1)
}

func TestRegenerator_NotReadyTimesOut(t *testing.T) {
	t.Parallel()
	deploy := readyTraefik()
	deploy.Status.AvailableReplicas = 0
	e := newRegenEnv(config.Default().Traefik, deploy)

	_, err := e.regen.Regenerate(context.Background())
	assert.ErrorIs(t, err, entity.ErrDownstreamReloadFailed)
	assert.ErrorIs(t, err, entity.ErrTimeout)
}

func TestRegenerator_SkipRestart(t *testing.T) {
	t.Parallel()
	traefik := config.Default().Traefik
	traefik.SkipRestart = true
	e := newRegenEnv(traefik)

	_, err := e.regen.Regenerate(context.Background())
	require.NoError(t, err, "no deployment is needed when restarts are skipped")
	e.published(t)
}

func TestRegenerator_ListFailure(t *testing.T) {
	t.Parallel()
	e := newRegenEnv(config.Default().Traefik, readyTraefik())
	e.lister.err = errors.New("store down")

	_, err := e.regen.Regenerate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list resolvers")

	values, err := e.regen.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, values, "nothing is published when resolvers cannot be read")
}
