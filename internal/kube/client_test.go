package kube

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/imamik/k8tenant/api/helmv1"
	"github.com/imamik/k8tenant/internal/entity"
)

var fastPoll = Poll{Interval: time.Millisecond, Attempts: 3}

func newTestClient(objs ...client.Object) *Client {
	ctrl := fake.NewClientBuilder().WithScheme(helmv1.Scheme).WithObjects(objs...).Build()
	return NewFromClients(ctrl, nil, nil)
}

func TestEnsure_CreateThenUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient()

	sa := &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Namespace: "tenant-acme", Name: "tenant-acme"}}
	result, err := c.Ensure(ctx, sa, func() error {
		sa.Labels = map[string]string{"a": "1"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, controllerutil.OperationResultCreated, result)

	sa = &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Namespace: "tenant-acme", Name: "tenant-acme"}}
	result, err = c.Ensure(ctx, sa, func() error {
		sa.Labels = map[string]string{"a": "1"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, controllerutil.OperationResultNone, result)

	result, err = c.Ensure(ctx, sa, func() error {
		sa.Labels["a"] = "2"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, controllerutil.OperationResultUpdated, result)
}

func TestEnsure_ForbiddenIsClassified(t *testing.T) {
	t.Parallel()
	ctrl := fake.NewClientBuilder().WithScheme(helmv1.Scheme).WithInterceptorFuncs(interceptor.Funcs{
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			return apierrors.NewForbidden(schema.GroupResource{Resource: "roles"}, obj.GetName(), errors.New("denied"))
		},
	}).Build()
	c := NewFromClients(ctrl, nil, nil)

	role := &rbacv1.Role{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "r"}}
	_, err := c.Ensure(context.Background(), role, func() error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInsufficientPrivilege)
	assert.True(t, apierrors.IsForbidden(err))
	assert.Contains(t, err.Error(), "Role/ns/r")
}

func TestDeleteIfExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "s"}}
	c := newTestClient(secret.DeepCopy())

	deleted, err := c.DeleteIfExists(ctx, secret.DeepCopy())
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.DeleteIfExists(ctx, secret.DeepCopy())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRefsRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(&rbacv1.ClusterRole{ObjectMeta: metav1.ObjectMeta{Name: "k8tenant:admin:ci"}})

	ref := entity.ResourceRef{Kind: "ClusterRole", Name: "k8tenant:admin:ci"}
	ok, err := c.ExistsRef(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	obj, err := c.Fetch(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "ClusterRole", obj.GetObjectKind().GroupVersionKind().Kind)
	assert.Equal(t, ref, c.RefOf(obj))

	missing, err := c.Fetch(ctx, entity.ResourceRef{Kind: "Secret", Namespace: "ns", Name: "gone"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ObjectFor(entity.ResourceRef{Kind: "Pod"})
	assert.Error(t, err)

	deleted, err := c.DeleteRef(ctx, ref)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestWaitForSecretKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	populated := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "tok"},
		Data:       map[string][]byte{corev1.ServiceAccountTokenKey: []byte("jwt")},
	}
	c := newTestClient(populated)
	value, err := c.WaitForSecretKey(ctx, "ns", "tok", corev1.ServiceAccountTokenKey, fastPoll)
	require.NoError(t, err)
	assert.Equal(t, []byte("jwt"), value)

	empty := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "empty"}}
	c = newTestClient(empty)
	_, err = c.WaitForSecretKey(ctx, "ns", "empty", corev1.ServiceAccountTokenKey, fastPoll)
	assert.ErrorIs(t, err, entity.ErrTimeout)
}

func TestRolloutRestartAndWait(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	replicas := int32(1)
	deploy := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: "kube-system", Name: "traefik"},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: 10,
			Replicas:           1, UpdatedReplicas: 1, AvailableReplicas: 1,
			Conditions: []appsv1.DeploymentCondition{{Type: appsv1.DeploymentAvailable, Status: corev1.ConditionTrue}},
		},
	}
	c := newTestClient(deploy)

	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.RolloutRestart(ctx, "kube-system", "traefik", at))

	got := &appsv1.Deployment{}
	require.NoError(t, c.Ctrl().Get(ctx, client.ObjectKeyFromObject(deploy), got))
	assert.Equal(t, "2026-10-18T12:00:00Z", got.Spec.Template.Annotations[RestartedAtAnnotation])

	assert.NoError(t, c.WaitForDeploymentReady(ctx, "kube-system", "traefik", fastPoll))
	assert.ErrorIs(t, c.WaitForDeploymentReady(ctx, "kube-system", "missing", fastPoll), entity.ErrTimeout)
	assert.Error(t, c.RolloutRestart(ctx, "kube-system", "missing", at))
}

func TestIsDeploymentReady(t *testing.T) {
	t.Parallel()
	replicas := int32(2)
	d := &appsv1.Deployment{Spec: appsv1.DeploymentSpec{Replicas: &replicas}}
	d.Status = appsv1.DeploymentStatus{Replicas: 2, UpdatedReplicas: 1, AvailableReplicas: 2}
	assert.False(t, isDeploymentReady(d))

	d.Status.UpdatedReplicas = 2
	assert.False(t, isDeploymentReady(d), "available condition required")

	d.Status.Conditions = []appsv1.DeploymentCondition{{Type: appsv1.DeploymentAvailable, Status: corev1.ConditionTrue}}
	assert.True(t, isDeploymentReady(d))

	d.Generation = 3
	d.Status.ObservedGeneration = 2
	assert.False(t, isDeploymentReady(d))
}

func TestClassify(t *testing.T) {
	t.Parallel()
	gr := schema.GroupResource{Resource: "configmaps"}
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"forbidden", apierrors.NewForbidden(gr, "x", errors.New("no")), entity.ErrInsufficientPrivilege},
		{"unauthorized", apierrors.NewUnauthorized("no"), entity.ErrInsufficientPrivilege},
		{"conflict", apierrors.NewConflict(gr, "x", errors.New("stale")), entity.ErrConflict},
		{"unavailable", apierrors.NewServiceUnavailable("down"), entity.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, entity.ErrStoreUnavailable},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, entity.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, Classify(tt.err), tt.want)
		})
	}

	notFound := apierrors.NewNotFound(gr, "x")
	assert.Equal(t, notFound, Classify(notFound))
	assert.NoError(t, Classify(nil))
}

func TestClusterInfo(t *testing.T) {
	t.Parallel()
	c := NewFromClients(nil, nil, &rest.Config{Host: "https://10.0.0.1:6443", TLSClientConfig: rest.TLSClientConfig{CAData: []byte("ca")}})
	server, ca, err := c.ClusterInfo()
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.0.1:6443", server)
	assert.Equal(t, []byte("ca"), ca)

	_, _, err = NewFromClients(nil, nil, nil).ClusterInfo()
	assert.Error(t, err)
}

func TestWhoAmI_FallsBackToEmpty(t *testing.T) {
	t.Parallel()
	//nolint:staticcheck // SA1019: NewSimpleClientset is sufficient for our testing needs
	c := NewFromClients(nil, k8sfake.NewSimpleClientset(), nil)
	assert.Equal(t, "", c.WhoAmI(context.Background()))
	assert.Equal(t, "", NewFromClients(nil, nil, nil).WhoAmI(context.Background()))
}

func TestValidateKubeconfig(t *testing.T) {
	orig := newClientsetFromKubeconfig
	t.Cleanup(func() { newClientsetFromKubeconfig = orig })

	//nolint:staticcheck // SA1019: NewSimpleClientset is sufficient for our testing needs
	fakeClientset := k8sfake.NewSimpleClientset()
	newClientsetFromKubeconfig = func([]byte) (kubernetes.Interface, error) { return fakeClientset, nil }

	assert.NoError(t, ValidateKubeconfig(context.Background(), []byte("ignored"), "tenant-acme", fastPoll))

	newClientsetFromKubeconfig = orig
	assert.Error(t, ValidateKubeconfig(context.Background(), []byte("not yaml: ["), "", fastPoll))
}
