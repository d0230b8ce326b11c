package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/imamik/k8tenant/api/helmv1"
	"github.com/imamik/k8tenant/internal/entity"
)

// Ensure creates obj or updates it in place. mutate sets the desired state
// and runs against the live object on update, so it must be idempotent.
func (c *Client) Ensure(ctx context.Context, obj client.Object, mutate controllerutil.MutateFn) (controllerutil.OperationResult, error) {
	result, err := controllerutil.CreateOrUpdate(ctx, c.ctrl, obj, mutate)
	if err != nil {
		return result, fmt.Errorf("failed to ensure %s: %w", c.RefOf(obj), Classify(err))
	}
	return result, nil
}

// EnsureNamespace creates the namespace name with objLabels unless it
// already exists. An existing namespace is left untouched.
func (c *Client) EnsureNamespace(ctx context.Context, name string, objLabels map[string]string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: objLabels}}
	if err := c.ctrl.Create(ctx, ns); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create namespace %s: %w", name, Classify(err))
	}
	return nil
}

// DeleteIfExists deletes obj and reports whether it was present.
func (c *Client) DeleteIfExists(ctx context.Context, obj client.Object) (bool, error) {
	err := c.ctrl.Delete(ctx, obj, client.PropagationPolicy(metav1.DeletePropagationBackground))
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", c.RefOf(obj), Classify(err))
	}
	return true, nil
}

// Exists fetches obj by its key into obj and reports whether it exists.
func (c *Client) Exists(ctx context.Context, obj client.Object) (bool, error) {
	err := c.ctrl.Get(ctx, client.ObjectKeyFromObject(obj), obj)
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", c.RefOf(obj), Classify(err))
	}
	return true, nil
}

// RefOf returns the resource reference recorded in entity metadata.
func (c *Client) RefOf(obj client.Object) entity.ResourceRef {
	kind := obj.GetObjectKind().GroupVersionKind().Kind
	if kind == "" {
		if gvk, err := apiutil.GVKForObject(obj, c.ctrl.Scheme()); err == nil {
			kind = gvk.Kind
		}
	}
	return entity.ResourceRef{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName()}
}

// ObjectFor returns an empty typed object addressed by ref.
func ObjectFor(ref entity.ResourceRef) (client.Object, error) {
	var obj client.Object
	switch ref.Kind {
	case "Namespace":
		obj = &corev1.Namespace{}
	case "ServiceAccount":
		obj = &corev1.ServiceAccount{}
	case "Secret":
		obj = &corev1.Secret{}
	case "ConfigMap":
		obj = &corev1.ConfigMap{}
	case "Role":
		obj = &rbacv1.Role{}
	case "RoleBinding":
		obj = &rbacv1.RoleBinding{}
	case "ClusterRole":
		obj = &rbacv1.ClusterRole{}
	case "ClusterRoleBinding":
		obj = &rbacv1.ClusterRoleBinding{}
	case "Ingress":
		obj = &networkingv1.Ingress{}
	case "HelmChartConfig":
		obj = &helmv1.HelmChartConfig{}
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", ref.Kind)
	}
	obj.SetNamespace(ref.Namespace)
	obj.SetName(ref.Name)
	return obj, nil
}

// Fetch returns the live object for ref, or nil when it does not exist.
func (c *Client) Fetch(ctx context.Context, ref entity.ResourceRef) (client.Object, error) {
	obj, err := ObjectFor(ref)
	if err != nil {
		return nil, err
	}
	ok, err := c.Exists(ctx, obj)
	if err != nil || !ok {
		return nil, err
	}
	gvk, err := apiutil.GVKForObject(obj, c.ctrl.Scheme())
	if err == nil {
		obj.GetObjectKind().SetGroupVersionKind(gvk)
	}
	obj.SetManagedFields(nil)
	return obj, nil
}

// ExistsRef reports whether the object addressed by ref exists.
func (c *Client) ExistsRef(ctx context.Context, ref entity.ResourceRef) (bool, error) {
	obj, err := ObjectFor(ref)
	if err != nil {
		return false, err
	}
	return c.Exists(ctx, obj)
}

// DeleteRef deletes the object addressed by ref if present.
func (c *Client) DeleteRef(ctx context.Context, ref entity.ResourceRef) (bool, error) {
	obj, err := ObjectFor(ref)
	if err != nil {
		return false, err
	}
	return c.DeleteIfExists(ctx, obj)
}
