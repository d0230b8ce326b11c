package kube

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/internal/entity"
)

// RestartedAtAnnotation is the pod template annotation kubectl uses for rollout restarts.
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// Poll bounds a polling loop with a fixed interval and attempt count.
type Poll struct {
	Interval time.Duration
	Attempts int
}

func (p Poll) backoff() wait.Backoff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return wait.Backoff{Duration: p.Interval, Factor: 1, Steps: attempts}
}

// poll runs cond until it reports done, returns an error, or attempts run
// out. Exhaustion is reported as entity.ErrTimeout.
func poll(ctx context.Context, p Poll, what string, cond wait.ConditionWithContextFunc) error {
	err := wait.ExponentialBackoffWithContext(ctx, p.backoff(), cond)
	if wait.Interrupted(err) {
		return fmt.Errorf("%w: %s after %d attempts", entity.ErrTimeout, what, p.Attempts)
	}
	return err
}

// WaitForSecretKey polls a Secret until key holds a non-empty value.
func (c *Client) WaitForSecretKey(ctx context.Context, namespace, name, key string, p Poll) ([]byte, error) {
	var value []byte
	err := poll(ctx, p, fmt.Sprintf("waiting for %s in secret %s/%s", key, namespace, name), func(ctx context.Context) (bool, error) {
		secret := &corev1.Secret{}
		err := c.ctrl.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, secret)
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, Classify(err)
		}
		value = secret.Data[key]
		return len(value) > 0, nil
	})
	return value, err
}

// RolloutRestart bumps the restartedAt annotation on a Deployment's pod template.
func (c *Client) RolloutRestart(ctx context.Context, namespace, name string, at time.Time) error {
	deploy := &appsv1.Deployment{}
	if err := c.ctrl.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, deploy); err != nil {
		return fmt.Errorf("failed to get deployment %s/%s: %w", namespace, name, Classify(err))
	}

	patch := client.MergeFrom(deploy.DeepCopy())
	if deploy.Spec.Template.Annotations == nil {
		deploy.Spec.Template.Annotations = map[string]string{}
	}
	deploy.Spec.Template.Annotations[RestartedAtAnnotation] = at.UTC().Format(time.RFC3339)

	if err := c.ctrl.Patch(ctx, deploy, patch); err != nil {
		return fmt.Errorf("failed to restart deployment %s/%s: %w", namespace, name, Classify(err))
	}
	return nil
}

// WaitForDeploymentReady polls until every replica of the Deployment is
// updated and available.
func (c *Client) WaitForDeploymentReady(ctx context.Context, namespace, name string, p Poll) error {
	return poll(ctx, p, fmt.Sprintf("waiting for deployment %s/%s", namespace, name), func(ctx context.Context) (bool, error) {
		deploy := &appsv1.Deployment{}
		if err := c.ctrl.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, deploy); err != nil {
			return false, nil
		}
		return isDeploymentReady(deploy), nil
	})
}

func isDeploymentReady(deployment *appsv1.Deployment) bool {
	want := int32(1)
	if deployment.Spec.Replicas != nil {
		want = *deployment.Spec.Replicas
	}
	if deployment.Status.ObservedGeneration < deployment.Generation {
		return false
	}
	if deployment.Status.UpdatedReplicas != want ||
		deployment.Status.Replicas != want ||
		deployment.Status.AvailableReplicas != want {
		return false
	}
	for _, condition := range deployment.Status.Conditions {
		if condition.Type == appsv1.DeploymentAvailable &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// newClientsetFromKubeconfig is replaced in tests.
var newClientsetFromKubeconfig = func(kubeconfig []byte) (kubernetes.Interface, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}
	restConfig.Timeout = 10 * time.Second
	return kubernetes.NewForConfig(restConfig)
}

// ValidateKubeconfig polls until the credentials in kubeconfig can list
// pods in namespace (all namespaces when empty).
func ValidateKubeconfig(ctx context.Context, kubeconfig []byte, namespace string, p Poll) error {
	clientset, err := newClientsetFromKubeconfig(kubeconfig)
	if err != nil {
		return err
	}
	var lastErr error
	err = poll(ctx, p, "validating kubeconfig", func(ctx context.Context) (bool, error) {
		_, lastErr = clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{Limit: 1})
		return lastErr == nil, nil
	})
	if err != nil && lastErr != nil {
		return fmt.Errorf("%w (last error: %v)", err, Classify(lastErr))
	}
	return err
}
