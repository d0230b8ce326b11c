package kube

import (
	"context"
	"fmt"
	"os"

	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/k8tenant/api/helmv1"
)

// Client provides the Kubernetes operations used by stores, strategies and
// the regenerator.
type Client struct {
	ctrl       client.Client
	clientset  kubernetes.Interface
	restConfig *rest.Config
}

// New creates a Client from a kubeconfig path. An empty path uses the
// default loading rules (KUBECONFIG, ~/.kube/config, in-cluster).
func New(kubeconfigPath string) (*Client, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return NewForConfig(restConfig)
}

// NewForConfig creates a Client from a REST config.
func NewForConfig(restConfig *rest.Config) (*Client, error) {
	ctrl, err := client.New(restConfig, client.Options{Scheme: helmv1.Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller-runtime client: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}
	return &Client{ctrl: ctrl, clientset: clientset, restConfig: restConfig}, nil
}

// NewFromClients creates a Client from pre-configured clients.
// This is useful for testing with fake clients; clientset and restConfig may be nil.
func NewFromClients(ctrl client.Client, clientset kubernetes.Interface, restConfig *rest.Config) *Client {
	return &Client{ctrl: ctrl, clientset: clientset, restConfig: restConfig}
}

// Ctrl returns the controller-runtime client.
func (c *Client) Ctrl() client.Client {
	return c.ctrl
}

// ClusterInfo returns the API server URL and CA bundle of the CLI's own
// connection, for embedding into generated kubeconfigs.
func (c *Client) ClusterInfo() (server string, caData []byte, err error) {
	if c.restConfig == nil {
		return "", nil, fmt.Errorf("no REST config available")
	}
	caData = c.restConfig.CAData
	if len(caData) == 0 && c.restConfig.CAFile != "" {
		caData, err = os.ReadFile(c.restConfig.CAFile)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read CA file: %w", err)
		}
	}
	return c.restConfig.Host, caData, nil
}

// WhoAmI returns the username the API server sees for this client, or an
// empty string when the review API is unavailable.
func (c *Client) WhoAmI(ctx context.Context) string {
	if c.clientset == nil {
		return ""
	}
	review, err := c.clientset.AuthenticationV1().SelfSubjectReviews().Create(ctx, &authenticationv1.SelfSubjectReview{}, metav1.CreateOptions{})
	if err != nil || review == nil {
		return ""
	}
	return review.Status.UserInfo.Username
}
