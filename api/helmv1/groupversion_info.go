// Package helmv1 contains the subset of the k3s helm-controller API
// (helm.cattle.io/v1) that k8tenant writes: HelmChartConfig, used to
// override values of charts bundled with k3s such as Traefik.
// +groupName=helm.cattle.io
package helmv1

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

var (
	// GroupVersion is group version used to register these objects
	GroupVersion = schema.GroupVersion{Group: "helm.cattle.io", Version: "v1"}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme
	AddToScheme = SchemeBuilder.AddToScheme

	// Scheme contains the core Kubernetes types plus HelmChartConfig.
	Scheme = runtime.NewScheme()
)

func init() {
	SchemeBuilder.Register(&HelmChartConfig{}, &HelmChartConfigList{})

	_ = clientgoscheme.AddToScheme(Scheme)
	_ = AddToScheme(Scheme)
}
