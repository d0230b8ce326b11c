package helmv1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// HelmChartConfigSpec overrides the values of a HelmChart managed by k3s.
type HelmChartConfigSpec struct {
	// ValuesContent is a YAML document merged over the chart's default values.
	// +optional
	ValuesContent string `json:"valuesContent,omitempty"`

	// FailurePolicy is either "reinstall" or "abort".
	// +optional
	FailurePolicy string `json:"failurePolicy,omitempty"`
}

// HelmChartConfig is the Schema for the helmchartconfigs API.
type HelmChartConfig struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec HelmChartConfigSpec `json:"spec,omitempty"`
}

// HelmChartConfigList contains a list of HelmChartConfig.
type HelmChartConfigList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []HelmChartConfig `json:"items"`
}

// DeepCopyInto copies the receiver into out.
func (in *HelmChartConfig) DeepCopyInto(out *HelmChartConfig) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
}

// DeepCopy creates a new HelmChartConfig.
func (in *HelmChartConfig) DeepCopy() *HelmChartConfig {
	if in == nil {
		return nil
	}
	out := new(HelmChartConfig)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *HelmChartConfig) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver into out.
func (in *HelmChartConfigList) DeepCopyInto(out *HelmChartConfigList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]HelmChartConfig, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy creates a new HelmChartConfigList.
func (in *HelmChartConfigList) DeepCopy() *HelmChartConfigList {
	if in == nil {
		return nil
	}
	out := new(HelmChartConfigList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *HelmChartConfigList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
