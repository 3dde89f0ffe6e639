/*
Copyright 2024 OpenClaw.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// DownloadJobSpec defines the desired state of DownloadJob. Every field
// except Metadata is inherited verbatim from the parent Download.
type DownloadJobSpec struct {
	// Metadata is a single line of JSON as emitted by `youtube-dl -j`.
	Metadata string `json:"metadata"`

	// Executor overrides the executor container image, inherited from the
	// parent Download.
	// +optional
	Executor string `json:"executor,omitempty"`

	// Extra lists additional arguments passed through to youtube-dl,
	// inherited from the parent Download.
	// +optional
	Extra []string `json:"extra,omitempty"`

	Output OutputSpec `json:"output"`
}

// DownloadJobStatus defines the observed state of DownloadJob.
type DownloadJobStatus struct {
	// Phase is the current lifecycle phase.
	// +kubebuilder:validation:Enum=Pending;Starting;Downloading;Succeeded;Failed
	Phase string `json:"phase,omitempty"`

	// Message is a human-readable status message.
	// +optional
	Message string `json:"message,omitempty"`

	// LastUpdated is the time status was last patched.
	// +optional
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`

	// StartTime records when the worker pod began running.
	// +optional
	StartTime *metav1.Time `json:"startTime,omitempty"`
}

// DownloadJob phase constants, see DownloadJobStatus.Phase.
const (
	DownloadJobPhasePending     = "Pending"
	DownloadJobPhaseStarting    = "Starting"
	DownloadJobPhaseDownloading = "Downloading"
	DownloadJobPhaseSucceeded   = "Succeeded"
	DownloadJobPhaseFailed      = "Failed"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.status.lastUpdated`

// DownloadJob is the internal resource representing the work of fetching a
// single resolved video. One exists per video id under a parent Download.
type DownloadJob struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DownloadJobSpec   `json:"spec,omitempty"`
	Status DownloadJobStatus `json:"status,omitempty"`
}

// DeepCopyObject implements runtime.Object.
func (in *DownloadJob) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := new(DownloadJob)
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	out.Spec.Extra = append([]string(nil), in.Spec.Extra...)
	out.Spec.Output = *in.Spec.Output.DeepCopy()
	out.Status = in.Status
	if in.Status.LastUpdated != nil {
		t := in.Status.LastUpdated.DeepCopy()
		out.Status.LastUpdated = &t
	}
	if in.Status.StartTime != nil {
		t := in.Status.StartTime.DeepCopy()
		out.Status.StartTime = &t
	}
	return out
}

// DeepCopyInto copies in into out, overwriting out.
func (in *DownloadJob) DeepCopyInto(out *DownloadJob) {
	*out = *in.DeepCopyObject().(*DownloadJob)
}

// +kubebuilder:object:root=true

// DownloadJobList contains a list of DownloadJob.
type DownloadJobList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DownloadJob `json:"items"`
}

// DeepCopyObject implements runtime.Object.
func (in *DownloadJobList) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := new(DownloadJobList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	out.Items = make([]DownloadJob, len(in.Items))
	for i := range in.Items {
		in.Items[i].DeepCopyObject().(*DownloadJob).DeepCopyInto(&out.Items[i])
	}
	return out
}

func init() {
	SchemeBuilder.Register(&DownloadJob{}, &DownloadJobList{})
}
