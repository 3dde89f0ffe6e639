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

// S3OutputSpec describes where an object is written and how credentials for
// the write are obtained.
type S3OutputSpec struct {
	// Bucket is the destination S3 bucket.
	Bucket string `json:"bucket"`

	// Key is a template for the object key. Recognized tokens are
	// %(field)s, substituted from the top-level string fields of the
	// youtube-dl metadata JSON.
	// +kubebuilder:default="%(id)s.%(ext)s"
	Key string `json:"key,omitempty"`

	// Region is the S3 region.
	// +kubebuilder:default="us-east-1"
	Region string `json:"region,omitempty"`

	// Endpoint overrides the default S3 endpoint, for S3-compatible
	// providers (e.g. MinIO, Backblaze B2).
	// +optional
	Endpoint string `json:"endpoint,omitempty"`

	// Secret names a Secret in the same namespace supplying credentials
	// via keys access_key_id, secret_access_key, and optionally
	// security_token and/or session_token. When unset, the ambient
	// default AWS credential chain is used.
	// +optional
	Secret string `json:"secret,omitempty"`
}

// DeepCopy returns a deep copy of the S3OutputSpec.
func (in *S3OutputSpec) DeepCopy() *S3OutputSpec {
	if in == nil {
		return nil
	}
	out := new(S3OutputSpec)
	*out = *in
	return out
}

// VideoOutputSpec describes the destination for the downloaded video bytes.
type VideoOutputSpec struct {
	S3 S3OutputSpec `json:"s3"`
}

// DeepCopy returns a deep copy of the VideoOutputSpec.
func (in *VideoOutputSpec) DeepCopy() *VideoOutputSpec {
	if in == nil {
		return nil
	}
	out := new(VideoOutputSpec)
	out.S3 = *in.S3.DeepCopy()
	return out
}

// ThumbnailOutputSpec describes the destination and processing applied to
// the thumbnail image before upload.
type ThumbnailOutputSpec struct {
	S3 S3OutputSpec `json:"s3"`

	// Format is the target image format. When unset, it is inferred from
	// the key's file extension.
	// +kubebuilder:validation:Enum=jpeg;png;gif;webp;tiff;bmp;ico
	// +optional
	Format string `json:"format,omitempty"`

	// Width is the target width in pixels.
	// +optional
	Width *int `json:"width,omitempty"`

	// Height is the target height in pixels.
	// +optional
	Height *int `json:"height,omitempty"`

	// Filter is the resampling filter used when resizing.
	// +kubebuilder:validation:Enum=lanczos3;triangle;catmullrom;gaussian;nearest
	// +kubebuilder:default="lanczos3"
	// +optional
	Filter string `json:"filter,omitempty"`
}

// DeepCopy returns a deep copy of the ThumbnailOutputSpec.
func (in *ThumbnailOutputSpec) DeepCopy() *ThumbnailOutputSpec {
	if in == nil {
		return nil
	}
	out := new(ThumbnailOutputSpec)
	out.S3 = *in.S3.DeepCopy()
	out.Format = in.Format
	out.Filter = in.Filter
	if in.Width != nil {
		w := *in.Width
		out.Width = &w
	}
	if in.Height != nil {
		h := *in.Height
		out.Height = &h
	}
	return out
}

// OutputSpec describes where the downloaded artifacts are written. At least
// one of Video or Thumbnail must be set.
type OutputSpec struct {
	// +optional
	Video *VideoOutputSpec `json:"video,omitempty"`

	// +optional
	Thumbnail *ThumbnailOutputSpec `json:"thumbnail,omitempty"`
}

// DeepCopy returns a deep copy of the OutputSpec.
func (in *OutputSpec) DeepCopy() *OutputSpec {
	if in == nil {
		return nil
	}
	out := new(OutputSpec)
	out.Video = in.Video.DeepCopy()
	out.Thumbnail = in.Thumbnail.DeepCopy()
	return out
}

// DownloadSpec defines the desired state of Download.
type DownloadSpec struct {
	// Query is the URL or search term passed to youtube-dl.
	Query string `json:"query"`

	// IgnoreErrors passes --ignore-errors to the query invocation so a
	// single failing entry in a playlist does not abort the whole query.
	// +kubebuilder:default=false
	IgnoreErrors bool `json:"ignoreErrors,omitempty"`

	// Executor overrides the executor container image.
	// +optional
	Executor string `json:"executor,omitempty"`

	// Extra lists additional arguments passed through to youtube-dl.
	// +optional
	Extra []string `json:"extra,omitempty"`

	Output OutputSpec `json:"output"`
}

// DownloadStatus defines the observed state of Download.
type DownloadStatus struct {
	// Phase is the current lifecycle phase.
	// +kubebuilder:validation:Enum=Pending;QueryStarting;Querying;Downloading;Succeeded;ErrQueryFailed
	Phase string `json:"phase,omitempty"`

	// Message is a human-readable status message.
	// +optional
	Message string `json:"message,omitempty"`

	// LastUpdated is the time status was last patched.
	// +optional
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`

	// QueryStartTime records when the query pod began running.
	// +optional
	QueryStartTime *metav1.Time `json:"queryStartTime,omitempty"`

	// Succeeded is the number of child DownloadJobs that have succeeded.
	// +optional
	Succeeded int `json:"succeeded,omitempty"`

	// Total is the number of child DownloadJobs created so far.
	// +optional
	Total int `json:"total,omitempty"`
}

// Download phase constants, see DownloadStatus.Phase.
const (
	DownloadPhasePending        = "Pending"
	DownloadPhaseQueryStarting  = "QueryStarting"
	DownloadPhaseQuerying       = "Querying"
	DownloadPhaseDownloading    = "Downloading"
	DownloadPhaseSucceeded      = "Succeeded"
	DownloadPhaseErrQueryFailed = "ErrQueryFailed"
)

// Finalizer is applied to both Download and DownloadJob to gate deletion
// until owned child resources are cleaned up.
const Finalizer = "ytdl.beebs.dev/finalizer"

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=dl
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.status.lastUpdated`

// Download is the user-facing resource describing one logical fetch from a
// video service: a single video, a playlist, or a channel query.
type Download struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DownloadSpec   `json:"spec,omitempty"`
	Status DownloadStatus `json:"status,omitempty"`
}

// DeepCopyObject implements runtime.Object.
func (in *Download) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := new(Download)
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
	if in.Status.QueryStartTime != nil {
		t := in.Status.QueryStartTime.DeepCopy()
		out.Status.QueryStartTime = &t
	}
	return out
}

// +kubebuilder:object:root=true

// DownloadList contains a list of Download.
type DownloadList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Download `json:"items"`
}

// DeepCopyObject implements runtime.Object.
func (in *DownloadList) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := new(DownloadList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	out.Items = make([]Download, len(in.Items))
	for i := range in.Items {
		in.Items[i].DeepCopyObject().(*Download).DeepCopyInto(&out.Items[i])
	}
	return out
}

// DeepCopyInto copies in into out, overwriting out.
func (in *Download) DeepCopyInto(out *Download) {
	*out = *in.DeepCopyObject().(*Download)
}

func init() {
	SchemeBuilder.Register(&Download{}, &DownloadList{})
}
