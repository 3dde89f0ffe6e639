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

package resources

import (
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
)

// MetadataConfigMapDataKey is the key under which the joined JSONL lines
// are stored.
const MetadataConfigMapDataKey = "info.jsonl"

// BuildMetadataConfigMap creates the ConfigMap published by the query
// executor once youtube-dl has finished emitting metadata lines.
//
// There is no upper bound enforced on the size of the joined lines; a
// playlist large enough to exceed Kubernetes' 1 MiB ConfigMap limit will
// fail at the API server. Pagination into multiple ConfigMaps or a chunked
// store is left to a future change (see SPEC_FULL.md Open Questions).
func BuildMetadataConfigMap(download *ytdlv1alpha1.Download, lines []string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      download.Name,
			Namespace: download.Namespace,
			Labels:    Labels(),
		},
		Data: map[string]string{
			MetadataConfigMapDataKey: strings.Join(lines, "\n"),
		},
	}
}
