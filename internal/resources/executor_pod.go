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
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
)

// DefaultExecutorImage is used when a Download or DownloadJob does not
// override spec.executor.
const DefaultExecutorImage = "ghcr.io/thavlik/ytdl-executor:latest"

// QueryPodOptions parameterizes BuildQueryPod.
type QueryPodOptions struct {
	Download        *ytdlv1alpha1.Download
	ServiceAccount  string
	ImagePullPolicy corev1.PullPolicy
}

// BuildQueryPod wraps BuildMaskedPod with a worker container running the
// executor's query subcommand (section 4.D), carrying the parent Download
// serialized into RESOURCE.
func BuildQueryPod(opts QueryPodOptions) (*corev1.Pod, error) {
	resource, err := json.Marshal(opts.Download)
	if err != nil {
		return nil, fmt.Errorf("marshal Download for RESOURCE env: %w", err)
	}

	image := opts.Download.Spec.Executor
	if image == "" {
		image = DefaultExecutorImage
	}

	worker := corev1.Container{
		Name:    "executor",
		Image:   image,
		Command: []string{"ytdl-executor", "query"},
		Env: []corev1.EnvVar{
			{Name: "RESOURCE", Value: string(resource)},
		},
	}

	return BuildMaskedPod(MaskedPodOptions{
		Name:            opts.Download.Name,
		Namespace:       opts.Download.Namespace,
		ServiceAccount:  opts.ServiceAccount,
		ImagePullPolicy: opts.ImagePullPolicy,
		Worker:          worker,
	}), nil
}

// DownloadPodOptions parameterizes BuildDownloadPod.
type DownloadPodOptions struct {
	Job               *ytdlv1alpha1.DownloadJob
	ServiceAccount    string
	ImagePullPolicy   corev1.PullPolicy
	DownloadVideo     bool
	DownloadThumbnail bool
}

// BuildDownloadPod wraps BuildMaskedPod with a worker container running the
// executor's download subcommand (section 4.E), carrying the DownloadJob
// serialized into RESOURCE and the resolved branch flags.
func BuildDownloadPod(opts DownloadPodOptions) (*corev1.Pod, error) {
	resource, err := json.Marshal(opts.Job)
	if err != nil {
		return nil, fmt.Errorf("marshal DownloadJob for RESOURCE env: %w", err)
	}

	image := opts.Job.Spec.Executor
	if image == "" {
		image = DefaultExecutorImage
	}

	args := []string{"download"}
	if opts.DownloadVideo {
		args = append(args, "--download-video")
	}
	if opts.DownloadThumbnail {
		args = append(args, "--download-thumbnail")
	}

	worker := corev1.Container{
		Name:    "executor",
		Image:   image,
		Command: append([]string{"ytdl-executor"}, args...),
		Env: []corev1.EnvVar{
			{Name: "RESOURCE", Value: string(resource)},
		},
	}

	return BuildMaskedPod(MaskedPodOptions{
		Name:            opts.Job.Name,
		Namespace:       opts.Job.Namespace,
		ServiceAccount:  opts.ServiceAccount,
		ImagePullPolicy: opts.ImagePullPolicy,
		Worker:          worker,
	}), nil
}
