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
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// MaskedPodOptions parameterizes BuildMaskedPod.
type MaskedPodOptions struct {
	Name            string
	Namespace       string
	OwnerReferences []metav1.OwnerReference
	ServiceAccount  string
	ImagePullPolicy corev1.PullPolicy

	// Worker is the caller-supplied container that performs the actual
	// query or download. Its VolumeMounts are extended with the shared
	// volume mount automatically.
	Worker corev1.Container
}

// BuildMaskedPod produces the pod described in SPEC_FULL.md section 4.B: an
// init container that records the pre-VPN public IP, a Gluetun VPN
// sidecar, and the caller's worker container, all sharing an empty-dir
// volume at /shared. restartPolicy is Never so pod phase transitions map
// 1:1 onto a single run of the worker (see the Job/DownloadJob controllers
// in internal/controller).
func BuildMaskedPod(opts MaskedPodOptions) *corev1.Pod {
	worker := opts.Worker
	worker.ImagePullPolicy = opts.ImagePullPolicy
	worker.VolumeMounts = append(worker.VolumeMounts, sharedVolumeMount())

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:            opts.Name,
			Namespace:       opts.Namespace,
			Labels:          Labels(),
			OwnerReferences: opts.OwnerReferences,
		},
		Spec: corev1.PodSpec{
			RestartPolicy:      corev1.RestartPolicyNever,
			ServiceAccountName: opts.ServiceAccount,
			InitContainers: []corev1.Container{
				buildInitContainer(opts.ImagePullPolicy),
			},
			Containers: []corev1.Container{
				buildVPNSidecar(opts.ImagePullPolicy),
				worker,
			},
			Volumes: []corev1.Volume{
				{
					Name: SharedVolumeName,
					VolumeSource: corev1.VolumeSource{
						EmptyDir: &corev1.EmptyDirVolumeSource{},
					},
				},
			},
		},
	}
}

func sharedVolumeMount() corev1.VolumeMount {
	return corev1.VolumeMount{
		Name:      SharedVolumeName,
		MountPath: SharedPath,
	}
}

// buildInitContainer writes the pre-VPN public IP to the shared volume
// before the VPN sidecar can race to connect. See SPEC_FULL.md section
// 4.B's rationale for the init+sidecar split.
func buildInitContainer(pullPolicy corev1.PullPolicy) corev1.Container {
	return corev1.Container{
		Name:            "init",
		Image:           CurlImage,
		ImagePullPolicy: pullPolicy,
		Command:         []string{"curl"},
		Args:            []string{"-o", IPFilePath, "-s", IPService},
		VolumeMounts:    []corev1.VolumeMount{sharedVolumeMount()},
	}
}

func buildVPNSidecar(pullPolicy corev1.PullPolicy) corev1.Container {
	return corev1.Container{
		Name:            "vpn",
		Image:           VPNImage,
		ImagePullPolicy: pullPolicy,
		SecurityContext: &corev1.SecurityContext{
			Capabilities: &corev1.Capabilities{
				Add: []corev1.Capability{"NET_ADMIN"},
			},
		},
		Env: []corev1.EnvVar{
			{Name: "VPN_SERVICE_PROVIDER", Value: "private internet access"},
			{Name: "IP_SERVICE", Value: IPService},
			{
				Name: "OPENVPN_USER",
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: VPNCredsSecretName},
						Key:                  "username",
					},
				},
			},
			{
				Name: "OPENVPN_PASSWORD",
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: VPNCredsSecretName},
						Key:                  "password",
					},
				},
			},
		},
		VolumeMounts: []corev1.VolumeMount{sharedVolumeMount()},
	}
}
