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

// Package resources builds the Kubernetes objects created by the ytdl
// controllers: the VPN-masked pods and the metadata ConfigMap.
package resources

const (
	// AppLabel is the label value applied to every pod this operator
	// creates, as called out in SPEC_FULL.md section 4.B.
	AppLabel = "ytdl"

	// SharedVolumeName is the empty-dir volume shared between the init
	// container, VPN sidecar, and worker container.
	SharedVolumeName = "shared"

	// SharedPath is where SharedVolumeName is mounted in every container.
	SharedPath = "/shared"

	// IPFilePath is where the init container writes the pre-VPN public IP.
	IPFilePath = SharedPath + "/ip"

	// IPService is the external service queried for the pod's public IP,
	// both by the init container and by the VPN readiness prober.
	IPService = "https://api.ipify.org"

	// VPNCredsSecretName is the Secret consumed by the VPN sidecar.
	VPNCredsSecretName = "pia-creds"

	// CurlImage is the init container image used to fetch the pre-VPN IP.
	CurlImage = "curlimages/curl:7.88.1"

	// VPNImage is the Gluetun sidecar image.
	VPNImage = "qmcgaw/gluetun:v3.32.0"
)

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

// Labels returns the standard labels applied to every pod built by this
// package.
func Labels() map[string]string {
	return map[string]string{
		"app": AppLabel,
	}
}
