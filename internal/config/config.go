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

// Package config centralizes environment-variable driven process
// configuration for both the operator and executor binaries.
package config

import (
	"os"
	"strconv"

	corev1 "k8s.io/api/core/v1"
)

// YoutubeDlCommand returns the binary used to run queries and downloads,
// from YOUTUBE_DL_COMMAND, defaulting to "yt-dlp".
func YoutubeDlCommand() string {
	return envOr("YOUTUBE_DL_COMMAND", "yt-dlp")
}

// Concurrency returns the reconciler's configured parallelism, from
// CONCURRENCY, defaulting to 1.
func Concurrency() int {
	v := os.Getenv("CONCURRENCY")
	if v == "" {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ExecutorServiceAccountName returns the service account name applied to
// pods the operator creates, from EXECUTOR_SERVICE_ACCOUNT_NAME.
func ExecutorServiceAccountName() string {
	return os.Getenv("EXECUTOR_SERVICE_ACCOUNT_NAME")
}

// ManagerName returns the field manager name used for server-side apply
// status patches, from MANAGER_NAME, defaulting to "ytdl-operator". This is
// injected rather than a file-scope constant per the "global mutable
// state" re-architecture cue.
func ManagerName() string {
	return envOr("MANAGER_NAME", "ytdl-operator")
}

// ExecutorImagePullPolicy returns the pull policy applied to every
// container in executor pods, from EXECUTOR_IMAGE_PULL_POLICY, defaulting
// to Always (matching the source's hard-coded default).
func ExecutorImagePullPolicy() corev1.PullPolicy {
	switch os.Getenv("EXECUTOR_IMAGE_PULL_POLICY") {
	case string(corev1.PullIfNotPresent):
		return corev1.PullIfNotPresent
	case string(corev1.PullNever):
		return corev1.PullNever
	default:
		return corev1.PullAlways
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
