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

// Package executor implements the two entrypoints run inside the worker
// container of a masked pod: query (SPEC_FULL.md section 4.D) and download
// (section 4.E).
package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/config"
	"github.com/thavlik/ytdl-operator/internal/resources"
	"github.com/thavlik/ytdl-operator/internal/vpn"
	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

// Query implements section 4.D: it runs `youtube-dl -j`, creates a
// DownloadJob per emitted video, and publishes the joined metadata lines as
// a ConfigMap once the child exits successfully.
func Query(ctx context.Context, log logr.Logger, kube client.Client, download *ytdlv1alpha1.Download) error {
	if err := (&vpn.Prober{}).Wait(ctx, log); err != nil {
		return err
	}

	args := []string{"-j"}
	if download.Spec.IgnoreErrors {
		args = append(args, "--ignore-errors")
	}
	args = append(args, download.Spec.Extra...)
	args = append(args, download.Spec.Query)

	cmd := exec.CommandContext(ctx, config.YoutubeDlCommand(), args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ytdlerr.MsgYoutubeDl(-1)
	}

	if err := cmd.Start(); err != nil {
		return ytdlerr.MsgYoutubeDl(-1)
	}

	var lines []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		log.Info(line)

		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Info("skipping non-JSON line from youtube-dl", "line", line)
			continue
		}

		id, ok := entry["id"].(string)
		if !ok {
			continue
		}

		if err := createDownloadJob(ctx, kube, download, id, line); err != nil {
			return err
		}

		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return ytdlerr.WrapHTTP(err)
	}

	if err := cmd.Wait(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		code := -1
		if ok {
			code = exitErr.ExitCode()
		}
		return ytdlerr.MsgYoutubeDl(code)
	}

	cm := resources.BuildMetadataConfigMap(download, lines)
	if err := kube.Create(ctx, cm); err != nil {
		if !apierrors.IsAlreadyExists(err) {
			return ytdlerr.WrapKubeAPI(err)
		}
	}

	return nil
}

// createDownloadJob creates the DownloadJob for one resolved video, treating
// AlreadyExists as success per the idempotence rule in section 4.D.
func createDownloadJob(ctx context.Context, kube client.Client, download *ytdlv1alpha1.Download, id, metadataLine string) error {
	name := fmt.Sprintf("%s-%s", download.Name, id)

	existing := &ytdlv1alpha1.DownloadJob{}
	err := kube.Get(ctx, client.ObjectKey{Namespace: download.Namespace, Name: name}, existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return ytdlerr.WrapKubeAPI(err)
	}

	job := &ytdlv1alpha1.DownloadJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: download.Namespace,
			Labels:    resources.Labels(),
		},
		Spec: ytdlv1alpha1.DownloadJobSpec{
			Metadata: metadataLine,
			Executor: download.Spec.Executor,
			Extra:    download.Spec.Extra,
			Output:   download.Spec.Output,
		},
	}

	if err := controllerutil.SetControllerReference(download, job, kube.Scheme()); err != nil {
		return ytdlerr.WrapKubeAPI(err)
	}

	if err := kube.Create(ctx, job); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return ytdlerr.WrapKubeAPI(err)
	}

	return nil
}
