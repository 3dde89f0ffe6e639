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

// Command ytdl-executor runs inside a masked pod's worker container. It
// reads the owning resource from RESOURCE and performs either a query
// (fan out DownloadJobs from a search/playlist) or a download (fetch one
// video/thumbnail to S3), per SPEC_FULL.md sections 4.D and 4.E.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/executor"
)

func main() {
	var downloadVideo, downloadThumbnail bool

	root := &cobra.Command{
		Use:   "ytdl-executor",
		Short: "runs one query or download step of a masked pod",
	}

	root.AddCommand(&cobra.Command{
		Use:   "query",
		Short: "runs youtube-dl -j and fans out DownloadJobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			kube, log, err := newClient()
			if err != nil {
				return err
			}

			download := &ytdlv1alpha1.Download{}
			if err := json.Unmarshal([]byte(os.Getenv("RESOURCE")), download); err != nil {
				return fmt.Errorf("parse RESOURCE: %w", err)
			}

			return executor.Query(cmd.Context(), log, kube, download)
		},
	})

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "downloads a single video and/or its thumbnail to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			kube, log, err := newClient()
			if err != nil {
				return err
			}

			job := &ytdlv1alpha1.DownloadJob{}
			if err := json.Unmarshal([]byte(os.Getenv("RESOURCE")), job); err != nil {
				return fmt.Errorf("parse RESOURCE: %w", err)
			}

			return executor.Download(cmd.Context(), log, kube, job, executor.DownloadOptions{
				DownloadVideo:     downloadVideo,
				DownloadThumbnail: downloadThumbnail,
			})
		},
	}
	downloadCmd.Flags().BoolVar(&downloadVideo, "download-video", false, "download the video to the resolved S3 output")
	downloadCmd.Flags().BoolVar(&downloadThumbnail, "download-thumbnail", false, "download the thumbnail to the resolved S3 output")
	root.AddCommand(downloadCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() (client.Client, logr.Logger, error) {
	zapLog, err := zap.NewProduction()
	if err != nil {
		return nil, logr.Logger{}, fmt.Errorf("build logger: %w", err)
	}
	log := zapr.NewLogger(zapLog)

	scheme := clientgoscheme.Scheme
	if err := ytdlv1alpha1.AddToScheme(scheme); err != nil {
		return nil, logr.Logger{}, fmt.Errorf("add scheme: %w", err)
	}

	cfg, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, logr.Logger{}, fmt.Errorf("load kube config: %w", err)
	}

	kube, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, logr.Logger{}, fmt.Errorf("build kube client: %w", err)
	}

	return kube, log, nil
}
