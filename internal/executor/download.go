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

package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/client"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/config"
	"github.com/thavlik/ytdl-operator/internal/output"
	"github.com/thavlik/ytdl-operator/internal/vpn"
	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

// infoJSONPath is the fixed path youtube-dl's --load-info-json expects.
const infoJSONPath = "/info.json"

// DownloadOptions selects which branches of Download run.
type DownloadOptions struct {
	DownloadVideo     bool
	DownloadThumbnail bool
}

// Download implements section 4.E: it resolves outputs, waits for the VPN,
// and runs the requested branches to completion.
func Download(ctx context.Context, log logr.Logger, kube client.Reader, job *ytdlv1alpha1.DownloadJob, opts DownloadOptions) error {
	if err := os.WriteFile(infoJSONPath, []byte(job.Spec.Metadata), 0o644); err != nil {
		return ytdlerr.WrapHTTP(err)
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(job.Spec.Metadata), &metadata); err != nil {
		return ytdlerr.MsgInvalidUserInput("spec.metadata is not valid JSON: %v", err)
	}

	var videoOut *output.Resolved
	if opts.DownloadVideo {
		if job.Spec.Output.Video == nil {
			return output.MissingOutputError("video")
		}
		resolved, err := output.Resolve(ctx, kube, job.Namespace, job.Spec.Output.Video.S3, metadata)
		if err != nil {
			return err
		}
		videoOut = resolved
	}

	var thumbOut *output.Resolved
	var thumbOpts *thumbnailOptions
	if opts.DownloadThumbnail {
		if job.Spec.Output.Thumbnail == nil {
			return output.MissingOutputError("thumbnail")
		}
		resolved, err := output.Resolve(ctx, kube, job.Namespace, job.Spec.Output.Thumbnail.S3, metadata)
		if err != nil {
			return err
		}
		thumbOut = resolved
		thumbOpts, err = getThumbnailOptions(job.Spec.Output.Thumbnail, resolved.Key)
		if err != nil {
			return err
		}
	}

	if err := (&vpn.Prober{}).Wait(ctx, log); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.DownloadVideo {
		g.Go(func() error {
			return downloadVideo(gctx, log, job, videoOut)
		})
	}
	if opts.DownloadThumbnail {
		g.Go(func() error {
			return downloadThumbnail(gctx, log, metadata, thumbOut, thumbOpts)
		})
	}

	return g.Wait()
}

// downloadVideo streams the video bytes produced by youtube-dl straight
// into an S3 multipart upload by handing the command's stdout pipe to the
// uploader as its body: the subprocess never touches disk.
func downloadVideo(ctx context.Context, log logr.Logger, job *ytdlv1alpha1.DownloadJob, dst *output.Resolved) error {
	args := []string{"--load-info-json", infoJSONPath, "-o", "-"}
	args = append(args, job.Spec.Extra...)

	cmd := exec.CommandContext(ctx, config.YoutubeDlCommand(), args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ytdlerr.MsgYoutubeDl(-1)
	}

	if err := cmd.Start(); err != nil {
		return ytdlerr.MsgYoutubeDl(-1)
	}

	uploader := manager.NewUploader(dst.Client)
	_, uploadErr := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &dst.Bucket,
		Key:    &dst.Key,
		Body:   stdout,
	})

	waitErr := cmd.Wait()

	if uploadErr != nil {
		return ytdlerr.WrapS3(uploadErr)
	}
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		code := -1
		if ok {
			code = exitErr.ExitCode()
		}
		return ytdlerr.MsgYoutubeDl(code)
	}

	log.Info("video uploaded", "bucket", dst.Bucket, "key", dst.Key)
	return nil
}

// downloadThumbnail fetches, decodes, resizes, re-encodes and uploads the
// thumbnail image, per section 4.E.
func downloadThumbnail(ctx context.Context, log logr.Logger, metadata map[string]any, dst *output.Resolved, opts *thumbnailOptions) error {
	url, _ := metadata["thumbnail"].(string)
	if url == "" {
		return ytdlerr.MsgInvalidUserInput("metadata has no thumbnail URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ytdlerr.WrapHTTP(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ytdlerr.WrapHTTP(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ytdlerr.MsgThumbnailDownload(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ytdlerr.WrapHTTP(err)
	}

	srcFormat, err := mimetypeToFormat(resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	img, err := decodeImage(srcFormat, body)
	if err != nil {
		return err
	}

	img = resizeImage(img, opts)

	var encoded bytes.Buffer
	if err := encodeImage(&encoded, opts.Format, img); err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "thumbnail-*")
	if err != nil {
		return ytdlerr.WrapImage(err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(encoded.Bytes()); err != nil {
		return ytdlerr.WrapImage(err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return ytdlerr.WrapImage(err)
	}

	uploader := manager.NewUploader(dst.Client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &dst.Bucket,
		Key:    &dst.Key,
		Body:   tmp,
	}); err != nil {
		return ytdlerr.WrapS3(err)
	}

	log.Info("thumbnail uploaded", "bucket", dst.Bucket, "key", dst.Key)
	return nil
}
