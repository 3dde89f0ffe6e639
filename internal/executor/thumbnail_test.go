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
	"image"
	"testing"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

func intPtr(v int) *int { return &v }

func TestGetThumbnailOptionsInfersFormatFromKey(t *testing.T) {
	spec := &ytdlv1alpha1.ThumbnailOutputSpec{}
	opts, err := getThumbnailOptions(spec, "thumbs/abc.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Format != "png" {
		t.Fatalf("got format %q, want png", opts.Format)
	}
}

func TestGetThumbnailOptionsUnrecognizedFilter(t *testing.T) {
	spec := &ytdlv1alpha1.ThumbnailOutputSpec{Filter: "bicubic-ish"}
	_, err := getThumbnailOptions(spec, "thumbs/abc.png")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	kind, ok := ytdlerr.KindOf(err)
	if !ok || kind != ytdlerr.InvalidUserInput {
		t.Fatalf("expected InvalidUserInput, got %v", err)
	}
}

func TestFormatFromFilenameUnrecognized(t *testing.T) {
	_, err := formatFromFilename("thumbs/abc.unknownext")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestMimetypeToFormat(t *testing.T) {
	cases := map[string]string{
		"image/jpeg; charset=binary": "jpeg",
		"image/png":                  "png",
		"image/webp":                 "webp",
	}
	for ct, want := range cases {
		got, err := mimetypeToFormat(ct)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", ct, err)
		}
		if got != want {
			t.Fatalf("%s: got %q, want %q", ct, got, want)
		}
	}
}

func TestMimetypeToFormatUnsupported(t *testing.T) {
	_, err := mimetypeToFormat("application/octet-stream")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestResizeImageNeitherDimensionIsIdentity(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	opts := &thumbnailOptions{}
	got := resizeImage(src, opts)
	if got.Bounds().Dx() != 100 || got.Bounds().Dy() != 50 {
		t.Fatalf("expected identity resize, got %dx%d", got.Bounds().Dx(), got.Bounds().Dy())
	}
}

func TestResizeImageOneDimensionPreservesAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	opts := &thumbnailOptions{Width: intPtr(100)}
	got := resizeImage(src, opts)
	if got.Bounds().Dx() != 100 || got.Bounds().Dy() != 50 {
		t.Fatalf("got %dx%d, want 100x50", got.Bounds().Dx(), got.Bounds().Dy())
	}
}

func TestEncodeImageWebpIsInvalidUserInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	err := encodeImage(&buf, "webp", src)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	kind, ok := ytdlerr.KindOf(err)
	if !ok || kind != ytdlerr.InvalidUserInput {
		t.Fatalf("expected InvalidUserInput, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no bytes written on unsupported encode target, got %d", buf.Len())
	}
}

func TestEncodeImageIcoIsInvalidUserInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	err := encodeImage(&buf, "ico", src)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	kind, ok := ytdlerr.KindOf(err)
	if !ok || kind != ytdlerr.InvalidUserInput {
		t.Fatalf("expected InvalidUserInput, got %v", err)
	}
}

func TestResizeImageBothDimensionsFitsWithinBox(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	opts := &thumbnailOptions{Width: intPtr(50), Height: intPtr(50)}
	got := resizeImage(src, opts)
	if got.Bounds().Dx() > 50 || got.Bounds().Dy() > 50 {
		t.Fatalf("got %dx%d, exceeds 50x50 box", got.Bounds().Dx(), got.Bounds().Dy())
	}
	if got.Bounds().Dx() != 50 {
		t.Fatalf("expected width-constrained fit of 50, got %d", got.Bounds().Dx())
	}
}
