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
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
)

func queryTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := ytdlv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("add scheme: %v", err)
	}
	return scheme
}

func TestCreateDownloadJobCreatesOnFirstCall(t *testing.T) {
	download := &ytdlv1alpha1.Download{
		ObjectMeta: metav1.ObjectMeta{Name: "search-cats", Namespace: "default"},
		Spec:       ytdlv1alpha1.DownloadSpec{Query: "cats"},
	}
	c := fake.NewClientBuilder().WithScheme(queryTestScheme(t)).WithObjects(download).Build()
	ctx := context.Background()

	if err := createDownloadJob(ctx, c, download, "abc123", `{"id":"abc123"}`); err != nil {
		t.Fatalf("createDownloadJob: %v", err)
	}

	got := &ytdlv1alpha1.DownloadJob{}
	if err := c.Get(ctx, types.NamespacedName{Name: "search-cats-abc123", Namespace: "default"}, got); err != nil {
		t.Fatalf("expected DownloadJob to be created: %v", err)
	}
	if got.Spec.Metadata != `{"id":"abc123"}` {
		t.Fatalf("unexpected metadata: %q", got.Spec.Metadata)
	}
	if len(got.OwnerReferences) != 1 || got.OwnerReferences[0].Name != "search-cats" {
		t.Fatalf("expected owner reference to Download, got %+v", got.OwnerReferences)
	}
}

func TestCreateDownloadJobIsIdempotentOnAlreadyExists(t *testing.T) {
	download := &ytdlv1alpha1.Download{
		ObjectMeta: metav1.ObjectMeta{Name: "search-cats", Namespace: "default"},
		Spec:       ytdlv1alpha1.DownloadSpec{Query: "cats"},
	}
	existing := &ytdlv1alpha1.DownloadJob{
		ObjectMeta: metav1.ObjectMeta{Name: "search-cats-abc123", Namespace: "default"},
		Spec:       ytdlv1alpha1.DownloadJobSpec{Metadata: `{"id":"abc123","title":"original"}`},
	}
	c := fake.NewClientBuilder().WithScheme(queryTestScheme(t)).WithObjects(download, existing).Build()
	ctx := context.Background()

	if err := createDownloadJob(ctx, c, download, "abc123", `{"id":"abc123","title":"replayed"}`); err != nil {
		t.Fatalf("createDownloadJob: %v", err)
	}

	got := &ytdlv1alpha1.DownloadJob{}
	if err := c.Get(ctx, types.NamespacedName{Name: "search-cats-abc123", Namespace: "default"}, got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Spec.Metadata != `{"id":"abc123","title":"original"}` {
		t.Fatalf("expected existing job to be left untouched, got %q", got.Spec.Metadata)
	}
}
