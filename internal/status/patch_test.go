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

package status

import (
	"context"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := ytdlv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("add scheme: %v", err)
	}
	return scheme
}

func TestPatchStampsLastUpdated(t *testing.T) {
	download := &ytdlv1alpha1.Download{
		ObjectMeta: metav1.ObjectMeta{Name: "d", Namespace: "default"},
	}
	c := fake.NewClientBuilder().
		WithScheme(newScheme(t)).
		WithStatusSubresource(&ytdlv1alpha1.Download{}).
		WithObjects(download).
		Build()

	fixed := metav1.NewTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	orig := Now
	Now = func() metav1.Time { return fixed }
	defer func() { Now = orig }()

	err := Patch(context.Background(), c, download, func() {
		download.Status.Phase = ytdlv1alpha1.DownloadPhasePending
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}

	got := &ytdlv1alpha1.Download{}
	if err := c.Get(context.Background(), types.NamespacedName{Name: "d", Namespace: "default"}, got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status.Phase != ytdlv1alpha1.DownloadPhasePending {
		t.Fatalf("expected phase Pending, got %q", got.Status.Phase)
	}
	if got.Status.LastUpdated == nil || !got.Status.LastUpdated.Equal(&fixed) {
		t.Fatalf("expected LastUpdated %v, got %v", fixed, got.Status.LastUpdated)
	}
}

func TestAddFinalizerIsIdempotent(t *testing.T) {
	download := &ytdlv1alpha1.Download{
		ObjectMeta: metav1.ObjectMeta{Name: "d", Namespace: "default"},
	}
	c := fake.NewClientBuilder().
		WithScheme(newScheme(t)).
		WithObjects(download).
		Build()
	ctx := context.Background()

	if err := AddFinalizer(ctx, c, download, ytdlv1alpha1.Finalizer); err != nil {
		t.Fatalf("AddFinalizer: %v", err)
	}
	if !controllerutil.ContainsFinalizer(download, ytdlv1alpha1.Finalizer) {
		t.Fatal("expected finalizer to be present on in-memory object")
	}

	got := &ytdlv1alpha1.Download{}
	if err := c.Get(ctx, types.NamespacedName{Name: "d", Namespace: "default"}, got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !controllerutil.ContainsFinalizer(got, ytdlv1alpha1.Finalizer) {
		t.Fatal("expected finalizer to be persisted")
	}

	// Calling again with an object that already carries the finalizer
	// must be a no-op, not a redundant patch.
	if err := AddFinalizer(ctx, c, got, ytdlv1alpha1.Finalizer); err != nil {
		t.Fatalf("AddFinalizer (idempotent call): %v", err)
	}
}

func TestRemoveFinalizer(t *testing.T) {
	download := &ytdlv1alpha1.Download{
		ObjectMeta: metav1.ObjectMeta{
			Name:       "d",
			Namespace:  "default",
			Finalizers: []string{ytdlv1alpha1.Finalizer},
		},
	}
	c := fake.NewClientBuilder().
		WithScheme(newScheme(t)).
		WithObjects(download).
		Build()
	ctx := context.Background()

	if err := RemoveFinalizer(ctx, c, download, ytdlv1alpha1.Finalizer); err != nil {
		t.Fatalf("RemoveFinalizer: %v", err)
	}

	got := &ytdlv1alpha1.Download{}
	if err := c.Get(ctx, types.NamespacedName{Name: "d", Namespace: "default"}, got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if controllerutil.ContainsFinalizer(got, ytdlv1alpha1.Finalizer) {
		t.Fatal("expected finalizer to be removed")
	}
}
