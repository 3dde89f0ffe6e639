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

// Package status implements the status-patch and finalizer helpers shared
// by both reconcilers, per SPEC_FULL.md section 4.H.
package status

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/config"
)

// Now is overridden in tests to make LastUpdated deterministic.
var Now = func() metav1.Time { return metav1.NewTime(time.Now()) }

// Patch mutates obj's status in place via mutate, stamps LastUpdated, and
// submits the result as a server-side apply status patch under the
// configured field manager. obj must already carry the identity (name,
// namespace, resourceVersion is not required for apply patches) of an
// existing object.
func Patch(ctx context.Context, c client.Client, obj client.Object, mutate func()) error {
	mutate()
	stampLastUpdated(obj)
	return c.Status().Patch(ctx, obj, client.Apply,
		client.FieldOwner(config.ManagerName()), client.ForceOwnership)
}

func stampLastUpdated(obj client.Object) {
	now := Now()
	switch o := obj.(type) {
	case *ytdlv1alpha1.Download:
		o.Status.LastUpdated = &now
	case *ytdlv1alpha1.DownloadJob:
		o.Status.LastUpdated = &now
	}
}

// AddFinalizer merge-patches name into obj's finalizer list if absent.
func AddFinalizer(ctx context.Context, c client.Client, obj client.Object, name string) error {
	if controllerutil.ContainsFinalizer(obj, name) {
		return nil
	}
	before := obj.DeepCopyObject().(client.Object)
	controllerutil.AddFinalizer(obj, name)
	return c.Patch(ctx, obj, client.MergeFrom(before))
}

// RemoveFinalizer merge-patches name out of obj's finalizer list if present.
func RemoveFinalizer(ctx context.Context, c client.Client, obj client.Object, name string) error {
	if !controllerutil.ContainsFinalizer(obj, name) {
		return nil
	}
	before := obj.DeepCopyObject().(client.Object)
	controllerutil.RemoveFinalizer(obj, name)
	return c.Patch(ctx, obj, client.MergeFrom(before))
}
