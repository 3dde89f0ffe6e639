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

package controller

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
)

func newTestDownload(name string) *ytdlv1alpha1.Download {
	return &ytdlv1alpha1.Download{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: ytdlv1alpha1.DownloadSpec{
			Query: "https://example.com/watch?v=abc123",
			Output: ytdlv1alpha1.OutputSpec{
				Video: &ytdlv1alpha1.VideoOutputSpec{
					S3: ytdlv1alpha1.S3OutputSpec{Bucket: "videos"},
				},
			},
		},
	}
}

var _ = Describe("Download controller", func() {
	const name = "search-cats"
	req := ctrl.Request{NamespacedName: types.NamespacedName{Name: name, Namespace: "default"}}

	It("sets the initial phase to Pending and requeues", func() {
		scheme := controllerScheme()
		download := newTestDownload(name)
		c := fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&ytdlv1alpha1.Download{}).
			WithObjects(download).
			Build()
		r := &DownloadReconciler{Client: c, Scheme: scheme}

		result, err := r.Reconcile(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Requeue).To(BeTrue())

		got := &ytdlv1alpha1.Download{}
		Expect(c.Get(context.Background(), req.NamespacedName, got)).To(Succeed())
		Expect(got.Status.Phase).To(Equal(ytdlv1alpha1.DownloadPhasePending))
	})

	It("creates a query pod and adds the finalizer once pending", func() {
		scheme := controllerScheme()
		download := newTestDownload(name)
		download.Status.Phase = ytdlv1alpha1.DownloadPhasePending
		c := fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&ytdlv1alpha1.Download{}).
			WithObjects(download).
			Build()
		r := &DownloadReconciler{Client: c, Scheme: scheme}

		result, err := r.Reconcile(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(BeNumerically(">", 0))

		pod := &corev1.Pod{}
		Expect(c.Get(context.Background(), req.NamespacedName, pod)).To(Succeed())

		got := &ytdlv1alpha1.Download{}
		Expect(c.Get(context.Background(), req.NamespacedName, got)).To(Succeed())
		Expect(got.Status.Phase).To(Equal(ytdlv1alpha1.DownloadPhaseQueryStarting))
		Expect(controllerutil.ContainsFinalizer(got, ytdlv1alpha1.Finalizer)).To(BeTrue())
	})

	It("deletes the query pod and releases the finalizer on deletion", func() {
		scheme := controllerScheme()
		download := newTestDownload(name)
		download.Status.Phase = ytdlv1alpha1.DownloadPhaseQuerying
		download.Finalizers = []string{ytdlv1alpha1.Finalizer}
		now := metav1.Now()
		download.DeletionTimestamp = &now

		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"}}
		c := fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&ytdlv1alpha1.Download{}).
			WithObjects(download, pod).
			Build()
		r := &DownloadReconciler{Client: c, Scheme: scheme}

		_, err := r.Reconcile(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Get(context.Background(), req.NamespacedName, &corev1.Pod{})).NotTo(Succeed())
	})
})
