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

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
)

func newTestDownloadJob(name string) *ytdlv1alpha1.DownloadJob {
	return &ytdlv1alpha1.DownloadJob{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: ytdlv1alpha1.DownloadJobSpec{
			Metadata: `{"id":"abc123","title":"cats"}`,
		},
	}
}

var _ = Describe("DownloadJob controller", func() {
	const name = "search-cats-abc123"
	req := ctrl.Request{NamespacedName: types.NamespacedName{Name: name, Namespace: "default"}}

	It("sets the initial phase to Pending and requeues", func() {
		scheme := controllerScheme()
		job := newTestDownloadJob(name)
		c := fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&ytdlv1alpha1.DownloadJob{}).
			WithObjects(job).
			Build()
		r := &DownloadJobReconciler{Client: c, Scheme: scheme}

		result, err := r.Reconcile(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Requeue).To(BeTrue())

		got := &ytdlv1alpha1.DownloadJob{}
		Expect(c.Get(context.Background(), req.NamespacedName, got)).To(Succeed())
		Expect(got.Status.Phase).To(Equal(ytdlv1alpha1.DownloadJobPhasePending))
	})

	It("succeeds immediately when neither output branch is configured", func() {
		scheme := controllerScheme()
		job := newTestDownloadJob(name)
		job.Status.Phase = ytdlv1alpha1.DownloadJobPhasePending
		job.Finalizers = []string{ytdlv1alpha1.Finalizer}
		c := fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&ytdlv1alpha1.DownloadJob{}).
			WithObjects(job).
			Build()
		r := &DownloadJobReconciler{Client: c, Scheme: scheme}

		_, err := r.Reconcile(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		got := &ytdlv1alpha1.DownloadJob{}
		Expect(c.Get(context.Background(), req.NamespacedName, got)).To(Succeed())
		Expect(got.Status.Phase).To(Equal(ytdlv1alpha1.DownloadJobPhaseSucceeded))
		Expect(got.Finalizers).To(BeEmpty())
	})

	It("deletes the worker pod and releases the finalizer on deletion", func() {
		scheme := controllerScheme()
		job := newTestDownloadJob(name)
		job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseDownloading
		job.Finalizers = []string{ytdlv1alpha1.Finalizer}
		now := metav1.Now()
		job.DeletionTimestamp = &now

		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"}}
		c := fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&ytdlv1alpha1.DownloadJob{}).
			WithObjects(job, pod).
			Build()
		r := &DownloadJobReconciler{Client: c, Scheme: scheme}

		_, err := r.Reconcile(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Get(context.Background(), req.NamespacedName, &corev1.Pod{})).NotTo(Succeed())
	})
})
