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
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlcontroller "sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/config"
	"github.com/thavlik/ytdl-operator/internal/output"
	"github.com/thavlik/ytdl-operator/internal/resources"
	"github.com/thavlik/ytdl-operator/internal/status"
	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

// startingPollInterval is the requeue interval after creating a worker pod.
const startingPollInterval = 3 * time.Second

// DownloadJobReconciler reconciles a DownloadJob object.
type DownloadJobReconciler struct {
	client.Client
	Scheme *runtime.Scheme
}

// +kubebuilder:rbac:groups=ytdl.beebs.dev,resources=downloadjobs,verbs=get;list;watch;update;patch;delete
// +kubebuilder:rbac:groups=ytdl.beebs.dev,resources=downloadjobs/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=ytdl.beebs.dev,resources=downloadjobs/finalizers,verbs=update
// +kubebuilder:rbac:groups=core,resources=pods,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups=core,resources=secrets,verbs=get

// Reconcile implements section 4.F's state machine.
func (r *DownloadJobReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)
	start := time.Now()

	job := &ytdlv1alpha1.DownloadJob{}
	if err := r.Get(ctx, req.NamespacedName, job); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
	}

	defer func() {
		downloadJobReconcileDuration.WithLabelValues(job.Namespace).Observe(time.Since(start).Seconds())
		downloadJobPhase.WithLabelValues(job.Name, job.Namespace, job.Status.Phase).Set(1)
	}()

	var result ctrl.Result
	var err error
	switch {
	case !job.DeletionTimestamp.IsZero():
		result, err = r.reconcileDelete(ctx, job)
	case job.Status.Phase == "":
		err = status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhasePending
		})
		result = ctrl.Result{Requeue: true}
	default:
		result, err = r.reconcile(ctx, logger, job)
	}

	downloadJobReconcileTotal.WithLabelValues(job.Namespace, resultLabel(err)).Inc()
	return result, err
}

func (r *DownloadJobReconciler) reconcile(ctx context.Context, logger logr.Logger, job *ytdlv1alpha1.DownloadJob) (ctrl.Result, error) {
	var metadata map[string]any
	if err := json.Unmarshal([]byte(job.Spec.Metadata), &metadata); err != nil {
		return ctrl.Result{}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseFailed
			job.Status.Message = fmt.Sprintf("spec.metadata is not valid JSON: %v", err)
		})
	}

	downloadVideo, downloadThumbnail, err := r.remainingBranches(ctx, job, metadata)
	if err != nil {
		return ctrl.Result{}, err
	}

	if !downloadVideo && !downloadThumbnail {
		if err := r.deletePod(ctx, job); err != nil {
			return ctrl.Result{}, err
		}
		if err := status.RemoveFinalizer(ctx, r.Client, job, ytdlv1alpha1.Finalizer); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseSucceeded
		})
	}

	pod := &corev1.Pod{}
	err = r.Get(ctx, client.ObjectKeyFromObject(job), pod)
	if apierrors.IsNotFound(err) {
		if err := status.AddFinalizer(ctx, r.Client, job, ytdlv1alpha1.Finalizer); err != nil {
			return ctrl.Result{}, err
		}

		built, err := resources.BuildDownloadPod(resources.DownloadPodOptions{
			Job:               job,
			ServiceAccount:    config.ExecutorServiceAccountName(),
			ImagePullPolicy:   config.ExecutorImagePullPolicy(),
			DownloadVideo:     downloadVideo,
			DownloadThumbnail: downloadThumbnail,
		})
		if err != nil {
			return ctrl.Result{}, err
		}
		if err := controllerutil.SetControllerReference(job, built, r.Scheme); err != nil {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}
		if err := r.Create(ctx, built); err != nil && !apierrors.IsAlreadyExists(err) {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}

		logger.Info("created download pod", "downloadjob", job.Name)
		return ctrl.Result{RequeueAfter: startingPollInterval}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseStarting
		})
	}
	if err != nil {
		return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
	}

	if msg, failed := podSchedulingFailure(pod); failed {
		return ctrl.Result{}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseFailed
			job.Status.Message = msg
		})
	}

	switch pod.Status.Phase {
	case corev1.PodPending:
		if job.Status.StartTime != nil {
			return ctrl.Result{RequeueAfter: startingPollInterval}, status.Patch(ctx, r.Client, job, func() {
				job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseDownloading
			})
		}
		return ctrl.Result{RequeueAfter: startingPollInterval}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseStarting
		})

	case corev1.PodRunning:
		return ctrl.Result{RequeueAfter: startingPollInterval}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseDownloading
			ts := pod.CreationTimestamp
			job.Status.StartTime = &ts
		})

	case corev1.PodSucceeded:
		if err := r.deletePod(ctx, job); err != nil {
			return ctrl.Result{}, err
		}
		if err := status.RemoveFinalizer(ctx, r.Client, job, ytdlv1alpha1.Finalizer); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseSucceeded
		})

	default:
		if err := r.deletePod(ctx, job); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{RequeueAfter: startingPollInterval}, status.Patch(ctx, r.Client, job, func() {
			job.Status.Phase = ytdlv1alpha1.DownloadJobPhaseFailed
			job.Status.Message = fmt.Sprintf("worker pod entered phase %s", pod.Status.Phase)
		})
	}
}

// remainingBranches HEADs the configured bucket(s) to determine which of
// the video/thumbnail branches still need to run, per section 4.F.
func (r *DownloadJobReconciler) remainingBranches(ctx context.Context, job *ytdlv1alpha1.DownloadJob, metadata map[string]any) (downloadVideo, downloadThumbnail bool, err error) {
	if job.Spec.Output.Video != nil {
		resolved, err := output.Resolve(ctx, r.Client, job.Namespace, job.Spec.Output.Video.S3, metadata)
		if err != nil {
			return false, false, err
		}
		exists, err := resolved.Exists(ctx)
		if err != nil {
			return false, false, err
		}
		downloadVideo = !exists
	}

	if job.Spec.Output.Thumbnail != nil {
		resolved, err := output.Resolve(ctx, r.Client, job.Namespace, job.Spec.Output.Thumbnail.S3, metadata)
		if err != nil {
			return false, false, err
		}
		exists, err := resolved.Exists(ctx)
		if err != nil {
			return false, false, err
		}
		downloadThumbnail = !exists
	}

	return downloadVideo, downloadThumbnail, nil
}

func (r *DownloadJobReconciler) deletePod(ctx context.Context, job *ytdlv1alpha1.DownloadJob) error {
	pod := &corev1.Pod{}
	err := r.Get(ctx, client.ObjectKeyFromObject(job), pod)
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return ytdlerr.WrapKubeAPI(err)
	}
	if err := r.Delete(ctx, pod); err != nil && !apierrors.IsNotFound(err) {
		return ytdlerr.WrapKubeAPI(err)
	}
	return nil
}

// reconcileDelete deletes the worker pod and releases the finalizer.
func (r *DownloadJobReconciler) reconcileDelete(ctx context.Context, job *ytdlv1alpha1.DownloadJob) (ctrl.Result, error) {
	if err := r.deletePod(ctx, job); err != nil {
		return ctrl.Result{}, err
	}
	if err := status.RemoveFinalizer(ctx, r.Client, job, ytdlv1alpha1.Finalizer); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *DownloadJobReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&ytdlv1alpha1.DownloadJob{}).
		Owns(&corev1.Pod{}).
		WithOptions(ctrlcontroller.Options{MaxConcurrentReconciles: config.Concurrency()}).
		Complete(r)
}
