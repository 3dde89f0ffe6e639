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
	"strings"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlcontroller "sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/config"
	"github.com/thavlik/ytdl-operator/internal/resources"
	"github.com/thavlik/ytdl-operator/internal/status"
	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

// queryPollInterval is how often the Download controller re-checks the
// query pod while it is still starting or running.
const queryPollInterval = 5 * time.Second

// downloadingPollInterval is how often the Download controller re-checks
// child DownloadJob progress.
const downloadingPollInterval = 3 * time.Second

// DownloadReconciler reconciles a Download object.
type DownloadReconciler struct {
	client.Client
	Scheme *runtime.Scheme
}

// +kubebuilder:rbac:groups=ytdl.beebs.dev,resources=downloads,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=ytdl.beebs.dev,resources=downloads/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=ytdl.beebs.dev,resources=downloads/finalizers,verbs=update
// +kubebuilder:rbac:groups=ytdl.beebs.dev,resources=downloadjobs,verbs=get;list;watch;create
// +kubebuilder:rbac:groups=core,resources=pods,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups=core,resources=configmaps,verbs=get;list;watch
// +kubebuilder:rbac:groups=core,resources=secrets,verbs=get

// Reconcile implements section 4.G's state machine.
func (r *DownloadReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)
	start := time.Now()

	download := &ytdlv1alpha1.Download{}
	if err := r.Get(ctx, req.NamespacedName, download); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
	}

	defer func() {
		downloadReconcileDuration.WithLabelValues(download.Namespace).Observe(time.Since(start).Seconds())
		downloadPhase.WithLabelValues(download.Name, download.Namespace, download.Status.Phase).Set(1)
	}()

	if !download.DeletionTimestamp.IsZero() {
		result, err := r.reconcileDelete(ctx, download)
		downloadReconcileTotal.WithLabelValues(download.Namespace, resultLabel(err)).Inc()
		return result, err
	}

	if download.Status.Phase == "" {
		logger.Info("setting initial phase", "download", download.Name)
		err := status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhasePending
		})
		downloadReconcileTotal.WithLabelValues(download.Namespace, resultLabel(err)).Inc()
		return ctrl.Result{Requeue: true}, err
	}

	cm := &corev1.ConfigMap{}
	cmErr := r.Get(ctx, client.ObjectKeyFromObject(download), cm)
	if cmErr != nil && !apierrors.IsNotFound(cmErr) {
		err := ytdlerr.WrapKubeAPI(cmErr)
		downloadReconcileTotal.WithLabelValues(download.Namespace, resultLabel(err)).Inc()
		return ctrl.Result{}, err
	}

	var result ctrl.Result
	var err error
	if apierrors.IsNotFound(cmErr) {
		result, err = r.reconcileQuery(ctx, logger, download)
	} else {
		result, err = r.reconcileJobs(ctx, logger, download, cm)
	}
	downloadReconcileTotal.WithLabelValues(download.Namespace, resultLabel(err)).Inc()
	return result, err
}

// reconcileQuery drives the query pod to completion and is only called
// while the metadata ConfigMap does not yet exist.
func (r *DownloadReconciler) reconcileQuery(ctx context.Context, logger logr.Logger, download *ytdlv1alpha1.Download) (ctrl.Result, error) {
	pod := &corev1.Pod{}
	err := r.Get(ctx, client.ObjectKeyFromObject(download), pod)
	if apierrors.IsNotFound(err) {
		if err := status.AddFinalizer(ctx, r.Client, download, ytdlv1alpha1.Finalizer); err != nil {
			return ctrl.Result{}, err
		}

		built, err := resources.BuildQueryPod(resources.QueryPodOptions{
			Download:        download,
			ServiceAccount:  config.ExecutorServiceAccountName(),
			ImagePullPolicy: config.ExecutorImagePullPolicy(),
		})
		if err != nil {
			return ctrl.Result{}, err
		}
		if err := controllerutil.SetControllerReference(download, built, r.Scheme); err != nil {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}
		if err := r.Create(ctx, built); err != nil && !apierrors.IsAlreadyExists(err) {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}

		logger.Info("created query pod", "download", download.Name)
		return ctrl.Result{RequeueAfter: queryPollInterval}, status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhaseQueryStarting
		})
	}
	if err != nil {
		return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
	}

	if msg, failed := podSchedulingFailure(pod); failed {
		return ctrl.Result{}, status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhaseErrQueryFailed
			download.Status.Message = msg
		})
	}

	switch pod.Status.Phase {
	case corev1.PodPending:
		return ctrl.Result{RequeueAfter: queryPollInterval}, status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhaseQuerying
		})

	case corev1.PodRunning:
		return ctrl.Result{RequeueAfter: queryPollInterval}, status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhaseQuerying
			ts := pod.CreationTimestamp
			download.Status.QueryStartTime = &ts
		})

	case corev1.PodSucceeded:
		// Reached reconcileQuery only because the ConfigMap was absent;
		// a successful query pod must have published it.
		return ctrl.Result{}, status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhaseErrQueryFailed
			download.Status.Message = "query pod succeeded without publishing metadata ConfigMap"
		})

	default:
		if err := r.Delete(ctx, pod); err != nil && !apierrors.IsNotFound(err) {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}
		return ctrl.Result{RequeueAfter: queryPollInterval}, status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhaseErrQueryFailed
			download.Status.Message = fmt.Sprintf("query pod entered phase %s", pod.Status.Phase)
		})
	}
}

// reconcileJobs runs once the metadata ConfigMap exists: it mirrors each
// metadata line into a DownloadJob and tracks aggregate progress.
func (r *DownloadReconciler) reconcileJobs(ctx context.Context, logger logr.Logger, download *ytdlv1alpha1.Download, cm *corev1.ConfigMap) (ctrl.Result, error) {
	pod := &corev1.Pod{}
	if err := r.Get(ctx, client.ObjectKeyFromObject(download), pod); err == nil {
		if err := r.Delete(ctx, pod); err != nil && !apierrors.IsNotFound(err) {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}
	} else if !apierrors.IsNotFound(err) {
		return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
	}

	lines := strings.Split(cm.Data[resources.MetadataConfigMapDataKey], "\n")
	total, succeeded := 0, 0

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		id, ok := entry["id"].(string)
		if !ok {
			continue
		}

		name := fmt.Sprintf("%s-%s", download.Name, id)
		job := &ytdlv1alpha1.DownloadJob{}
		err := r.Get(ctx, client.ObjectKey{Namespace: download.Namespace, Name: name}, job)
		if apierrors.IsNotFound(err) {
			newJob := &ytdlv1alpha1.DownloadJob{
				ObjectMeta: metav1.ObjectMeta{
					Name:      name,
					Namespace: download.Namespace,
					Labels:    resources.Labels(),
				},
				Spec: ytdlv1alpha1.DownloadJobSpec{
					Metadata: line,
					Executor: download.Spec.Executor,
					Extra:    download.Spec.Extra,
					Output:   download.Spec.Output,
				},
			}
			if err := controllerutil.SetControllerReference(download, newJob, r.Scheme); err != nil {
				return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
			}
			if err := r.Create(ctx, newJob); err != nil && !apierrors.IsAlreadyExists(err) {
				return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
			}
			logger.Info("created DownloadJob", "downloadjob", name)
			return ctrl.Result{Requeue: true}, nil
		}
		if err != nil {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}

		total++
		if job.Status.Phase == ytdlv1alpha1.DownloadJobPhaseSucceeded {
			succeeded++
		}
	}

	if succeeded < total {
		return ctrl.Result{RequeueAfter: downloadingPollInterval}, status.Patch(ctx, r.Client, download, func() {
			download.Status.Phase = ytdlv1alpha1.DownloadPhaseDownloading
			download.Status.Succeeded = succeeded
			download.Status.Total = total
		})
	}

	return ctrl.Result{}, status.Patch(ctx, r.Client, download, func() {
		download.Status.Phase = ytdlv1alpha1.DownloadPhaseSucceeded
		download.Status.Succeeded = succeeded
		download.Status.Total = total
	})
}

// reconcileDelete deletes the (at most one) query pod and releases the
// finalizer. Owned DownloadJobs are reclaimed by Kubernetes' garbage
// collector via their owner reference.
func (r *DownloadReconciler) reconcileDelete(ctx context.Context, download *ytdlv1alpha1.Download) (ctrl.Result, error) {
	pod := &corev1.Pod{}
	err := r.Get(ctx, client.ObjectKeyFromObject(download), pod)
	if err == nil {
		if err := r.Delete(ctx, pod); err != nil && !apierrors.IsNotFound(err) {
			return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
		}
	} else if !apierrors.IsNotFound(err) {
		return ctrl.Result{}, ytdlerr.WrapKubeAPI(err)
	}

	if err := status.RemoveFinalizer(ctx, r.Client, download, ytdlv1alpha1.Finalizer); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *DownloadReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&ytdlv1alpha1.Download{}).
		Owns(&corev1.Pod{}).
		Owns(&ytdlv1alpha1.DownloadJob{}).
		WithOptions(ctrlcontroller.Options{MaxConcurrentReconciles: config.Concurrency()}).
		Complete(r)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
