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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	downloadReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytdl_download_reconcile_total",
			Help: "Total number of Download reconciliations",
		},
		[]string{"namespace", "result"},
	)

	downloadReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytdl_download_reconcile_duration_seconds",
			Help:    "Duration of Download reconciliation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	downloadPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ytdl_download_phase",
			Help: "Current phase of a Download (1 = active for given phase)",
		},
		[]string{"download", "namespace", "phase"},
	)

	downloadJobReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytdl_downloadjob_reconcile_total",
			Help: "Total number of DownloadJob reconciliations",
		},
		[]string{"namespace", "result"},
	)

	downloadJobReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytdl_downloadjob_reconcile_duration_seconds",
			Help:    "Duration of DownloadJob reconciliation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	downloadJobPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ytdl_downloadjob_phase",
			Help: "Current phase of a DownloadJob (1 = active for given phase)",
		},
		[]string{"downloadjob", "namespace", "phase"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		downloadReconcileTotal,
		downloadReconcileDuration,
		downloadPhase,
		downloadJobReconcileTotal,
		downloadJobReconcileDuration,
		downloadJobPhase,
	)
}
