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

package main

import (
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/config"
	"github.com/thavlik/ytdl-operator/internal/controller"
)

var (
	metricsBindAddress     string
	healthProbeBindAddress string
	leaderElect            bool
)

func main() {
	root := &cobra.Command{
		Use:   "ytdl-operator",
		Short: "reconciles Download and DownloadJob resources",
	}
	root.PersistentFlags().StringVar(&metricsBindAddress, "metrics-bind-address", envOr("METRICS_BIND_ADDRESS", ":8080"), "address the metrics endpoint binds to")
	root.PersistentFlags().StringVar(&healthProbeBindAddress, "health-probe-bind-address", envOr("HEALTH_PROBE_BIND_ADDRESS", ":8081"), "address the health probe endpoint binds to")
	root.PersistentFlags().BoolVar(&leaderElect, "leader-elect", envOr("LEADER_ELECT", "") == "true", "enable leader election for controller manager")

	root.AddCommand(&cobra.Command{
		Use:   "manage-downloads",
		Short: "runs the Download controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManager(func(mgr ctrl.Manager) error {
				return (&controller.DownloadReconciler{
					Client: mgr.GetClient(),
					Scheme: mgr.GetScheme(),
				}).SetupWithManager(mgr)
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "manage-executors",
		Short: "runs the DownloadJob controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManager(func(mgr ctrl.Manager) error {
				return (&controller.DownloadJobReconciler{
					Client: mgr.GetClient(),
					Scheme: mgr.GetScheme(),
				}).SetupWithManager(mgr)
			})
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runManager(setup func(ctrl.Manager) error) error {
	zapLog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer zapLog.Sync() //nolint:errcheck

	log := zapr.NewLogger(zapLog)
	ctrl.SetLogger(log)

	scheme := clientgoscheme.Scheme
	if err := ytdlv1alpha1.AddToScheme(scheme); err != nil {
		return fmt.Errorf("add scheme: %w", err)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: metricsBindAddress},
		HealthProbeBindAddress: healthProbeBindAddress,
		LeaderElection:         leaderElect,
		LeaderElectionID:       config.ManagerName() + "-leader",
	})
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	if err := setup(mgr); err != nil {
		return fmt.Errorf("setup controller: %w", err)
	}

	log.Info("starting manager", "concurrency", config.Concurrency())
	return mgr.Start(ctrl.SetupSignalHandler())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
