/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OTLP tracing for the
// scheduler.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvocationsTotal counts reconcile invocations by result
	// (action, noop, error).
	InvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opswindow_invocations_total",
		Help: "Reconcile invocations by result",
	}, []string{"result"})

	// ActionsTotal counts issued control-plane actions.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opswindow_actions_total",
		Help: "Start/stop actions issued to the control plane",
	}, []string{"action"})

	// DesiredStateGauge is 1 while the policy mandates running, 0 otherwise.
	DesiredStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opswindow_desired_running",
		Help: "Whether the availability policy currently mandates a running instance",
	})

	controlPlaneRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opswindow_controlplane_requests_total",
		Help: "Control plane API calls by operation and result",
	}, []string{"op", "result"})

	controlPlaneRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opswindow_controlplane_request_seconds",
		Help:    "Control plane API call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// HTTPRequestsTotal tracks the status endpoint traffic.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opswindow_http_requests_total",
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	httpRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opswindow_http_request_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

// ObserveControlPlaneRequest records one control plane call.
func ObserveControlPlaneRequest(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	controlPlaneRequestsTotal.WithLabelValues(op, result).Inc()
	controlPlaneRequestSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetDesiredRunning publishes the evaluator's current verdict.
func SetDesiredRunning(running bool) {
	if running {
		DesiredStateGauge.Set(1)
	} else {
		DesiredStateGauge.Set(0)
	}
}
