/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package invoker adapts one trigger firing into one reconcile call and fans
// the outcome out to logs, history, and the audit trail. It holds no decision
// logic of its own.
package invoker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/opswindow/opswindow/internal/audit"
	"github.com/opswindow/opswindow/internal/config"
	"github.com/opswindow/opswindow/internal/history"
	"github.com/opswindow/opswindow/internal/policy"
	"github.com/opswindow/opswindow/internal/reconcile"
	"github.com/opswindow/opswindow/internal/telemetry"
)

// Invoker runs complete invocations: evaluate, reconcile, report.
type Invoker struct {
	cfg        *config.Config
	reconciler *reconcile.Reconciler
	ring       *history.Ring
	auditStore *audit.Store
	logger     zerolog.Logger
}

// New wires the invocation path. ring and auditStore may be nil for one-shot
// use.
func New(cfg *config.Config, rec *reconcile.Reconciler, ring *history.Ring, auditStore *audit.Store, logger zerolog.Logger) *Invoker {
	return &Invoker{
		cfg:        cfg,
		reconciler: rec,
		ring:       ring,
		auditStore: auditStore,
		logger:     logger.With().Str("component", "invoker").Logger(),
	}
}

// Invoke evaluates the policy at now and runs one reconcile invocation.
// Failures are returned for the caller's exit signal and recorded either way.
func (i *Invoker) Invoke(ctx context.Context, now time.Time, dryRun bool) (reconcile.Outcome, error) {
	desired := i.cfg.Policy.DesiredState(now)
	telemetry.SetDesiredRunning(desired == policy.DesiredRunning)

	outcome, err := i.reconciler.Reconcile(ctx, i.cfg.InstanceID, desired, dryRun)
	if err != nil {
		i.logger.Error().Err(err).
			Str("desired", string(desired)).
			Msg("invocation failed")
	}

	if i.ring != nil {
		i.ring.Add(outcome)
	}
	i.auditStore.RecordOutcome(ctx, outcome, err)

	return outcome, err
}

// InvokeNow is the trigger-facing entrypoint: the firing carries no payload,
// "now" is sampled fresh.
func (i *Invoker) InvokeNow(ctx context.Context) {
	_, _ = i.Invoke(ctx, time.Now(), false)
}
