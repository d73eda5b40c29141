/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package reconcile compares the policy's desired power state with the
// control plane's observed state and issues at most one corrective action per
// invocation. Convergence happens across successive trigger firings, never by
// polling inside a single invocation.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opswindow/opswindow/internal/controlplane"
	"github.com/opswindow/opswindow/internal/policy"
	"github.com/opswindow/opswindow/internal/telemetry"
)

// Action is the corrective step chosen for one invocation.
type Action string

const (
	ActionNone  Action = "none"
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// Outcome is the result of one invocation. It has no identity beyond the
// invocation that produced it.
type Outcome struct {
	InvocationID string                     `json:"invocation_id"`
	InstanceID   string                     `json:"instance_id"`
	Desired      policy.DesiredState        `json:"desired"`
	Observed     controlplane.InstanceState `json:"observed"`
	Action       Action                     `json:"action"`
	Reason       string                     `json:"reason"`
	DryRun       bool                       `json:"dry_run,omitempty"`
	CheckedAt    time.Time                  `json:"checked_at"`
}

// RetryConfig bounds the in-invocation retry of transient control plane
// failures. The whole decision is never re-run; only the failing call is.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetry retries a handful of times within a trigger period.
var DefaultRetry = RetryConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Reconciler drives one instance toward the desired state.
type Reconciler struct {
	cp     controlplane.ControlPlane
	retry  RetryConfig
	logger zerolog.Logger
}

// New constructs a reconciler over the given control plane.
func New(cp controlplane.ControlPlane, retry RetryConfig, logger zerolog.Logger) *Reconciler {
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetry
	}
	return &Reconciler{
		cp:     cp,
		retry:  retry,
		logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// Decide is the pure state table: given desired and observed it picks the
// action and the reason reported for it. Transitional states are left alone
// for this cycle; the next trigger corrects them if the platform stalls.
func Decide(desired policy.DesiredState, observed controlplane.InstanceState) (Action, string) {
	switch observed {
	case controlplane.StateUnknown, controlplane.StateTerminated, controlplane.StateShuttingDown:
		return ActionNone, "instance unavailable"
	}

	if desired == policy.DesiredRunning {
		switch observed {
		case controlplane.StateRunning, controlplane.StatePending:
			return ActionNone, "already converging to running"
		case controlplane.StateStopping:
			return ActionNone, "stop in progress, deferring start to next cycle"
		case controlplane.StateStopped:
			return ActionStart, "inside availability window, instance stopped"
		}
	} else {
		switch observed {
		case controlplane.StateStopped, controlplane.StateStopping:
			return ActionNone, "already converging to stopped"
		case controlplane.StatePending:
			return ActionNone, "start in progress, deferring stop to next cycle"
		case controlplane.StateRunning:
			return ActionStop, "outside availability window, instance running"
		}
	}
	return ActionNone, "no rule for observed state " + string(observed)
}

// Reconcile runs one invocation: fetch the observed state fresh, decide, and
// issue at most one action. With dryRun set the action is reported but not
// issued.
func (r *Reconciler) Reconcile(ctx context.Context, instanceID string, desired policy.DesiredState, dryRun bool) (Outcome, error) {
	outcome := Outcome{
		InvocationID: uuid.NewString(),
		InstanceID:   instanceID,
		Desired:      desired,
		DryRun:       dryRun,
		CheckedAt:    time.Now().UTC(),
	}
	logger := r.logger.With().
		Str("invocation_id", outcome.InvocationID).
		Str("instance_id", instanceID).
		Str("desired", string(desired)).
		Logger()

	observed, err := r.describe(ctx, instanceID)
	if err != nil {
		telemetry.InvocationsTotal.WithLabelValues("error").Inc()
		return outcome, err
	}
	outcome.Observed = observed

	outcome.Action, outcome.Reason = Decide(desired, observed)
	if outcome.Action == ActionNone || dryRun {
		telemetry.InvocationsTotal.WithLabelValues("noop").Inc()
		logger.Info().
			Str("observed", string(observed)).
			Str("action", string(outcome.Action)).
			Bool("dry_run", dryRun).
			Str("reason", outcome.Reason).
			Msg("no action issued")
		return outcome, nil
	}

	if err := r.act(ctx, instanceID, outcome.Action); err != nil {
		// The control plane refusing because the instance is already in or
		// entering the requested state is convergence, not failure.
		if errors.Is(err, controlplane.ErrIncorrectState) {
			outcome.Action = ActionNone
			outcome.Reason = "control plane reported instance already in requested state"
			telemetry.InvocationsTotal.WithLabelValues("noop").Inc()
			logger.Info().Str("observed", string(observed)).Msg(outcome.Reason)
			return outcome, nil
		}
		telemetry.InvocationsTotal.WithLabelValues("error").Inc()
		return outcome, err
	}

	telemetry.InvocationsTotal.WithLabelValues("action").Inc()
	telemetry.ActionsTotal.WithLabelValues(string(outcome.Action)).Inc()
	logger.Info().
		Str("observed", string(observed)).
		Str("action", string(outcome.Action)).
		Str("reason", outcome.Reason).
		Msg("action issued")
	return outcome, nil
}

func (r *Reconciler) describe(ctx context.Context, instanceID string) (controlplane.InstanceState, error) {
	var observed controlplane.InstanceState
	err := r.withRetry(ctx, func() error {
		var err error
		observed, err = r.cp.Describe(ctx, instanceID)
		return err
	})
	return observed, err
}

func (r *Reconciler) act(ctx context.Context, instanceID string, action Action) error {
	return r.withRetry(ctx, func() error {
		if action == ActionStart {
			return r.cp.StartInstance(ctx, instanceID)
		}
		return r.cp.StopInstance(ctx, instanceID)
	})
}

// withRetry retries transient control plane failures with exponential backoff
// until the attempt budget or the invocation context runs out. Permanent
// failures abort immediately.
func (r *Reconciler) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.retry.InitialInterval
	bo.MaxInterval = r.retry.MaxInterval

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !controlplane.IsTransient(err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn().Err(err).Msg("transient control plane failure, retrying")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, r.retry.MaxRetries), ctx))
}
