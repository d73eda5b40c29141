/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package invoker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opswindow/opswindow/internal/config"
	"github.com/opswindow/opswindow/internal/controlplane"
	"github.com/opswindow/opswindow/internal/history"
	"github.com/opswindow/opswindow/internal/policy"
	"github.com/opswindow/opswindow/internal/reconcile"
)

type staticControlPlane struct {
	state      controlplane.InstanceState
	startCalls int
	stopCalls  int
}

func (s *staticControlPlane) Describe(ctx context.Context, instanceID string) (controlplane.InstanceState, error) {
	return s.state, nil
}

func (s *staticControlPlane) StartInstance(ctx context.Context, instanceID string) error {
	s.startCalls++
	return nil
}

func (s *staticControlPlane) StopInstance(ctx context.Context, instanceID string) error {
	s.stopCalls++
	return nil
}

func testInvoker(t *testing.T, cp controlplane.ControlPlane, ring *history.Ring) *Invoker {
	t.Helper()
	days, err := policy.ParseDays("Mon-Fri")
	if err != nil {
		t.Fatalf("parse days: %v", err)
	}
	p, err := policy.Single(days, policy.TimeOfDay{Hour: 9}, policy.TimeOfDay{Hour: 18}, time.UTC)
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	cfg := &config.Config{
		InstanceID: "i-0123456789abcdef0",
		Policy:     p,
	}
	rec := reconcile.New(cp, reconcile.RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}, zerolog.Nop())
	return New(cfg, rec, ring, nil, zerolog.Nop())
}

// The evaluator is the single source of truth for direction: the same Invoke
// call starts inside the window and stops outside it.
func TestInvokeDerivesDirectionFromPolicy(t *testing.T) {
	cp := &staticControlPlane{state: controlplane.StateStopped}
	inv := testInvoker(t, cp, nil)

	// Monday 10:00 UTC: inside the window, stopped instance gets started.
	outcome, err := inv.Invoke(context.Background(), time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if outcome.Desired != policy.DesiredRunning || outcome.Action != reconcile.ActionStart {
		t.Errorf("inside window: desired=%s action=%s", outcome.Desired, outcome.Action)
	}

	// Saturday 10:00 UTC: outside the window, running instance gets stopped.
	cp.state = controlplane.StateRunning
	outcome, err = inv.Invoke(context.Background(), time.Date(2026, 6, 6, 10, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if outcome.Desired != policy.DesiredStopped || outcome.Action != reconcile.ActionStop {
		t.Errorf("outside window: desired=%s action=%s", outcome.Desired, outcome.Action)
	}

	if cp.startCalls != 1 || cp.stopCalls != 1 {
		t.Errorf("calls: start=%d stop=%d, want 1 each", cp.startCalls, cp.stopCalls)
	}
}

func TestInvokeRecordsHistory(t *testing.T) {
	ring := history.New(4)
	inv := testInvoker(t, &staticControlPlane{state: controlplane.StateRunning}, ring)

	if _, err := inv.Invoke(context.Background(), time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), false); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	last, ok := ring.Last()
	if !ok {
		t.Fatal("expected outcome in history")
	}
	if last.InstanceID != "i-0123456789abcdef0" {
		t.Errorf("recorded instance = %s", last.InstanceID)
	}
}
