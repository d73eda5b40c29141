/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package controlplane talks to the compute control plane that owns the
// instance's power state. The instance state is queried fresh on every call;
// nothing here is cached.
package controlplane

import (
	"context"
	"errors"
	"fmt"
)

// InstanceState mirrors the control plane's reported lifecycle state.
type InstanceState string

const (
	StatePending      InstanceState = "pending"
	StateRunning      InstanceState = "running"
	StateShuttingDown InstanceState = "shutting-down"
	StateTerminated   InstanceState = "terminated"
	StateStopping     InstanceState = "stopping"
	StateStopped      InstanceState = "stopped"
	StateUnknown      InstanceState = "unknown"
)

// ControlPlane is the minimal surface the reconciler needs. All calls must
// honor the context deadline.
type ControlPlane interface {
	Describe(ctx context.Context, instanceID string) (InstanceState, error)
	StartInstance(ctx context.Context, instanceID string) error
	StopInstance(ctx context.Context, instanceID string) error
}

// ErrIncorrectState is returned when the control plane rejects an action
// because the instance is already in or moving toward the requested state.
// Callers treat it as a benign no-op, never as a failure.
var ErrIncorrectState = errors.New("instance already in requested state")

// Error wraps a control-plane failure with its retry classification.
type Error struct {
	Op         string
	InstanceID string
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("control plane %s %s (%s): %v", e.Op, e.InstanceID, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a control-plane error worth retrying
// within the same invocation.
func IsTransient(err error) bool {
	var cpErr *Error
	return errors.As(err, &cpErr) && cpErr.Transient
}
