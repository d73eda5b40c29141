/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package controlplane

import (
	"context"
	"errors"
	"strings"
	"testing"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

func TestMapState(t *testing.T) {
	tests := []struct {
		name ec2types.InstanceStateName
		want InstanceState
	}{
		{ec2types.InstanceStateNamePending, StatePending},
		{ec2types.InstanceStateNameRunning, StateRunning},
		{ec2types.InstanceStateNameShuttingDown, StateShuttingDown},
		{ec2types.InstanceStateNameTerminated, StateTerminated},
		{ec2types.InstanceStateNameStopping, StateStopping},
		{ec2types.InstanceStateNameStopped, StateStopped},
		{ec2types.InstanceStateName("weird"), StateUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			got := mapState(&ec2types.InstanceState{Name: tt.name})
			if got != tt.want {
				t.Errorf("mapState(%s) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}

	if got := mapState(nil); got != StateUnknown {
		t.Errorf("mapState(nil) = %s, want unknown", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"throttling", &smithy.GenericAPIError{Code: "RequestLimitExceeded", Message: "slow down"}, true},
		{"service unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailable", Message: "try later"}, true},
		{"server fault", &smithy.GenericAPIError{Code: "SomethingInternal", Message: "oops", Fault: smithy.FaultServer}, true},
		{"auth failure", &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "nope", Fault: smithy.FaultClient}, false},
		{"bad parameter", &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "bad", Fault: smithy.FaultClient}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"network", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("describe", "i-abc123", tt.err)
			var cpErr *Error
			if !errors.As(err, &cpErr) {
				t.Fatalf("classify returned %T, want *Error", err)
			}
			if cpErr.Transient != tt.wantTransient {
				t.Errorf("transient = %v, want %v", cpErr.Transient, tt.wantTransient)
			}
			if IsTransient(err) != tt.wantTransient {
				t.Errorf("IsTransient disagrees with classification")
			}
		})
	}
}

func TestClassifyIncorrectState(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "IncorrectInstanceState", Message: "already stopped"}
	err := classify("stop", "i-abc123", apiErr)
	if !errors.Is(err, ErrIncorrectState) {
		t.Fatalf("classify(IncorrectInstanceState) = %v, want ErrIncorrectState", err)
	}
	if IsTransient(err) {
		t.Error("incorrect state must not be treated as transient")
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "no such instance"}) {
		t.Error("expected not-found detection")
	}
	if isNotFound(&smithy.GenericAPIError{Code: "Throttling"}) {
		t.Error("throttling is not not-found")
	}
	if isNotFound(errors.New("plain")) {
		t.Error("plain error is not not-found")
	}
}

func TestErrorMessageCarriesClassification(t *testing.T) {
	err := &Error{Op: "start", InstanceID: "i-abc123", Transient: true, Err: errors.New("timeout")}
	msg := err.Error()
	for _, want := range []string{"start", "i-abc123", "transient"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}
