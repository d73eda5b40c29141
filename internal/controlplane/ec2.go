/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package controlplane

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/opswindow/opswindow/internal/telemetry"
)

// EC2Options carries explicit client construction inputs. Region and
// credentials come from configuration, not from lookups buried in call sites;
// when the static keys are empty the SDK's default provider chain is used.
type EC2Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string // non-empty for API-compatible test endpoints
	CallTimeout     time.Duration
}

// EC2 implements ControlPlane against the EC2 API.
type EC2 struct {
	client      *ec2.Client
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewEC2 builds the EC2 control plane client once at startup.
func NewEC2(ctx context.Context, opts EC2Options, logger zerolog.Logger) (*EC2, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	return &EC2{
		client:      client,
		callTimeout: callTimeout,
		logger:      logger.With().Str("component", "controlplane").Logger(),
	}, nil
}

// Describe fetches the live instance state. A missing instance maps to
// StateUnknown with no error so the caller can report unavailability instead
// of failing the invocation.
func (c *EC2) Describe(ctx context.Context, instanceID string) (InstanceState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	out, err := c.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	telemetry.ObserveControlPlaneRequest("describe", start, err)
	if err != nil {
		if isNotFound(err) {
			c.logger.Warn().Str("instance_id", instanceID).Msg("instance not found")
			return StateUnknown, nil
		}
		return StateUnknown, classify("describe", instanceID, err)
	}

	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			if aws.ToString(inst.InstanceId) != instanceID {
				continue
			}
			return mapState(inst.State), nil
		}
	}
	return StateUnknown, nil
}

// StartInstance issues an idempotent start.
func (c *EC2) StartInstance(ctx context.Context, instanceID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	_, err := c.client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	telemetry.ObserveControlPlaneRequest("start", start, err)
	if err != nil {
		return classify("start", instanceID, err)
	}
	c.logger.Info().Str("instance_id", instanceID).Msg("start issued")
	return nil
}

// StopInstance issues an idempotent stop.
func (c *EC2) StopInstance(ctx context.Context, instanceID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	_, err := c.client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	telemetry.ObserveControlPlaneRequest("stop", start, err)
	if err != nil {
		return classify("stop", instanceID, err)
	}
	c.logger.Info().Str("instance_id", instanceID).Msg("stop issued")
	return nil
}

func mapState(state *ec2types.InstanceState) InstanceState {
	if state == nil {
		return StateUnknown
	}
	switch state.Name {
	case ec2types.InstanceStateNamePending:
		return StatePending
	case ec2types.InstanceStateNameRunning:
		return StateRunning
	case ec2types.InstanceStateNameShuttingDown:
		return StateShuttingDown
	case ec2types.InstanceStateNameTerminated:
		return StateTerminated
	case ec2types.InstanceStateNameStopping:
		return StateStopping
	case ec2types.InstanceStateNameStopped:
		return StateStopped
	default:
		return StateUnknown
	}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidInstanceID.NotFound"
}

// transientCodes are EC2 error codes that are worth retrying inside one
// invocation. Everything else either fails fast or is handled specially.
var transientCodes = map[string]bool{
	"RequestLimitExceeded": true,
	"Throttling":           true,
	"ThrottlingException":  true,
	"RequestTimeout":       true,
	"ServiceUnavailable":   true,
	"InternalError":        true,
	"Unavailable":          true,
}

func classify(op, instanceID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Op: op, InstanceID: instanceID, Transient: true, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "IncorrectInstanceState" {
			return fmt.Errorf("%s %s: %w", op, instanceID, ErrIncorrectState)
		}
		if transientCodes[code] || apiErr.ErrorFault() == smithy.FaultServer {
			return &Error{Op: op, InstanceID: instanceID, Transient: true, Err: err}
		}
		return &Error{Op: op, InstanceID: instanceID, Transient: false, Err: err}
	}

	// Network level failures (dial, reset) are transient from our point of
	// view: the next attempt or the next trigger gets a fresh connection.
	return &Error{Op: op, InstanceID: instanceID, Transient: true, Err: err}
}
