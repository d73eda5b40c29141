package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opswindow/opswindow/internal/controlplane"
	"github.com/opswindow/opswindow/internal/reconcile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show desired vs observed state without acting",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.InvocationTimeout)
	defer cancel()

	cp, err := controlplane.NewEC2(ctx, controlplane.EC2Options{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		Endpoint:        cfg.AWSEndpoint,
		CallTimeout:     cfg.CallTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize control plane client: %w", err)
	}

	now := time.Now()
	desired := cfg.Policy.DesiredState(now)
	observed, err := cp.Describe(ctx, cfg.InstanceID)
	if err != nil {
		return err
	}

	action, reason := reconcile.Decide(desired, observed)

	fmt.Printf("instance:       %s\n", cfg.InstanceID)
	fmt.Printf("desired state:  %s\n", desired)
	fmt.Printf("observed state: %s\n", observed)
	fmt.Printf("pending action: %s (%s)\n", action, reason)
	if t, ok := cfg.Policy.NextTransition(now); ok {
		fmt.Printf("next change:    %s at %s\n", t.To, t.At.Format(time.RFC1123))
	}
	return nil
}
