package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opswindow/opswindow/internal/invoker"
)

var (
	reconcileDryRun bool
	reconcileAt     string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a single reconcile invocation and exit",
	Long:  "Evaluate the availability policy, compare it with the live instance state, and issue at most one start/stop action. Intended for one-shot trigger environments.",
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "report the action that would be taken without issuing it")
	reconcileCmd.Flags().StringVar(&reconcileAt, "at", "", "evaluate the policy at this RFC3339 instant instead of now")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	now := time.Now()
	if reconcileAt != "" {
		parsed, err := time.Parse(time.RFC3339, reconcileAt)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		now = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.InvocationTimeout)
	defer cancel()

	rec, err := newReconciler(ctx)
	if err != nil {
		return err
	}

	inv := invoker.New(cfg, rec, nil, nil, logger)
	outcome, err := inv.Invoke(ctx, now, reconcileDryRun)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}
