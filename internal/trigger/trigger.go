/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package trigger turns a schedule into invocation firings. The decision
// engine is deliberately trigger-schedule-agnostic: the same invocation runs
// whether a firing came from an interval sweep or a window-boundary cron job,
// so at-least-once or overlapping delivery is safe.
package trigger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/opswindow/opswindow/internal/config"
	"github.com/opswindow/opswindow/internal/policy"
)

// Invoker runs one reconcile invocation. The trigger never inspects results;
// failures are the invocation shell's to log and the next firing's to retry.
type Invoker func(ctx context.Context)

// Service schedules invocations with cron, in the policy's time zone.
type Service struct {
	c       *cron.Cron
	specs   []string
	invoke  Invoker
	timeout time.Duration
	logger  zerolog.Logger
}

// New builds the trigger service for the configured mode.
//
// Interval mode registers a single "@every" job. Boundary mode registers one
// cron job per window edge plus a slower interval sweep so a firing missed
// during downtime still converges.
func New(cfg *config.Config, invoke Invoker, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		c:       cron.New(cron.WithLocation(cfg.Policy.Location)),
		invoke:  invoke,
		timeout: cfg.InvocationTimeout,
		logger:  logger.With().Str("component", "trigger").Logger(),
	}

	var specs []string
	switch cfg.TriggerMode {
	case config.TriggerBoundary:
		specs = BoundarySpecs(cfg.Policy)
		specs = append(specs, fmt.Sprintf("@every %s", sweepInterval(cfg.Interval)))
	default:
		specs = []string{fmt.Sprintf("@every %s", cfg.Interval)}
	}

	for _, spec := range specs {
		if _, err := s.c.AddFunc(spec, s.fire); err != nil {
			return nil, fmt.Errorf("register trigger %q: %w", spec, err)
		}
	}
	s.specs = specs
	return s, nil
}

// Specs returns the registered schedule expressions.
func (s *Service) Specs() []string { return s.specs }

// fire runs one invocation with the bounded per-invocation budget. When the
// budget is exceeded the in-flight control plane call is abandoned; the next
// firing re-samples everything fresh.
func (s *Service) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.invoke(ctx)
}

// Run fires one immediate invocation so the instance converges promptly after
// startup, then runs the schedule until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info().Strs("specs", s.specs).Msg("trigger schedule started")

	s.fire()
	s.c.Start()
	<-ctx.Done()
	stopCtx := s.c.Stop()
	// Let an in-flight invocation finish before returning.
	<-stopCtx.Done()
	s.logger.Info().Msg("trigger schedule stopped")
}

// BoundarySpecs derives one 5-field cron expression per window edge. The
// invocation re-evaluates the policy on every firing, so which edge fired
// carries no meaning about direction.
func BoundarySpecs(p *policy.Policy) []string {
	var specs []string
	for _, w := range p.Windows {
		days := dowField(w)
		specs = append(specs,
			fmt.Sprintf("%d %d * * %s", w.Start.Minute, w.Start.Hour, days),
			fmt.Sprintf("%d %d * * %s", w.End.Minute, w.End.Hour, days),
		)
	}
	return specs
}

// sweepInterval slows the configured cadence down for the boundary-mode
// safety sweep.
func sweepInterval(interval time.Duration) time.Duration {
	sweep := interval * 5
	if sweep < 10*time.Minute {
		sweep = 10 * time.Minute
	}
	return sweep
}

func dowField(w policy.Window) string {
	parts := make([]string, 0, len(w.Days))
	for _, d := range w.SortedDays() {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}
