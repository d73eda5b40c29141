/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package policy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DesiredState is the power state the policy mandates for an instant.
type DesiredState string

const (
	DesiredRunning DesiredState = "running"
	DesiredStopped DesiredState = "stopped"
)

// Policy is a set of weekly windows evaluated in one time zone. Windows must
// not overlap; overlap is rejected by Validate rather than ranked.
type Policy struct {
	Location *time.Location
	Windows  []Window
}

// Validate checks every window plus the cross-window overlap rule.
func (p *Policy) Validate() error {
	if p.Location == nil {
		return fmt.Errorf("policy: time zone not set")
	}
	if len(p.Windows) == 0 {
		return fmt.Errorf("policy: no windows configured")
	}
	for _, w := range p.Windows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	for i := 0; i < len(p.Windows); i++ {
		for j := i + 1; j < len(p.Windows); j++ {
			if day, ok := windowsOverlap(p.Windows[i], p.Windows[j]); ok {
				return fmt.Errorf("policy: windows %q and %q overlap on %s", p.Windows[i], p.Windows[j], day)
			}
		}
	}
	return nil
}

// windowsOverlap reports the first weekday on which two windows have
// intersecting intervals. Adjacent intervals (one ends where the other
// starts) do not overlap because End is exclusive.
func windowsOverlap(a, b Window) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !a.Days[d] || !b.Days[d] {
			continue
		}
		if a.Start.Minutes() < b.End.Minutes() && b.Start.Minutes() < a.End.Minutes() {
			return d, true
		}
	}
	return 0, false
}

// DesiredState converts now into the policy's zone and reports whether any
// window covers it. Pure: no I/O and no error path for a valid policy.
func (p *Policy) DesiredState(now time.Time) DesiredState {
	local := now.In(p.Location)
	day := local.Weekday()
	minute := local.Hour()*60 + local.Minute()
	for _, w := range p.Windows {
		if w.Contains(day, minute) {
			return DesiredRunning
		}
	}
	return DesiredStopped
}

// Transition is an upcoming desired-state change.
type Transition struct {
	At time.Time
	To DesiredState
}

// NextTransition returns the earliest window boundary after now and the state
// that takes effect there. Boundaries are materialized in the policy's zone so
// daylight saving shifts land on the configured wall-clock time. Returns false
// only for a policy with no windows.
func (p *Policy) NextTransition(now time.Time) (Transition, bool) {
	local := now.In(p.Location)
	var best time.Time
	// Eight days covers a boundary exactly one week out.
	for offset := 0; offset <= 8; offset++ {
		day := local.AddDate(0, 0, offset)
		for _, w := range p.Windows {
			if !w.Days[day.Weekday()] {
				continue
			}
			for _, t := range []TimeOfDay{w.Start, w.End} {
				at := time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, p.Location)
				if !at.After(now) {
					continue
				}
				if best.IsZero() || at.Before(best) {
					best = at
				}
			}
		}
		if !best.IsZero() && offset > 0 {
			break
		}
	}
	if best.IsZero() {
		return Transition{}, false
	}
	return Transition{At: best, To: p.DesiredState(best)}, true
}

// File schema for YAML policy definitions.
type fileSpec struct {
	Timezone string `yaml:"timezone"`
	Windows  []struct {
		Days  []string `yaml:"days"`
		Start string   `yaml:"start"`
		End   string   `yaml:"end"`
	} `yaml:"windows"`
}

// LoadFile reads a multi-window policy from a YAML file.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	loc, err := time.LoadLocation(spec.Timezone)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: invalid timezone %q: %w", path, spec.Timezone, err)
	}
	p := &Policy{Location: loc}
	for _, ws := range spec.Windows {
		w := Window{Days: make(map[time.Weekday]bool)}
		for _, name := range ws.Days {
			d, err := ParseWeekday(name)
			if err != nil {
				return nil, fmt.Errorf("policy file %s: %w", path, err)
			}
			w.Days[d] = true
		}
		if w.Start, err = ParseTimeOfDay(ws.Start); err != nil {
			return nil, fmt.Errorf("policy file %s: %w", path, err)
		}
		if w.End, err = ParseTimeOfDay(ws.End); err != nil {
			return nil, fmt.Errorf("policy file %s: %w", path, err)
		}
		p.Windows = append(p.Windows, w)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Single builds a one-window policy from parsed parts, used by the env-driven
// configuration path.
func Single(days map[time.Weekday]bool, start, end TimeOfDay, loc *time.Location) (*Policy, error) {
	p := &Policy{
		Location: loc,
		Windows:  []Window{{Days: days, Start: start, End: end}},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
