/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package policy evaluates recurring weekly availability windows into the
// power state an instance should be in at a given instant.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Window is one recurring weekly interval during which the instance should run.
// The interval is half-open: an instant exactly at Start is inside, an instant
// exactly at End is outside.
type Window struct {
	Days  map[time.Weekday]bool
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether the local weekday/time falls inside the window.
func (w Window) Contains(day time.Weekday, minuteOfDay int) bool {
	return w.Days[day] && minuteOfDay >= w.Start.Minutes() && minuteOfDay < w.End.Minutes()
}

// Validate checks the window invariants: at least one day, Start before End.
// Overnight wraparound is not supported.
func (w Window) Validate() error {
	if len(w.Days) == 0 {
		return fmt.Errorf("window %s-%s: no days configured", w.Start, w.End)
	}
	if w.Start.Minutes() >= w.End.Minutes() {
		return fmt.Errorf("window %s-%s: start must be before end (overnight windows are not supported)", w.Start, w.End)
	}
	return nil
}

func (w Window) String() string {
	days := make([]string, 0, len(w.Days))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Days[d] {
			days = append(days, d.String()[:3])
		}
	}
	return fmt.Sprintf("%s %s-%s", strings.Join(days, ","), w.Start, w.End)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short ("Mon") or full ("Monday") day names, case
// insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// ParseDays parses a day list such as "Mon,Tue,Fri" or a range such as
// "Mon-Fri". Ranges run forward through the week starting from the first day.
func ParseDays(s string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if from, to, ok := strings.Cut(part, "-"); ok {
			first, err := ParseWeekday(from)
			if err != nil {
				return nil, err
			}
			last, err := ParseWeekday(to)
			if err != nil {
				return nil, err
			}
			for d := first; ; d = (d + 1) % 7 {
				days[d] = true
				if d == last {
					break
				}
			}
			continue
		}
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		days[d] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no weekdays in %q", s)
	}
	return days, nil
}

// SortedDays returns the window's days in Sunday-first order, used for
// deterministic cron spec derivation and display.
func (w Window) SortedDays() []time.Weekday {
	out := make([]time.Weekday, 0, len(w.Days))
	for d := range w.Days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
