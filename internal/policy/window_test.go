/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package policy

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:00", TimeOfDay{Hour: 9}, false},
		{"00:00", TimeOfDay{}, false},
		{"23:59", TimeOfDay{Hour: 23, Minute: 59}, false},
		{" 18:30 ", TimeOfDay{Hour: 18, Minute: 30}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"-1:00", TimeOfDay{}, true},
		{"nine", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTimeOfDay(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in      string
		want    []time.Weekday
		wantErr bool
	}{
		{"Mon-Fri", []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, false},
		{"Mon,Wed,Fri", []time.Weekday{time.Monday, time.Wednesday, time.Friday}, false},
		{"sat,sun", []time.Weekday{time.Sunday, time.Saturday}, false},
		{"Fri-Mon", []time.Weekday{time.Sunday, time.Monday, time.Friday, time.Saturday}, false},
		{"Monday", []time.Weekday{time.Monday}, false},
		{"Mon-Fri,Sat", []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}, false},
		{"", nil, true},
		{"Funday", nil, true},
		{"Mon-Funday", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDays(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDays(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDays(%q): %v", tt.in, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseDays(%q) = %v, want days %v", tt.in, got, tt.want)
			}
			for _, d := range tt.want {
				if !got[d] {
					t.Errorf("ParseDays(%q) missing %s", tt.in, d)
				}
			}
		})
	}
}

func TestWindowValidate(t *testing.T) {
	mondays := map[time.Weekday]bool{time.Monday: true}

	tests := []struct {
		name    string
		w       Window
		wantErr bool
	}{
		{"valid", Window{Days: mondays, Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 18}}, false},
		{"no days", Window{Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 18}}, true},
		{"inverted", Window{Days: mondays, Start: TimeOfDay{Hour: 18}, End: TimeOfDay{Hour: 9}}, true},
		{"zero length", Window{Days: mondays, Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 9}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestWindowContainsBoundaries(t *testing.T) {
	w := Window{
		Days:  map[time.Weekday]bool{time.Monday: true},
		Start: TimeOfDay{Hour: 9},
		End:   TimeOfDay{Hour: 18},
	}

	if !w.Contains(time.Monday, 9*60) {
		t.Error("start boundary should be inside")
	}
	if w.Contains(time.Monday, 18*60) {
		t.Error("end boundary should be outside")
	}
	if !w.Contains(time.Monday, 18*60-1) {
		t.Error("minute before end should be inside")
	}
	if w.Contains(time.Tuesday, 12*60) {
		t.Error("undeclared day should be outside")
	}
}
