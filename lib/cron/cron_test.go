// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, expression string) Schedule {
	t.Helper()
	schedule, err := Parse(expression)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", expression, err)
	}
	return schedule
}

func TestNext(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		from       time.Time
		want       time.Time
	}{
		{
			name:       "hourly_sweep",
			expression: "0 * * * *",
			from:       time.Date(2026, 3, 1, 10, 15, 30, 0, time.UTC),
			want:       time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name:       "hourly_on_the_boundary_advances",
			expression: "0 * * * *",
			from:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			want:       time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name:       "every_fifteen_minutes",
			expression: "*/15 * * * *",
			from:       time.Date(2026, 3, 1, 10, 16, 0, 0, time.UTC),
			want:       time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:       "daily_at_midnight_crosses_day",
			expression: "0 0 * * *",
			from:       time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC),
			want:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "specific_month_and_day",
			expression: "30 4 1 7 *",
			from:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			want:       time.Date(2026, 7, 1, 4, 30, 0, 0, time.UTC),
		},
		{
			name:       "weekday_only",
			expression: "0 9 * * 1",
			from:       time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC), // Friday
			want:       time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),  // Monday
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			schedule := mustParse(t, test.expression)
			got, err := schedule.Next(test.from)
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if !got.Equal(test.want) {
				t.Errorf("Next(%v) = %v, want %v", test.from, got, test.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	invalid := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"5-1 * * * *",
		"*/0 * * * *",
		"abc * * * *",
	}

	for _, expression := range invalid {
		if _, err := Parse(expression); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", expression)
		}
	}
}

func TestNextImpossibleSchedule(t *testing.T) {
	schedule := mustParse(t, "0 0 31 2 *")
	if _, err := schedule.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("Next for Feb 31 succeeded, want error")
	}
}
