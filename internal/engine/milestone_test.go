package engine

import (
	"testing"
	"time"

	"duotask/internal/models"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		startDay time.Weekday
		want     time.Time
	}{
		{
			name:     "midweek rolls back to sunday",
			now:      time.Date(2026, time.March, 11, 15, 30, 0, 0, time.UTC),
			startDay: time.Sunday,
			want:     time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "on the start day itself",
			now:      time.Date(2026, time.March, 8, 23, 59, 0, 0, time.UTC),
			startDay: time.Sunday,
			want:     time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "monday start wraps across the weekend",
			now:      time.Date(2026, time.March, 8, 10, 0, 0, 0, time.UTC),
			startDay: time.Monday,
			want:     time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.now, tt.startDay); !got.Equal(tt.want) {
				t.Errorf("WeekStart(%v, %v) = %v, want %v", tt.now, tt.startDay, got, tt.want)
			}
		})
	}
}

func TestWeeklyCompleted(t *testing.T) {
	weekStart := time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC)
	before := weekStart.Add(-time.Minute)
	exactly := weekStart
	after := weekStart.Add(time.Hour)

	tasks := []models.Task{
		{Status: models.StatusCompleted, CompletedAt: &before},
		{Status: models.StatusCompleted, CompletedAt: &exactly},
		{Status: models.StatusCompleted, CompletedAt: &after},
		{Status: models.StatusCompleted},
		{Status: models.StatusActive, CompletedAt: &after},
	}

	if got := WeeklyCompleted(tasks, weekStart); got != 2 {
		t.Errorf("expected 2 completions in window, got %d", got)
	}
}

func TestIsMilestone(t *testing.T) {
	for count, want := range map[int]bool{0: false, 1: false, 4: false, 5: true, 6: false, 10: true, 15: true} {
		if got := IsMilestone(count); got != want {
			t.Errorf("IsMilestone(%d) = %v, want %v", count, got, want)
		}
	}
}
