package engine

import (
	"time"

	"duotask/internal/models"
)

// MilestoneStep is the weekly completed-task interval that triggers a
// celebration: 5, 10, 15, and so on.
const MilestoneStep = 5

// WeekStart is the most recent midnight falling on startDay, in now's
// location.
func WeekStart(now time.Time, startDay time.Weekday) time.Time {
	daysBack := int(now.Weekday()) - int(startDay)
	if daysBack < 0 {
		daysBack += 7
	}
	day := now.AddDate(0, 0, -daysBack)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

// WeeklyCompleted counts tasks completed at or after weekStart.
func WeeklyCompleted(tasks []models.Task, weekStart time.Time) int {
	count := 0
	for _, task := range tasks {
		if task.Status != models.StatusCompleted || task.CompletedAt == nil {
			continue
		}
		if !task.CompletedAt.Before(weekStart) {
			count++
		}
	}
	return count
}

func IsMilestone(count int) bool {
	return count > 0 && count%MilestoneStep == 0
}
