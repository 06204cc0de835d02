package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPastDue   Status = "past_due"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
)

type ChecklistItem struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsCompleted bool   `json:"is_completed"`
}

type Task struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	CreatorID   uuid.UUID       `json:"creator_id" gorm:"type:uuid;not null"`
	AssigneeID  *uuid.UUID      `json:"assignee_id,omitempty" gorm:"type:uuid"`
	Visibility  Visibility      `json:"visibility" gorm:"not null;default:'private'"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description"`
	Status      Status          `json:"status" gorm:"not null;default:'active'"`
	Priority    Priority        `json:"priority" gorm:"not null;default:'medium'"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Tags        []string        `json:"tags,omitempty" gorm:"serializer:json"`
	Checklist   []ChecklistItem `json:"checklist,omitempty" gorm:"serializer:json"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// EffectiveOwner is the assignee, or the creator when unassigned.
func (t Task) EffectiveOwner() uuid.UUID {
	if t.AssigneeID != nil {
		return *t.AssigneeID
	}
	return t.CreatorID
}

func (t Task) IsOwnedBy(userID uuid.UUID) bool {
	return t.EffectiveOwner() == userID
}

// Clone deep-copies the task so mirror snapshots never share slices with
// the live copy. Rollback depends on this being exact.
func (t Task) Clone() Task {
	c := t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		c.AssigneeID = &id
	}
	if t.DueAt != nil {
		at := *t.DueAt
		c.DueAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.Checklist != nil {
		c.Checklist = append([]ChecklistItem(nil), t.Checklist...)
	}
	return c
}

func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
