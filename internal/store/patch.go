package store

import (
	"encoding/json"
	"time"

	"duotask/internal/models"

	"github.com/gofrs/uuid"
)

// TaskPatch is a field-level partial update. Nil pointers leave the column
// untouched; the Clear flags write NULL.
type TaskPatch struct {
	Title            *string
	Description      *string
	Visibility       *models.Visibility
	Priority         *models.Priority
	Status           *models.Status
	AssigneeID       *uuid.UUID
	ClearAssigneeID  bool
	DueAt            *time.Time
	ClearDueAt       bool
	CompletedAt      *time.Time
	ClearCompletedAt bool
	ImageURL         *string
	Tags             []string
	Checklist        []models.ChecklistItem
}

// Fields renders the patch as column assignments. Tags and checklist are
// marshalled here so map-based updates match the model's JSON columns.
func (p TaskPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Visibility != nil {
		fields["visibility"] = *p.Visibility
	}
	if p.Priority != nil {
		fields["priority"] = *p.Priority
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.AssigneeID != nil {
		fields["assignee_id"] = *p.AssigneeID
	} else if p.ClearAssigneeID {
		fields["assignee_id"] = nil
	}
	if p.DueAt != nil {
		fields["due_at"] = *p.DueAt
	} else if p.ClearDueAt {
		fields["due_at"] = nil
	}
	if p.CompletedAt != nil {
		fields["completed_at"] = *p.CompletedAt
	} else if p.ClearCompletedAt {
		fields["completed_at"] = nil
	}
	if p.ImageURL != nil {
		fields["image_url"] = *p.ImageURL
	}
	if p.Tags != nil {
		if data, err := json.Marshal(p.Tags); err == nil {
			fields["tags"] = string(data)
		}
	}
	if p.Checklist != nil {
		if data, err := json.Marshal(p.Checklist); err == nil {
			fields["checklist"] = string(data)
		}
	}
	return fields
}

func (p TaskPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// WithoutCompletedAt strips the completed_at assignment for the fallback
// retry against schemas that lack the column.
func (p TaskPatch) WithoutCompletedAt() TaskPatch {
	q := p
	q.CompletedAt = nil
	q.ClearCompletedAt = false
	return q
}
