package realtime

import (
	"context"

	"duotask/internal/models"

	"github.com/gofrs/uuid"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is one row change on the task collection. Delete events
// carry the last known record; only its id matters to subscribers.
type ChangeEvent struct {
	Type EventType   `json:"type"`
	Task models.Task `json:"task"`
}

// Nudge is a point-to-point poke from one partner to the other. It never
// mutates task state.
type Nudge struct {
	Title      string `json:"title"`
	NudgerName string `json:"nudger_name"`
}

type Milestone struct {
	Count int `json:"count"`
}

type TaskDue struct {
	TaskID        uuid.UUID `json:"task_id"`
	Title         string    `json:"title"`
	IsPartnerTask bool      `json:"is_partner_task"`
}

type Publisher interface {
	PublishChange(ctx context.Context, event ChangeEvent) error
	PublishNudge(ctx context.Context, userID uuid.UUID, nudge Nudge) error
	PublishMilestone(ctx context.Context, userID uuid.UUID, milestone Milestone) error
	PublishTaskDue(ctx context.Context, userID uuid.UUID, due TaskDue) error
}

// Subscriber delivers bus traffic on typed channels. Every channel closes
// when the subscription context is cancelled.
type Subscriber interface {
	Changes(ctx context.Context) (<-chan ChangeEvent, error)
	Nudges(ctx context.Context, userID uuid.UUID) (<-chan Nudge, error)
	Milestones(ctx context.Context, userID uuid.UUID) (<-chan Milestone, error)
	TaskDue(ctx context.Context, userID uuid.UUID) (<-chan TaskDue, error)
}

type Bus interface {
	Publisher
	Subscriber
}
