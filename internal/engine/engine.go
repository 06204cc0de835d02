package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"duotask/internal/models"
	"duotask/internal/notify"
	"duotask/internal/realtime"
	"duotask/internal/store"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

// Engine owns the in-memory mirror of the remote task collection for one
// authenticated user. The mirror is authoritative for rendering; the store
// is authoritative on conflict. All mutation flows through engine methods
// or MergeRemoteEvent; nothing else touches the mirror.
type Engine struct {
	store    store.TaskStore
	bus      realtime.Publisher
	sub      realtime.Subscriber
	notifier notify.Notifier
	log      zerolog.Logger

	user models.Profile

	mu     sync.Mutex
	mirror []models.Task

	celebrations chan realtime.Milestone

	weekStart time.Weekday
	clock     func() time.Time
}

type Config struct {
	Store     store.TaskStore
	Bus       realtime.Publisher
	Sub       realtime.Subscriber
	Notifier  notify.Notifier
	User      models.Profile
	WeekStart time.Weekday
	Logger    zerolog.Logger

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

func New(config Config) *Engine {
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		store:        config.Store,
		bus:          config.Bus,
		sub:          config.Sub,
		notifier:     config.Notifier,
		log:          config.Logger.With().Str("component", "engine").Logger(),
		user:         config.User,
		celebrations: make(chan realtime.Milestone, 8),
		weekStart:    config.WeekStart,
		clock:        clock,
	}
}

// TaskDraft is what the UI supplies when creating a task. The store fills
// id, created_at, and status.
type TaskDraft struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Visibility  models.Visibility      `json:"visibility"`
	Priority    models.Priority        `json:"priority"`
	AssigneeID  *uuid.UUID             `json:"assignee_id,omitempty"`
	DueAt       *time.Time             `json:"due_at,omitempty"`
	ImageURL    string                 `json:"image_url,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Checklist   []models.ChecklistItem `json:"checklist,omitempty"`
}

// FetchAll replaces the mirror wholesale with the store's view, newest
// first. On failure the session fails open to an empty mirror.
func (e *Engine) FetchAll(ctx context.Context) error {
	tasks, err := e.store.FetchAll(ctx, e.user)
	if err != nil {
		e.log.Error().Err(err).Msg("initial fetch failed, starting with empty mirror")
		e.mu.Lock()
		e.mirror = nil
		e.mu.Unlock()
		return fmt.Errorf("failed to fetch tasks: %w", err)
	}

	e.mu.Lock()
	e.mirror = tasks
	e.mu.Unlock()
	e.log.Info().Int("count", len(tasks)).Msg("mirror loaded")
	return nil
}

// Tasks returns a deep copy of the mirror for rendering.
func (e *Engine) Tasks() []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.CloneTasks(e.mirror)
}

// AddTask sends the draft to the store and prepends the returned record,
// which carries the authoritative id and created_at. No optimistic entry
// is made, so a failure leaves the mirror untouched.
func (e *Engine) AddTask(ctx context.Context, draft TaskDraft) (models.Task, error) {
	task := models.Task{
		CreatorID:   e.user.ID,
		AssigneeID:  draft.AssigneeID,
		Visibility:  draft.Visibility,
		Title:       draft.Title,
		Description: draft.Description,
		Status:      models.StatusActive,
		Priority:    draft.Priority,
		DueAt:       draft.DueAt,
		ImageURL:    draft.ImageURL,
		Tags:        draft.Tags,
		Checklist:   draft.Checklist,
	}
	if task.Visibility == "" {
		task.Visibility = models.VisibilityPrivate
	}

	created, err := e.store.Insert(ctx, task)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to add task: %w", err)
	}

	e.mu.Lock()
	e.upsertLocked(created)
	e.mu.Unlock()
	return created, nil
}

// UpdateTask patches the task and replaces the mirror entry with the full
// record the store returns. The mirror is untouched on failure.
func (e *Engine) UpdateTask(ctx context.Context, id uuid.UUID, patch store.TaskPatch) (models.Task, error) {
	updated, err := e.store.Update(ctx, id, patch)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to update task: %w", err)
	}

	e.mu.Lock()
	if idx := e.indexOfLocked(id); idx >= 0 {
		e.mirror[idx] = updated
	}
	e.mu.Unlock()
	return updated, nil
}

// ToggleTaskCompletion flips a task between active and completed with
// optimistic apply and exact rollback: the pre-mutation mirror is
// snapshotted, the new status is shown immediately, and a store failure
// restores the snapshot before the error surfaces. When the store rejects
// the completed_at column it retries with status alone. A successful
// completion runs the milestone check against the snapshot's count.
func (e *Engine) ToggleTaskCompletion(ctx context.Context, id uuid.UUID) error {
	e.mu.Lock()
	idx := e.indexOfLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return nil
	}

	wasCompleted := e.mirror[idx].IsCompleted()
	newStatus := models.StatusCompleted
	var completedAt *time.Time
	if wasCompleted {
		newStatus = models.StatusActive
	} else {
		now := e.clock()
		completedAt = &now
	}

	snapshot := models.CloneTasks(e.mirror)
	e.mirror[idx].Status = newStatus
	e.mirror[idx].CompletedAt = completedAt
	e.mu.Unlock()

	patch := store.TaskPatch{Status: &newStatus, CompletedAt: completedAt}
	if completedAt == nil {
		patch.ClearCompletedAt = true
	}

	_, err := e.store.Update(ctx, id, patch)
	if err != nil && store.IsUndefinedColumn(err) {
		e.log.Warn().Err(err).Msg("store lacks completed_at, retrying with status only")
		_, err = e.store.Update(ctx, id, patch.WithoutCompletedAt())
	}
	if err != nil {
		e.mu.Lock()
		e.mirror = snapshot
		e.mu.Unlock()
		return fmt.Errorf("failed to toggle completion: %w", err)
	}

	if newStatus == models.StatusCompleted {
		e.checkMilestone(ctx, snapshot)
	}
	return nil
}

// ToggleChecklistItem flips one checklist entry and routes the new list
// through the regular update path. Unknown task or item is a stale-UI
// no-op.
func (e *Engine) ToggleChecklistItem(ctx context.Context, taskID uuid.UUID, itemID string) error {
	e.mu.Lock()
	idx := e.indexOfLocked(taskID)
	if idx < 0 || len(e.mirror[idx].Checklist) == 0 {
		e.mu.Unlock()
		return nil
	}

	found := false
	checklist := make([]models.ChecklistItem, len(e.mirror[idx].Checklist))
	for i, item := range e.mirror[idx].Checklist {
		if item.ID == itemID {
			item.IsCompleted = !item.IsCompleted
			found = true
		}
		checklist[i] = item
	}
	e.mu.Unlock()

	if !found {
		return nil
	}

	_, err := e.UpdateTask(ctx, taskID, store.TaskPatch{Checklist: checklist})
	return err
}

// DeleteTask removes the task from the store only; the mirror entry goes
// away when the delete event echoes back, so there is nothing to roll
// back on failure.
func (e *Engine) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// NudgePartner broadcasts a poke about the task to the linked partner.
// No partner or unknown task is a silent no-op.
func (e *Engine) NudgePartner(ctx context.Context, taskID uuid.UUID) error {
	if e.user.PartnerID == nil || e.bus == nil {
		return nil
	}

	e.mu.Lock()
	idx := e.indexOfLocked(taskID)
	if idx < 0 {
		e.mu.Unlock()
		return nil
	}
	title := e.mirror[idx].Title
	e.mu.Unlock()

	nudge := realtime.Nudge{Title: title, NudgerName: e.user.Name}
	if err := e.bus.PublishNudge(ctx, *e.user.PartnerID, nudge); err != nil {
		return fmt.Errorf("failed to nudge partner: %w", err)
	}
	return nil
}

// AvailableTags is the sorted, deduplicated set of tags across the
// mirror, recomputed on demand.
func (e *Engine) AvailableTags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := make(map[string]struct{})
	for _, task := range e.mirror {
		for _, tag := range task.Tags {
			set[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// MergeRemoteEvent folds one bus event into the mirror. Inserts are
// idempotent (a client's own optimistic add and the echoed event both
// arrive), updates replace wholesale so the last writer wins, deletes
// and updates for unknown ids are no-ops. Returns whether the mirror
// changed.
func (e *Engine) MergeRemoteEvent(event realtime.ChangeEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOfLocked(event.Task.ID)
	switch event.Type {
	case realtime.EventInsert:
		if idx >= 0 {
			return false
		}
		e.mirror = append([]models.Task{event.Task.Clone()}, e.mirror...)
		return true
	case realtime.EventUpdate:
		if idx < 0 {
			return false
		}
		e.mirror[idx] = event.Task.Clone()
		return true
	case realtime.EventDelete:
		if idx < 0 {
			return false
		}
		e.mirror = append(e.mirror[:idx], e.mirror[idx+1:]...)
		return true
	default:
		return false
	}
}

// Celebrations is the signal feed for the presentation layer's milestone
// overlay, carrying both local milestones and ones broadcast by the
// partner. Every call returns the same channel: the feed supports one
// consumer per session, and concurrent readers would split the signals
// between them.
func (e *Engine) Celebrations() <-chan realtime.Milestone {
	return e.celebrations
}

func (e *Engine) checkMilestone(ctx context.Context, baseline []models.Task) {
	weekStart := WeekStart(e.clock(), e.weekStart)
	count := WeeklyCompleted(baseline, weekStart) + 1
	if !IsMilestone(count) {
		return
	}

	milestone := realtime.Milestone{Count: count}
	e.celebrate(milestone)

	if e.user.PartnerID != nil && e.bus != nil {
		if err := e.bus.PublishMilestone(ctx, *e.user.PartnerID, milestone); err != nil {
			e.log.Warn().Err(err).Int("count", count).Msg("failed to broadcast milestone")
		}
	}
}

func (e *Engine) celebrate(milestone realtime.Milestone) {
	select {
	case e.celebrations <- milestone:
	default:
		e.log.Warn().Int("count", milestone.Count).Msg("celebration channel full, dropping signal")
	}
}

func (e *Engine) upsertLocked(task models.Task) {
	if idx := e.indexOfLocked(task.ID); idx >= 0 {
		e.mirror[idx] = task
		return
	}
	e.mirror = append([]models.Task{task}, e.mirror...)
}

func (e *Engine) indexOfLocked(id uuid.UUID) int {
	for i := range e.mirror {
		if e.mirror[i].ID == id {
			return i
		}
	}
	return -1
}
