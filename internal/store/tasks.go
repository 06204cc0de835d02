package store

import (
	"context"
	"time"

	"duotask/internal/models"
	"duotask/internal/realtime"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// TaskStore is the remote-store contract the sync engine consumes.
type TaskStore interface {
	FetchAll(ctx context.Context, viewer models.Profile) ([]models.Task, error)
	Insert(ctx context.Context, task models.Task) (models.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GormTaskStore persists tasks and echoes every committed mutation onto
// the realtime bus, the same way a hosted store streams row changes.
type GormTaskStore struct {
	db  *gorm.DB
	bus realtime.Publisher
	log zerolog.Logger
}

func NewGormTaskStore(db *gorm.DB, bus realtime.Publisher, log zerolog.Logger) *GormTaskStore {
	return &GormTaskStore{db: db, bus: bus, log: log.With().Str("component", "task_store").Logger()}
}

// FetchAll returns the viewer's visibility scope: everything they created
// or are assigned, plus the partner's shared tasks. Newest first.
func (s *GormTaskStore) FetchAll(ctx context.Context, viewer models.Profile) ([]models.Task, error) {
	query := s.db.WithContext(ctx).
		Where("creator_id = ? OR assignee_id = ?", viewer.ID, viewer.ID)
	if viewer.PartnerID != nil {
		query = s.db.WithContext(ctx).Where(
			"creator_id = ? OR assignee_id = ? OR (visibility = ? AND (creator_id = ? OR assignee_id = ?))",
			viewer.ID, viewer.ID, models.VisibilityShared, *viewer.PartnerID, *viewer.PartnerID,
		)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, wrap("fetch_all", err)
	}
	return tasks, nil
}

// Insert assigns the authoritative id and created_at, then persists. The
// returned record is the one clients must mirror.
func (s *GormTaskStore) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return models.Task{}, wrap("insert", err)
	}
	task.ID = id
	task.CreatedAt = time.Now()
	if task.Status == "" {
		task.Status = models.StatusActive
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return models.Task{}, wrap("insert", err)
	}

	s.publish(ctx, realtime.ChangeEvent{Type: realtime.EventInsert, Task: task})
	return task, nil
}

// Update applies a partial patch and returns the full stored record, so
// callers pick up any server-computed fields rather than a local merge.
func (s *GormTaskStore) Update(ctx context.Context, id uuid.UUID, patch TaskPatch) (models.Task, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return s.getByID(ctx, id)
	}

	result := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return models.Task{}, wrap("update", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.Task{}, wrap("update", gorm.ErrRecordNotFound)
	}

	updated, err := s.getByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	s.publish(ctx, realtime.ChangeEvent{Type: realtime.EventUpdate, Task: updated})
	return updated, nil
}

// Delete is terminal. The delete event carries the last known record so
// subscribers can drop it from their mirrors by id.
func (s *GormTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	task, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id).Error; err != nil {
		return wrap("delete", err)
	}

	s.publish(ctx, realtime.ChangeEvent{Type: realtime.EventDelete, Task: task})
	return nil
}

func (s *GormTaskStore) getByID(ctx context.Context, id uuid.UUID) (models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return models.Task{}, wrap("get", err)
	}
	return task, nil
}

// Change-feed publishing is best effort: a missed echo is reconciled by
// the next fetch, so a bus outage must not fail the mutation.
func (s *GormTaskStore) publish(ctx context.Context, event realtime.ChangeEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishChange(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("failed to publish change event")
	}
}
