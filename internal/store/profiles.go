package store

import (
	"context"
	"time"

	"duotask/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Profile, error)
	GetByEmail(ctx context.Context, email string) (models.Profile, error)
	Create(ctx context.Context, profile models.Profile) (models.Profile, error)
	Link(ctx context.Context, a, b uuid.UUID) error
	CreateInvite(ctx context.Context, invite models.PairInvite) error
	PendingInvites(ctx context.Context, issuerID uuid.UUID) ([]models.PairInvite, error)
	DeleteInvite(ctx context.Context, id uuid.UUID) error
}

type GormProfileStore struct {
	db *gorm.DB
}

func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{db: db}
}

func (s *GormProfileStore) GetByID(ctx context.Context, id uuid.UUID) (models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return models.Profile{}, wrap("get_profile", err)
	}
	return profile, nil
}

func (s *GormProfileStore) GetByEmail(ctx context.Context, email string) (models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "email = ?", email).Error; err != nil {
		return models.Profile{}, wrap("get_profile", err)
	}
	return profile, nil
}

func (s *GormProfileStore) Create(ctx context.Context, profile models.Profile) (models.Profile, error) {
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return models.Profile{}, wrap("create_profile", err)
	}
	return profile, nil
}

// Link sets both partner pointers in one transaction so the pair is never
// half-formed.
func (s *GormProfileStore) Link(ctx context.Context, a, b uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Profile{}).Where("id = ?", a).Update("partner_id", b).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("id = ?", b).Update("partner_id", a).Error
	})
	return wrap("link_profiles", err)
}

func (s *GormProfileStore) CreateInvite(ctx context.Context, invite models.PairInvite) error {
	return wrap("create_invite", s.db.WithContext(ctx).Create(&invite).Error)
}

func (s *GormProfileStore) PendingInvites(ctx context.Context, issuerID uuid.UUID) ([]models.PairInvite, error) {
	var invites []models.PairInvite
	err := s.db.WithContext(ctx).
		Where("issuer_id = ? AND expires_at > ?", issuerID, time.Now()).
		Find(&invites).Error
	if err != nil {
		return nil, wrap("pending_invites", err)
	}
	return invites, nil
}

func (s *GormProfileStore) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	return wrap("delete_invite", s.db.WithContext(ctx).Delete(&models.PairInvite{}, "id = ?", id).Error)
}
