package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Profile is one half of a linked pair. PartnerID is nil until the two
// users complete the pairing handshake.
type Profile struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string     `json:"name" gorm:"not null"`
	Email     string     `json:"email" gorm:"uniqueIndex;not null"`
	Password  string     `json:"-" gorm:"not null"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	PartnerID *uuid.UUID `json:"partner_id,omitempty" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (p Profile) HasPartner() bool {
	return p.PartnerID != nil
}

// PairInvite is a pending pairing handshake. The code itself is only ever
// stored bcrypt-hashed.
type PairInvite struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	IssuerID  uuid.UUID `json:"issuer_id" gorm:"type:uuid;not null"`
	CodeHash  string    `json:"-" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
