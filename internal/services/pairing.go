package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duotask/internal/models"
	"duotask/internal/store"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAlreadyPaired = errors.New("profile already has a partner")
	ErrInvalidInvite = errors.New("invite code is invalid or expired")
	ErrSelfPairing   = errors.New("cannot pair with yourself")
)

// PairingService links two profiles through a short invite code. The code
// is shown once to the issuer and only its bcrypt hash is stored.
type PairingService struct {
	profiles   store.ProfileStore
	inviteTTL  time.Duration
	bcryptCost int
}

func NewPairingService(profiles store.ProfileStore, inviteTTL time.Duration, bcryptCost int) *PairingService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &PairingService{profiles: profiles, inviteTTL: inviteTTL, bcryptCost: bcryptCost}
}

func (s *PairingService) CreateInvite(ctx context.Context, issuerID uuid.UUID) (string, error) {
	issuer, err := s.profiles.GetByID(ctx, issuerID)
	if err != nil {
		return "", err
	}
	if issuer.HasPartner() {
		return "", ErrAlreadyPaired
	}

	raw, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	code := strings.ToUpper(strings.ReplaceAll(raw.String(), "-", "")[:8])

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash invite code: %w", err)
	}

	inviteID, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	invite := models.PairInvite{
		ID:        inviteID,
		IssuerID:  issuerID,
		CodeHash:  string(hash),
		ExpiresAt: time.Now().Add(s.inviteTTL),
	}
	if err := s.profiles.CreateInvite(ctx, invite); err != nil {
		return "", err
	}
	return code, nil
}

// AcceptInvite pairs the acceptor with the issuer identified by email,
// provided the code matches one of the issuer's pending invites.
func (s *PairingService) AcceptInvite(ctx context.Context, acceptorID uuid.UUID, issuerEmail, code string) error {
	acceptor, err := s.profiles.GetByID(ctx, acceptorID)
	if err != nil {
		return err
	}
	if acceptor.HasPartner() {
		return ErrAlreadyPaired
	}

	issuer, err := s.profiles.GetByEmail(ctx, issuerEmail)
	if err != nil {
		if store.IsNotFound(err) {
			return ErrInvalidInvite
		}
		return err
	}
	if issuer.ID == acceptorID {
		return ErrSelfPairing
	}
	if issuer.HasPartner() {
		return ErrAlreadyPaired
	}

	invites, err := s.profiles.PendingInvites(ctx, issuer.ID)
	if err != nil {
		return err
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	for _, invite := range invites {
		if bcrypt.CompareHashAndPassword([]byte(invite.CodeHash), []byte(normalized)) != nil {
			continue
		}
		if err := s.profiles.Link(ctx, issuer.ID, acceptorID); err != nil {
			return err
		}
		if err := s.profiles.DeleteInvite(ctx, invite.ID); err != nil {
			return err
		}
		return nil
	}
	return ErrInvalidInvite
}
