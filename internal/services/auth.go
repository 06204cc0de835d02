package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duotask/internal/models"
	"duotask/internal/store"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type RegistrationRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type AuthService interface {
	Register(ctx context.Context, req RegistrationRequest) (models.Profile, error)
	Login(ctx context.Context, email, password string) (models.Profile, string, error)
	GenerateToken(userID uuid.UUID) (string, error)
}

type AuthServiceImpl struct {
	profiles   store.ProfileStore
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
}

func NewAuthService(profiles store.ProfileStore, secret string, tokenTTL time.Duration, bcryptCost int) *AuthServiceImpl {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthServiceImpl{
		profiles:   profiles,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegistrationRequest) (models.Profile, error) {
	if _, err := s.profiles.GetByEmail(ctx, req.Email); err == nil {
		return models.Profile{}, errors.New("email already exists")
	} else if !store.IsNotFound(err) {
		return models.Profile{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.Profile{}, err
	}

	profile := models.Profile{
		ID:       id,
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
	}
	return s.profiles.Create(ctx, profile)
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (models.Profile, string, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			return models.Profile{}, "", ErrInvalidCredentials
		}
		return models.Profile{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(password)) != nil {
		return models.Profile{}, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(profile.ID)
	if err != nil {
		return models.Profile{}, "", err
	}
	return profile, token, nil
}

func (s *AuthServiceImpl) GenerateToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"iss":     "duotask",
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
