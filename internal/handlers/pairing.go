package handlers

import (
	"errors"
	"net/http"

	"duotask/internal/services"

	"github.com/gin-gonic/gin"
)

type PairingHandler struct {
	pairing  *services.PairingService
	sessions *services.SessionManager
}

func NewPairingHandler(pairing *services.PairingService, sessions *services.SessionManager) *PairingHandler {
	return &PairingHandler{pairing: pairing, sessions: sessions}
}

func (h *PairingHandler) CreateInvite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	code, err := h.pairing.CreateInvite(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyPaired) {
			c.JSON(http.StatusConflict, gin.H{"error": "already paired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create invite"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

func (h *PairingHandler) AcceptInvite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		IssuerEmail string `json:"issuer_email" binding:"required,email"`
		Code        string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.pairing.AcceptInvite(c.Request.Context(), userID, req.IssuerEmail, req.Code)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidInvite):
		c.JSON(http.StatusNotFound, gin.H{"error": "invite code is invalid or expired"})
		return
	case errors.Is(err, services.ErrAlreadyPaired):
		c.JSON(http.StatusConflict, gin.H{"error": "already paired"})
		return
	case errors.Is(err, services.ErrSelfPairing):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot pair with yourself"})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept invite"})
		return
	}

	// Partner links change each user's visibility scope, so both
	// sessions restart on next request with a fresh mirror.
	if h.sessions != nil {
		h.sessions.Close(userID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "paired"})
}
