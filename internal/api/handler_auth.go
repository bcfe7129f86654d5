package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cloudidian/mailsort/internal/auth"
	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/model"
	"github.com/cloudidian/mailsort/internal/store"
)

const stateCookie = "oauth_state"

// AuthHandler drives login: redirect to Google, handle the callback,
// persist the user and their tokens, hand back a session JWT.
type AuthHandler struct {
	flow     *auth.Flow
	creds    *auth.CredentialProvider
	sessions *auth.SessionManager
	store    *store.Store
	logger   *slog.Logger
}

// NewAuthHandler wires the login handler.
func NewAuthHandler(flow *auth.Flow, creds *auth.CredentialProvider, sessions *auth.SessionManager, s *store.Store, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		flow:     flow,
		creds:    creds,
		sessions: sessions,
		store:    s,
		logger:   logging.WithComponent(logger, "api"),
	}
}

// Start handles GET /auth/google/start.
func (h *AuthHandler) Start(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(10*time.Minute/time.Second), "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.flow.AuthCodeURL(state))
}

// Callback handles GET /auth/google/callback.
func (h *AuthHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	cookie, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != cookie {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	ctx := c.Request.Context()
	token, profile, err := h.flow.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("oauth exchange failed", logging.Err(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "authorization failed"})
		return
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:        profile.ID,
		Email:     profile.Email,
		Name:      profile.Name,
		Picture:   profile.Picture,
		LastLogin: &now,
		IsActive:  true,
	}
	if err := h.store.UpsertUser(ctx, user); err != nil {
		h.logger.Error("persisting user failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if err := h.creds.SaveTokens(ctx, user.ID, token); err != nil {
		h.logger.Error("persisting tokens failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	session, err := h.sessions.Issue(user.ID, user.Email)
	if err != nil {
		h.logger.Error("issuing session failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.logger.Info("user logged in", logging.UserHash(user.Email))
	c.JSON(http.StatusOK, gin.H{
		"token": session,
		"user": gin.H{
			"id":      user.ID,
			"email":   user.Email,
			"name":    user.Name,
			"picture": user.Picture,
		},
	})
}
