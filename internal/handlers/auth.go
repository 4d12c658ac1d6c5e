package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mkarpenko/pairchat/internal/config"
	"github.com/mkarpenko/pairchat/internal/database"
	"github.com/mkarpenko/pairchat/internal/handlers/dto"
	"github.com/mkarpenko/pairchat/internal/middleware"
	"github.com/mkarpenko/pairchat/pkg/auth"
)

type AuthHandler struct {
	db       *database.Database
	sessions *auth.SessionManager
	cfg      config.Config
}

func NewAuthHandler(db *database.Database, sessions *auth.SessionManager, cfg config.Config) *AuthHandler {
	return &AuthHandler{db: db, sessions: sessions, cfg: cfg}
}

// Signup creates the user and logs them in by setting the session cookie.
// Uniqueness is decided by the insert, not the request-time check, so a
// lost race still comes back as a conflict.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("signup hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	user, err := h.db.CreateUser(req.Username, hash)
	if err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("signup create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("signup issue session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	auth.SetSessionCookie(c, token, h.sessions.TTL(), h.cfg.CookieDomain, h.cfg.CookieSecure)

	c.JSON(http.StatusOK, gin.H{"user": dto.UserInfo{ID: user.ID, Username: user.Username}})
}

// Login verifies credentials and sets the session cookie. Unknown user and
// wrong password are indistinguishable to the client.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	user, err := h.db.FindUserByUsername(req.Username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("login issue session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	auth.SetSessionCookie(c, token, h.sessions.TTL(), h.cfg.CookieDomain, h.cfg.CookieSecure)

	c.JSON(http.StatusOK, gin.H{"user": dto.UserInfo{ID: user.ID, Username: user.Username, AvatarPath: user.AvatarPath}})
}

// Logout clears the cookie. Sessions are stateless, so the token itself
// stays valid until expiry; there is nothing server-side to revoke.
func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearSessionCookie(c, h.cfg.CookieDomain, h.cfg.CookieSecure)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.db.GetUser(middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		log.Error().Err(err).Uint("user_id", middleware.UserID(c)).Msg("me get user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.UserInfo{ID: user.ID, Username: user.Username, AvatarPath: user.AvatarPath}})
}
