package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mkarpenko/pairchat/internal/database"
	"github.com/mkarpenko/pairchat/internal/handlers/dto"
	"github.com/mkarpenko/pairchat/internal/middleware"
	"github.com/mkarpenko/pairchat/internal/presence"
)

type UserHandler struct {
	db       *database.Database
	presence *presence.Tracker
}

func NewUserHandler(db *database.Database, tracker *presence.Tracker) *UserHandler {
	return &UserHandler{db: db, presence: tracker}
}

// Search finds users by username substring, always excluding the caller.
// An empty query returns an empty list rather than everyone.
func (h *UserHandler) Search(c *gin.Context) {
	userID := middleware.UserID(c)

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"users": []dto.UserInfo{}})
		return
	}

	users, err := h.db.SearchUsers(query, userID, 20)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("search users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]dto.UserInfo, 0, len(users))
	for _, u := range users {
		online := false
		if h.presence != nil {
			online = h.presence.IsOnline(c.Request.Context(), u.ID)
		}
		out = append(out, dto.UserInfo{ID: u.ID, Username: u.Username, AvatarPath: u.AvatarPath, Online: online})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// UpdateAvatar sets the caller's avatar path, the only mutable user field.
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	userID := middleware.UserID(c)

	var req dto.AvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar_path required"})
		return
	}
	path := strings.TrimSpace(req.AvatarPath)
	if path == "" || len(path) > 256 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid avatar path"})
		return
	}

	if err := h.db.UpdateAvatar(userID, path); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("update avatar")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	user, err := h.db.GetUser(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("update avatar reload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.UserInfo{ID: user.ID, Username: user.Username, AvatarPath: user.AvatarPath}})
}
