package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mkarpenko/pairchat/internal/database"
	"github.com/mkarpenko/pairchat/internal/handlers/dto"
	"github.com/mkarpenko/pairchat/internal/middleware"
	"github.com/mkarpenko/pairchat/internal/presence"
)

type ConversationHandler struct {
	db       *database.Database
	presence *presence.Tracker
}

func NewConversationHandler(db *database.Database, tracker *presence.Tracker) *ConversationHandler {
	return &ConversationHandler{db: db, presence: tracker}
}

// List returns the caller's conversations, most recently active first, with
// the peer's online flag attached.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	summaries, err := h.db.ListConversationsForUser(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("list conversations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type convDTO struct {
		database.ConversationSummary
		OtherOnline bool `json:"other_online"`
	}
	out := make([]convDTO, 0, len(summaries))
	for _, s := range summaries {
		online := false
		if h.presence != nil {
			online = h.presence.IsOnline(c.Request.Context(), s.OtherUserID)
		}
		out = append(out, convDTO{ConversationSummary: s, OtherOnline: online})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// Create opens (or returns the existing) two-party conversation with the
// requested user.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID := middleware.UserID(c)

	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OtherUserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "otherUserId required"})
		return
	}

	other, err := h.db.GetUser(req.OtherUserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown user"})
			return
		}
		log.Error().Err(err).Uint("other_user_id", req.OtherUserID).Msg("create conversation get user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conv, err := h.db.GetOrCreateDirectConversation(userID, other.ID)
	if err != nil {
		if errors.Is(err, database.ErrSelfTarget) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
			return
		}
		log.Error().Err(err).Uint("user_id", userID).Uint("other_user_id", other.ID).Msg("create conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": conv.ID, "other_username": other.Username})
}
