package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mkarpenko/pairchat/internal/database"
	"github.com/mkarpenko/pairchat/internal/handlers/dto"
	"github.com/mkarpenko/pairchat/internal/metrics"
	"github.com/mkarpenko/pairchat/internal/middleware"
	"github.com/mkarpenko/pairchat/internal/models"
	"github.com/mkarpenko/pairchat/internal/ws"
)

type MessageHandler struct {
	db  *database.Database
	hub *ws.Hub
}

func NewMessageHandler(db *database.Database, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{db: db, hub: hub}
}

func conversationID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("conversationId"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return uint(id), true
}

// requireParticipant enforces the only authorization rule message access
// has: a participant row must exist for (conversation, user).
func (h *MessageHandler) requireParticipant(c *gin.Context, convID, userID uint) bool {
	ok, err := h.db.IsParticipant(convID, userID)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", convID).Uint("user_id", userID).Msg("participant check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return false
	}
	return true
}

// List returns the conversation's messages ascending by creation time.
func (h *MessageHandler) List(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)
	if !h.requireParticipant(c, convID, userID) {
		return
	}

	messages, err := h.db.ListMessages(convID)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", convID).Msg("list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageDTO(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// Send validates, persists and pushes a message to both participants.
func (h *MessageHandler) Send(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)
	if !h.requireParticipant(c, convID, userID) {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
		return
	}

	message, err := h.db.AppendMessage(convID, userID, content, req.Type)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", convID).Uint("user_id", userID).Msg("append message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	metrics.MessagesTotal.Inc()

	h.push(convID, *message)

	c.JSON(http.StatusOK, gin.H{"message": messageDTO(*message)})
}

// push fans the persisted message out to every participant's live
// connections. Delivery is best effort; the HTTP response is the durable
// acknowledgement.
func (h *MessageHandler) push(convID uint, message models.Message) {
	if h.hub == nil {
		return
	}
	participants, err := h.db.ConversationParticipants(convID)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", convID).Msg("push participants")
		return
	}
	h.hub.PushEvent(ws.EventMessage, messageDTO(message), participants...)
}

func messageDTO(m models.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           m.Type,
		CreatedAt:      m.CreatedAt,
	}
}
