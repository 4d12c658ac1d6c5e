package database

import (
	"github.com/mkarpenko/pairchat/internal/models"
)

// ListMessages returns a conversation's messages ascending by creation time,
// ties broken by ascending id. Callers must have checked IsParticipant.
func (d *Database) ListMessages(conversationID uint) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AppendMessage inserts a message and returns the persisted row including
// the server-assigned id and timestamp. Messages are immutable after this.
func (d *Database) AppendMessage(conversationID, senderID uint, content, msgType string) (*models.Message, error) {
	if msgType == "" {
		msgType = "text"
	}
	message := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
	}
	if err := d.db.Create(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}
