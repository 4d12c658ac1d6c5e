package database

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/mkarpenko/pairchat/internal/models"
)

// PairKey normalizes a two-party conversation key so (a,b) and (b,a) map to
// the same row.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// GetOrCreateDirectConversation returns the existing conversation between
// the two users or creates it together with both participant rows in one
// transaction. A concurrent creator losing the pair_key race re-reads the
// winner, so there is never a conversation without participants and never a
// duplicate pair.
func (d *Database) GetOrCreateDirectConversation(userA, userB uint) (*models.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfTarget
	}
	key := PairKey(userA, userB)

	var conv models.Conversation
	err := d.db.Where("pair_key = ?", key).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{PairKey: key}
	err = d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		parts := []models.Participant{
			{ConversationID: conv.ID, UserID: userA},
			{ConversationID: conv.ID, UserID: userB},
		}
		return tx.Create(&parts).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race; the other request created it.
		if err := d.db.Where("pair_key = ?", key).First(&conv).Error; err != nil {
			return nil, err
		}
		return &conv, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// IsParticipant is the sole authorization gate for message access.
func (d *Database) IsParticipant(conversationID, userID uint) (bool, error) {
	var count int64
	err := d.db.Model(&models.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConversationParticipants returns the user ids in a conversation.
func (d *Database) ConversationParticipants(conversationID uint) ([]uint, error) {
	var parts []models.Participant
	if err := d.db.Where("conversation_id = ?", conversationID).Find(&parts).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

// ConversationSummary is a conversation as seen by one participant: the
// other party denormalized plus the last message preview.
type ConversationSummary struct {
	ID            uint   `json:"id"`
	OtherUserID   uint   `json:"other_user_id"`
	OtherUsername string `json:"other_username"`
	OtherAvatar   string `json:"other_avatar,omitempty"`
	LastMessage   string `json:"last_message,omitempty"`
	LastActivity  int64  `json:"last_activity"`
}

// ListConversationsForUser returns the user's conversations ordered
// most-recently-active first: by last message time, falling back to the
// conversation's creation time when it has no messages yet.
func (d *Database) ListConversationsForUser(userID uint) ([]ConversationSummary, error) {
	var convs []models.Conversation
	err := d.db.
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where("participants.user_id = ?", userID).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := ConversationSummary{
			ID:           conv.ID,
			LastActivity: conv.CreatedAt.UnixMilli(),
		}

		var peer models.Participant
		err := d.db.
			Where("conversation_id = ? AND user_id <> ?", conv.ID, userID).
			First(&peer).Error
		if err != nil {
			return nil, err
		}
		other, err := d.GetUser(peer.UserID)
		if err != nil {
			return nil, err
		}
		summary.OtherUserID = other.ID
		summary.OtherUsername = other.Username
		summary.OtherAvatar = other.AvatarPath

		var last models.Message
		err = d.db.
			Where("conversation_id = ?", conv.ID).
			Order("created_at desc, id desc").
			First(&last).Error
		if err == nil {
			summary.LastMessage = last.Content
			summary.LastActivity = last.CreatedAt.UnixMilli()
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity > out[j].LastActivity })
	return out, nil
}
