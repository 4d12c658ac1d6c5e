package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	AvatarPath   string `gorm:"size:256"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Conversation is a two-party thread. PairKey is "lo:hi" of the two
// participant ids; its unique index is what makes creation idempotent per
// pair even under concurrent requests.
type Conversation struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128"`
	PairKey   string `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
}

// Participant grants a user read/write access to a conversation's messages.
// It is the only authorization gate the message endpoints consult.
type Participant struct {
	ID             uint `gorm:"primaryKey"`
	ConversationID uint `gorm:"uniqueIndex:idx_participant_pair;not null"`
	UserID         uint `gorm:"uniqueIndex:idx_participant_pair;index;not null"`
	CreatedAt      time.Time
}

type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"index:idx_msg_conversation;not null"`
	SenderID       uint   `gorm:"not null"`
	Content        string `gorm:"type:text;not null"`
	Type           string `gorm:"size:32;default:'text'"`
	CreatedAt      time.Time
}
