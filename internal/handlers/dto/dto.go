package dto

import "time"

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateConversationRequest struct {
	OtherUserID uint `json:"otherUserId"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

type AvatarRequest struct {
	AvatarPath string `json:"avatar_path"`
}

type UserInfo struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	AvatarPath string `json:"avatar_path,omitempty"`
	Online     bool   `json:"online,omitempty"`
}

type MessageResponse struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}
