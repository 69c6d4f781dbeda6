package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_conversations_owner_doc,priority:1" json:"user_id"`
	DocumentID uint      `gorm:"not null;uniqueIndex:idx_conversations_owner_doc,priority:2" json:"document_id"`
	Context    string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ConversationMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	Role           string    `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"not null" json:"content"`
	PageNumber     *int      `json:"page_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
