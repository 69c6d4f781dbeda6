package model

import "time"

const DefaultNoteColor = "#fbbf24"

var NotePalette = []string{"#fbbf24", "#60a5fa", "#34d399", "#f87171", "#a78bfa", "#fb923c"}

type Note struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index:idx_notes_owner_doc,priority:1" json:"user_id"`
	DocumentID uint      `gorm:"not null;index:idx_notes_owner_doc,priority:2" json:"document_id"`
	PageNumber int       `gorm:"not null" json:"page_number"`
	Content    string    `gorm:"not null" json:"content"`
	Color      string    `gorm:"size:16;not null" json:"color"`
	IsDeleted  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
