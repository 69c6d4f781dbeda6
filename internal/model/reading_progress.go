package model

import "time"

const (
	ViewModeSingle     = "single"
	ViewModeContinuous = "continuous"
)

type ReadingProgress struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_progress_owner_doc,priority:1" json:"user_id"`
	DocumentID  uint      `gorm:"not null;uniqueIndex:idx_progress_owner_doc,priority:2" json:"document_id"`
	CurrentPage int       `gorm:"not null;default:1" json:"current_page"`
	TotalPages  int       `gorm:"not null" json:"total_pages"`
	Percentage  int       `gorm:"not null;default:0" json:"percentage"`
	Zoom        float64   `gorm:"not null;default:1" json:"zoom"`
	ViewMode    string    `gorm:"size:16;not null" json:"view_mode"`
	LastReadAt  time.Time `gorm:"index" json:"last_read_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Document    *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}
