package model

import "time"

const (
	DefaultCollectionColor = "#4f46e5"
	DefaultCollectionIcon  = "📁"
)

type Collection struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_collections_user_parent,priority:1" json:"user_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	Color       string    `gorm:"size:16;not null" json:"color"`
	Icon        string    `gorm:"size:32;not null" json:"icon"`
	ParentID    *uint     `gorm:"index:idx_collections_user_parent,priority:2" json:"parent_id"`
	SortOrder   int       `gorm:"not null;default:0" json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
