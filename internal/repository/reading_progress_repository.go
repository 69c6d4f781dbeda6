package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfshelf/internal/model"
)

type ReadingProgressRepository struct {
	db *gorm.DB
}

func NewReadingProgressRepository(db *gorm.DB) *ReadingProgressRepository {
	return &ReadingProgressRepository{db: db}
}

func (r *ReadingProgressRepository) Get(ctx context.Context, userID, documentID uint) (*model.ReadingProgress, error) {
	var progress model.ReadingProgress
	err := r.db.WithContext(ctx).Where("user_id = ? AND document_id = ?", userID, documentID).First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reading progress failed: %w", err)
	}
	return &progress, nil
}

// Upsert relies on the unique (user_id, document_id) index.
func (r *ReadingProgressRepository) Upsert(ctx context.Context, progress *model.ReadingProgress) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_page", "total_pages", "percentage", "zoom", "view_mode", "last_read_at", "updated_at",
		}),
	}).Create(progress).Error
	if err != nil {
		return fmt.Errorf("upsert reading progress failed: %w", err)
	}
	return nil
}

// ListRecent returns progress rows for active documents, most recently read first.
func (r *ReadingProgressRepository) ListRecent(ctx context.Context, userID uint, limit int) ([]model.ReadingProgress, error) {
	active := r.db.Model(&model.Document{}).Select("id").Scopes(activeOwnedBy(userID))

	rows := make([]model.ReadingProgress, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND document_id IN (?)", userID, active).
		Preload("Document", func(db *gorm.DB) *gorm.DB {
			return db.Omit(listOmit...)
		}).
		Order("last_read_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list reading progress failed: %w", err)
	}
	for i := range rows {
		if rows[i].Document != nil {
			rows[i].Document.FillTags()
		}
	}
	return rows, nil
}
