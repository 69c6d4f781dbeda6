package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pdfshelf/internal/model"
)

type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *model.Note) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("create note failed: %w", err)
	}
	return nil
}

// ListByDocument orders by page, newest first within a page. A zero page
// lists every page.
func (r *NoteRepository) ListByDocument(ctx context.Context, userID, documentID uint, page int) ([]model.Note, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND document_id = ? AND is_deleted = ?", userID, documentID, false)
	if page > 0 {
		q = q.Where("page_number = ?", page)
	}
	notes := make([]model.Note, 0)
	if err := q.Order("page_number ASC").Order("created_at DESC").Order("id DESC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notes failed: %w", err)
	}
	return notes, nil
}

func (r *NoteRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Note, error) {
	var note model.Note
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get note failed: %w", err)
	}
	return &note, nil
}

func (r *NoteRepository) Update(ctx context.Context, note *model.Note) error {
	if err := r.db.WithContext(ctx).Model(note).Select("content", "color").Updates(note).Error; err != nil {
		return fmt.Errorf("update note failed: %w", err)
	}
	return nil
}

func (r *NoteRepository) SoftDelete(ctx context.Context, id, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Note{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		Update("is_deleted", true)
	if result.Error != nil {
		return false, fmt.Errorf("delete note failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
