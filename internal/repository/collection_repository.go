package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pdfshelf/internal/model"
)

type CollectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) Create(ctx context.Context, collection *model.Collection) error {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		return fmt.Errorf("create collection failed: %w", err)
	}
	return nil
}

func (r *CollectionRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Collection, error) {
	var collections []model.Collection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sort_order ASC").Order("created_at ASC").Order("id ASC").
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("list collections failed: %w", err)
	}
	return collections, nil
}

func (r *CollectionRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Collection, error) {
	var collection model.Collection
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get collection failed: %w", err)
	}
	return &collection, nil
}

// Update writes every mutable column, including a NULL parent.
func (r *CollectionRepository) Update(ctx context.Context, collection *model.Collection) error {
	err := r.db.WithContext(ctx).Model(collection).
		Select("name", "description", "color", "icon", "parent_id", "sort_order").
		Updates(collection).Error
	if err != nil {
		return fmt.Errorf("update collection failed: %w", err)
	}
	return nil
}

func (r *CollectionRepository) CountChildren(ctx context.Context, id, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Collection{}).
		Where("parent_id = ? AND user_id = ?", id, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count child collections failed: %w", err)
	}
	return count, nil
}

// NextSortOrder returns one past the highest order among the siblings under
// parentID, or 0 when there are none.
func (r *CollectionRepository) NextSortOrder(ctx context.Context, userID uint, parentID *uint) (int, error) {
	q := r.db.WithContext(ctx).Model(&model.Collection{}).Where("user_id = ?", userID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}

	var maxOrder sql.NullInt64
	if err := q.Select("MAX(sort_order)").Row().Scan(&maxOrder); err != nil {
		return 0, fmt.Errorf("query max sort order failed: %w", err)
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return int(maxOrder.Int64) + 1, nil
}

// UpdateSortOrder reports whether the collection exists for the owner.
func (r *CollectionRepository) UpdateSortOrder(ctx context.Context, userID, id uint, order int) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Collection{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check collection failed: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	err := db.Model(&model.Collection{}).Where("id = ? AND user_id = ?", id, userID).Update("sort_order", order).Error
	if err != nil {
		return false, fmt.Errorf("update collection order failed: %w", err)
	}
	return true, nil
}

// Delete removes the collection. With reassign set, every document in it
// (deleted ones included) moves to target, which may be nil for "no
// collection". Without it, only soft-deleted documents remain and they are
// detached so no record keeps a dangling reference.
func (r *CollectionRepository) Delete(ctx context.Context, userID, id uint, reassign bool, target *uint) (int64, error) {
	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		docs := tx.Model(&model.Document{}).Where("user_id = ? AND collection_id = ?", userID, id)
		if !reassign {
			docs = docs.Where("is_deleted = ?", true)
		}
		result := docs.Update("collection_id", target)
		if result.Error != nil {
			return fmt.Errorf("reassign collection documents failed: %w", result.Error)
		}
		moved = result.RowsAffected

		if err := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Collection{}).Error; err != nil {
			return fmt.Errorf("delete collection failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}
