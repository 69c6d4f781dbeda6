package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pdfshelf/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts the document together with its tag rows.
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	doc.FillTags()
	return nil
}

// List returns one page of active documents matching q plus the total match count.
func (r *DocumentRepository) List(ctx context.Context, userID uint, q DocumentQuery) ([]model.Document, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.Document{}).Scopes(activeOwnedBy(userID), q.filter(userID))
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count documents failed: %w", err)
	}

	docs := make([]model.Document, 0)
	if total == 0 || q.Offset >= int(total) {
		return docs, total, nil
	}

	query := base().Omit(listOmit...).Scopes(preloadTags, q.Sort.order).Offset(q.Offset)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("list documents failed: %w", err)
	}
	fillTags(docs)
	return docs, total, nil
}

func (r *DocumentRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	return r.get(ctx, r.db.WithContext(ctx).Scopes(activeOwnedBy(userID)).Where("id = ?", id))
}

// GetAnyByIDAndUserID ignores the soft-delete flag.
func (r *DocumentRepository) GetAnyByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	return r.get(ctx, r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
}

func (r *DocumentRepository) get(ctx context.Context, q *gorm.DB) (*model.Document, error) {
	var doc model.Document
	if err := q.Scopes(preloadTags).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	doc.FillTags()
	return &doc, nil
}

// RecordOpen bumps the open counter without touching updated_at.
func (r *DocumentRepository) RecordOpen(ctx context.Context, id, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Scopes(activeOwnedBy(userID)).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"open_count":     gorm.Expr("open_count + 1"),
			"last_opened_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("record document open failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) TouchLastOpened(ctx context.Context, id, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Scopes(activeOwnedBy(userID)).Where("id = ?", id).
		UpdateColumn("last_opened_at", at).Error
	if err != nil {
		return fmt.Errorf("touch document failed: %w", err)
	}
	return nil
}

// DocumentChanges lists the user-editable fields. Nil pointers and an unset
// SetCollection leave the column alone.
type DocumentChanges struct {
	OriginalName  *string
	SetCollection bool
	CollectionID  *uint
	Tags          *[]string
}

// ApplyChanges updates one active document in its own transaction and reports
// whether it matched.
func (r *DocumentRepository) ApplyChanges(ctx context.Context, userID, id uint, ch DocumentChanges) (bool, error) {
	matched := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Document{}).Scopes(activeOwnedBy(userID)).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("check document failed: %w", err)
		}
		if count == 0 {
			return nil
		}
		matched = true

		fields := map[string]interface{}{"updated_at": tx.NowFunc()}
		if ch.OriginalName != nil {
			fields["original_name"] = *ch.OriginalName
		}
		if ch.SetCollection {
			fields["collection_id"] = ch.CollectionID
		}
		if err := tx.Model(&model.Document{}).Where("id = ?", id).UpdateColumns(fields).Error; err != nil {
			return fmt.Errorf("update document failed: %w", err)
		}

		if ch.Tags != nil {
			if err := tx.Where("document_id = ?", id).Delete(&model.DocumentTag{}).Error; err != nil {
				return fmt.Errorf("clear document tags failed: %w", err)
			}
			if links := tagLinks(userID, id, *ch.Tags); len(links) > 0 {
				if err := tx.Create(&links).Error; err != nil {
					return fmt.Errorf("create document tags failed: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// SoftDelete flags an active document as deleted and reports whether it did.
func (r *DocumentRepository) SoftDelete(ctx context.Context, userID, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Document{}).
		Scopes(activeOwnedBy(userID)).Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true})
	if result.Error != nil {
		return false, fmt.Errorf("soft delete document failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpdateEnrichment writes pipeline-owned columns only.
func (r *DocumentRepository) UpdateEnrichment(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update document enrichment failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) CountActiveInCollection(ctx context.Context, userID, collectionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Scopes(activeOwnedBy(userID)).Where("collection_id = ?", collectionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count collection documents failed: %w", err)
	}
	return count, nil
}

func (r *DocumentRepository) Recent(ctx context.Context, userID uint, limit int) ([]model.Document, error) {
	docs := make([]model.Document, 0)
	err := r.db.WithContext(ctx).
		Scopes(activeOwnedBy(userID), preloadTags).
		Where("last_opened_at IS NOT NULL").
		Omit(listOmit...).
		Order("last_opened_at DESC").Order("id DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list recent documents failed: %w", err)
	}
	fillTags(docs)
	return docs, nil
}

func fillTags(docs []model.Document) {
	for i := range docs {
		docs[i].FillTags()
	}
}

func tagLinks(userID, documentID uint, tags []string) []model.DocumentTag {
	links := make([]model.DocumentTag, 0, len(tags))
	for _, name := range tags {
		links = append(links, model.DocumentTag{DocumentID: documentID, UserID: userID, Name: name})
	}
	return links
}

// NewTagLinks builds the tag rows for a document that is about to be created.
func NewTagLinks(userID uint, tags []string) []model.DocumentTag {
	return tagLinks(userID, 0, tags)
}
