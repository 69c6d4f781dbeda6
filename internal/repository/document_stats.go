package repository

import (
	"context"
	"fmt"
	"time"

	"pdfshelf/internal/model"
)

type DocumentTotals struct {
	TotalDocuments int64
	TotalSize      int64
	TotalPages     int64
	AvgPageCount   float64
	AvgFileSize    float64
}

type CollectionUsage struct {
	CollectionID  *uint
	DocumentCount int64
	TotalSize     int64
}

type TagUsage struct {
	Name       string
	UsageCount int64
}

func (r *DocumentRepository) Totals(ctx context.Context, userID uint) (DocumentTotals, error) {
	var totals DocumentTotals
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Scopes(activeOwnedBy(userID)).
		Select("COUNT(*) AS total_documents, " +
			"COALESCE(SUM(file_size), 0) AS total_size, " +
			"COALESCE(SUM(page_count), 0) AS total_pages, " +
			"COALESCE(AVG(page_count), 0) AS avg_page_count, " +
			"COALESCE(AVG(file_size), 0) AS avg_file_size").
		Scan(&totals).Error
	if err != nil {
		return DocumentTotals{}, fmt.Errorf("aggregate documents failed: %w", err)
	}
	return totals, nil
}

func (r *DocumentRepository) CountCreatedSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Scopes(activeOwnedBy(userID)).Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count recent uploads failed: %w", err)
	}
	return count, nil
}

// UsageByCollection groups active documents by collection; the nil group
// holds uncategorized documents.
func (r *DocumentRepository) UsageByCollection(ctx context.Context, userID uint) ([]CollectionUsage, error) {
	rows := make([]CollectionUsage, 0)
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Scopes(activeOwnedBy(userID)).
		Select("collection_id, COUNT(*) AS document_count, COALESCE(SUM(file_size), 0) AS total_size").
		Group("collection_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("group documents by collection failed: %w", err)
	}
	return rows, nil
}

func (r *DocumentRepository) TopTags(ctx context.Context, userID uint, limit int) ([]TagUsage, error) {
	rows := make([]TagUsage, 0)
	err := r.db.WithContext(ctx).Table("document_tags").
		Select("document_tags.name AS name, COUNT(*) AS usage_count").
		Joins("JOIN documents ON documents.id = document_tags.document_id").
		Where("documents.user_id = ? AND documents.is_deleted = ?", userID, false).
		Group("document_tags.name").
		Order("usage_count DESC").Order("name ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rank document tags failed: %w", err)
	}
	return rows, nil
}
