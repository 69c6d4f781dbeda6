package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfshelf/internal/model"
)

type SortKey string

const (
	SortCreatedAt    SortKey = "created_at"
	SortOriginalName SortKey = "original_name"
	SortFileSize     SortKey = "file_size"
	SortPageCount    SortKey = "page_count"
)

type DocumentSort struct {
	Key  SortKey
	Desc bool
}

// DocumentQuery is a normalized filter. Nil bounds and empty values do not
// constrain the result.
type DocumentQuery struct {
	Search        string
	CollectionID  *uint
	Uncategorized bool
	Tags          []string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	MinSize       *int64
	MaxSize       *int64
	MinPages      *int
	MaxPages      *int
	Sort          DocumentSort
	Offset        int
	Limit         int
}

// listOmit keeps the text blobs out of list payloads.
var listOmit = []string{"extracted_text", "ocr_text"}

func activeOwnedBy(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ? AND is_deleted = ?", userID, false)
	}
}

func preloadTags(db *gorm.DB) *gorm.DB {
	return db.Preload("TagLinks", func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	})
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

func (q DocumentQuery) filter(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.Search != "" {
			pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
			db = db.Where("(LOWER(original_name) LIKE ? ESCAPE '!' OR LOWER(filename) LIKE ? ESCAPE '!')", pattern, pattern)
		}
		if q.Uncategorized {
			db = db.Where("collection_id IS NULL")
		} else if q.CollectionID != nil {
			db = db.Where("collection_id = ?", *q.CollectionID)
		}
		if len(q.Tags) > 0 {
			tagged := db.Session(&gorm.Session{NewDB: true}).
				Model(&model.DocumentTag{}).
				Select("document_id").
				Where("user_id = ? AND name IN ?", userID, q.Tags)
			db = db.Where("id IN (?)", tagged)
		}
		if q.CreatedFrom != nil {
			db = db.Where("created_at >= ?", *q.CreatedFrom)
		}
		if q.CreatedTo != nil {
			db = db.Where("created_at <= ?", *q.CreatedTo)
		}
		if q.MinSize != nil {
			db = db.Where("file_size >= ?", *q.MinSize)
		}
		if q.MaxSize != nil {
			db = db.Where("file_size <= ?", *q.MaxSize)
		}
		if q.MinPages != nil {
			db = db.Where("page_count >= ?", *q.MinPages)
		}
		if q.MaxPages != nil {
			db = db.Where("page_count <= ?", *q.MaxPages)
		}
		return db
	}
}

// order applies the primary key, then newest first, then id, so every page
// boundary is deterministic.
func (s DocumentSort) order(db *gorm.DB) *gorm.DB {
	key := s.Key
	if key == "" {
		key = SortCreatedAt
	}
	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: string(key)}, Desc: s.Desc})
	if key != SortCreatedAt {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: string(SortCreatedAt)}, Desc: true})
	}
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
}
