package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pdfshelf/internal/model"
	"pdfshelf/internal/platform/database"
)

const mb = int64(1024 * 1024)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type docSeed struct {
	userID     uint
	name       string
	size       int64
	pages      int
	tags       []string
	collection *uint
	deleted    bool
	created    time.Time
}

func seedDocument(t *testing.T, repo *DocumentRepository, s docSeed) model.Document {
	t.Helper()
	if s.userID == 0 {
		s.userID = 1
	}
	if s.created.IsZero() {
		s.created = t0
	}
	doc := model.Document{
		UserID:               s.userID,
		Filename:             s.name + ".pdf",
		OriginalName:         s.name,
		StorageRef:           "users/1/documents/" + s.name + ".pdf",
		MimeType:             "application/pdf",
		FileSize:             s.size,
		PageCount:            s.pages,
		CollectionID:         s.collection,
		TextExtractionStatus: model.ExtractionPending,
		OCRStatus:            model.ExtractionPending,
		CreatedAt:            s.created,
		TagLinks:             NewTagLinks(s.userID, s.tags),
	}
	require.NoError(t, repo.Create(context.Background(), &doc))
	if s.deleted {
		ok, err := repo.SoftDelete(context.Background(), s.userID, doc.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}
	return doc
}

func uintPtr(v uint) *uint { return &v }
