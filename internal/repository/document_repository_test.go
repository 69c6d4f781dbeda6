package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfshelf/internal/model"
)

func ids(docs []model.Document) []uint {
	out := make([]uint, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func timePtr(v time.Time) *time.Time {
	return &v
}

func TestListSizeAndTagFiltersCompose(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	a := seedDocument(t, repo, docSeed{name: "A", size: 1 * mb, tags: []string{"x"}})
	b := seedDocument(t, repo, docSeed{name: "B", size: 5 * mb, tags: []string{"y"}, created: t0.Add(time.Minute)})

	docs, total, err := repo.List(ctx, 1, DocumentQuery{MinSize: int64Ptr(2 * mb)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []uint{b.ID}, ids(docs))

	docs, _, err = repo.List(ctx, 1, DocumentQuery{Tags: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID}, ids(docs))
	assert.Equal(t, []string{"x"}, docs[0].Tags)

	docs, total, err = repo.List(ctx, 1, DocumentQuery{MinSize: int64Ptr(2 * mb), Tags: []string{"x"}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
}

func TestListWithoutFiltersReturnsActiveOwnedSet(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	a := seedDocument(t, repo, docSeed{name: "a", size: mb})
	b := seedDocument(t, repo, docSeed{name: "b", size: mb, created: t0.Add(time.Hour)})
	seedDocument(t, repo, docSeed{name: "gone", size: mb, deleted: true})
	seedDocument(t, repo, docSeed{userID: 2, name: "theirs", size: mb})

	docs, total, err := repo.List(ctx, 1, DocumentQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []uint{b.ID, a.ID}, ids(docs))
	assert.Empty(t, docs[0].ExtractedText)
}

func TestEverySingleFilterNarrows(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	coll := uint(7)
	seedDocument(t, repo, docSeed{name: "Quarterly Report", size: 1 * mb, pages: 3, tags: []string{"work"}, collection: &coll})
	seedDocument(t, repo, docSeed{name: "novel", size: 8 * mb, pages: 300, tags: []string{"fun", "books"}, created: t0.Add(48 * time.Hour)})
	seedDocument(t, repo, docSeed{name: "receipt_2024", size: mb / 10, pages: 1, created: t0.Add(96 * time.Hour)})

	_, all, err := repo.List(ctx, 1, DocumentQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(3), all)

	cases := map[string]struct {
		q    DocumentQuery
		want int64
	}{
		"search":        {DocumentQuery{Search: "REPORT"}, 1},
		"search stored": {DocumentQuery{Search: ".pdf"}, 3},
		"literal %":     {DocumentQuery{Search: "%"}, 0},
		"literal _":     {DocumentQuery{Search: "_"}, 1},
		"collection":    {DocumentQuery{CollectionID: &coll}, 1},
		"uncategorized": {DocumentQuery{Uncategorized: true}, 2},
		"tags any":      {DocumentQuery{Tags: []string{"books", "work"}}, 2},
		"date from":     {DocumentQuery{CreatedFrom: timePtr(t0.Add(time.Hour))}, 2},
		"date to":       {DocumentQuery{CreatedTo: timePtr(t0.Add(48 * time.Hour))}, 2},
		"max size":      {DocumentQuery{MaxSize: int64Ptr(mb)}, 2},
		"min pages":     {DocumentQuery{MinPages: intPtr(3)}, 2},
		"max pages":     {DocumentQuery{MaxPages: intPtr(3)}, 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, total, err := repo.List(ctx, 1, tc.q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, total)
			assert.LessOrEqual(t, total, all)
		})
	}
}

func TestPaginationIsStableWithDuplicateSortKeys(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		size := 2 * mb
		if i%3 == 0 {
			size = 3 * mb
		}
		seedDocument(t, repo, docSeed{
			name:    fmt.Sprintf("doc-%02d", i),
			size:    size,
			created: t0.Add(time.Duration(i%4) * time.Minute),
		})
	}

	sort := DocumentSort{Key: SortFileSize, Desc: true}
	full, total, err := repo.List(ctx, 1, DocumentQuery{Sort: sort})
	require.NoError(t, err)
	require.Len(t, full, int(total))

	var paged []model.Document
	for offset := 0; offset < int(total); offset += 4 {
		page, _, err := repo.List(ctx, 1, DocumentQuery{Sort: sort, Offset: offset, Limit: 4})
		require.NoError(t, err)
		paged = append(paged, page...)
	}
	assert.Equal(t, ids(full), ids(paged))

	for i := 1; i < len(full); i++ {
		prev, cur := full[i-1], full[i]
		require.GreaterOrEqual(t, prev.FileSize, cur.FileSize)
		if prev.FileSize == cur.FileSize {
			require.False(t, prev.CreatedAt.Before(cur.CreatedAt), "ties must be newest first")
		}
	}
}

func TestSoftDeleteHidesFromQueriesButKeepsRecord(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	doc := seedDocument(t, repo, docSeed{name: "old", size: mb, tags: []string{"x"}})

	ok, err := repo.SoftDelete(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SoftDelete(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, total, err := repo.List(ctx, 1, DocumentQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)

	totals, err := repo.Totals(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalDocuments)

	tags, err := repo.TopTags(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, tags)

	active, err := repo.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, active)

	stored, err := repo.GetAnyByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsDeleted)
}

func TestApplyChanges(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	coll := uint(3)
	doc := seedDocument(t, repo, docSeed{name: "draft", size: mb, tags: []string{"a", "b"}, collection: &coll})

	tags := []string{"c"}
	name := "final"
	matched, err := repo.ApplyChanges(ctx, 1, doc.ID, DocumentChanges{
		OriginalName:  &name,
		SetCollection: true,
		CollectionID:  nil,
		Tags:          &tags,
	})
	require.NoError(t, err)
	assert.True(t, matched)

	got, err := repo.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "final", got.OriginalName)
	assert.Nil(t, got.CollectionID)
	assert.Equal(t, []string{"c"}, got.Tags)

	matched, err = repo.ApplyChanges(ctx, 2, doc.ID, DocumentChanges{Tags: &tags})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestStatsAggregates(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	coll := uint(9)
	seedDocument(t, repo, docSeed{name: "a", size: 1 * mb, pages: 10, tags: []string{"go", "db"}, collection: &coll})
	seedDocument(t, repo, docSeed{name: "b", size: 3 * mb, pages: 20, tags: []string{"go"}, collection: &coll})
	seedDocument(t, repo, docSeed{name: "c", size: 2 * mb, pages: 30, tags: []string{"misc"}, created: time.Now().UTC()})
	seedDocument(t, repo, docSeed{name: "d", size: 50 * mb, pages: 99, tags: []string{"go"}, deleted: true})

	totals, err := repo.Totals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.TotalDocuments)
	assert.Equal(t, 6*mb, totals.TotalSize)
	assert.Equal(t, int64(60), totals.TotalPages)
	assert.InDelta(t, 20.0, totals.AvgPageCount, 0.001)
	assert.InDelta(t, float64(2*mb), totals.AvgFileSize, 0.001)

	recent, err := repo.CountCreatedSince(ctx, 1, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), recent)

	usage, err := repo.UsageByCollection(ctx, 1)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	byKey := map[string]CollectionUsage{}
	for _, u := range usage {
		key := "none"
		if u.CollectionID != nil {
			key = fmt.Sprint(*u.CollectionID)
		}
		byKey[key] = u
	}
	assert.Equal(t, int64(2), byKey["9"].DocumentCount)
	assert.Equal(t, 4*mb, byKey["9"].TotalSize)
	assert.Equal(t, int64(1), byKey["none"].DocumentCount)

	top, err := repo.TopTags(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "go", top[0].Name)
	assert.Equal(t, int64(2), top[0].UsageCount)
	assert.Equal(t, "db", top[1].Name)
}

func TestRecentOrdersByLastOpened(t *testing.T) {
	repo := NewDocumentRepository(setupTestDB(t))
	ctx := context.Background()
	a := seedDocument(t, repo, docSeed{name: "a", size: mb})
	b := seedDocument(t, repo, docSeed{name: "b", size: mb})
	seedDocument(t, repo, docSeed{name: "never", size: mb})

	require.NoError(t, repo.RecordOpen(ctx, a.ID, 1, t0.Add(2*time.Hour)))
	require.NoError(t, repo.RecordOpen(ctx, b.ID, 1, t0.Add(time.Hour)))
	require.NoError(t, repo.RecordOpen(ctx, a.ID, 1, t0.Add(3*time.Hour)))

	docs, err := repo.Recent(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, ids(docs))
	assert.Equal(t, 2, docs[0].OpenCount)
}
