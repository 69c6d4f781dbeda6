package app

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfshelf/internal/ai"
	"pdfshelf/internal/model"
)

var longText = strings.Repeat("Distributed systems need careful failure handling. ", 4)

func TestTextExtractionWithTextSkipsOCR(t *testing.T) {
	f := newFixture(t)
	f.inspector.text = longText
	svc := f.enrichmentService()
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "a", size: mb})

	require.NoError(t, svc.HandleJob(ctx, model.EnrichmentJob{Kind: model.JobTextExtraction, DocumentID: doc.ID, UserID: 1}))

	got, err := f.documents.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionCompleted, got.TextExtractionStatus)
	assert.True(t, got.HasText)
	assert.Equal(t, model.OCRNotNeeded, got.OCRStatus)
	assert.Equal(t, strings.TrimSpace(longText), got.ExtractedText)
	assert.Empty(t, f.jobs.jobs)
}

func TestTextExtractionWithoutTextQueuesOCR(t *testing.T) {
	f := newFixture(t)
	f.inspector.text = "  page 1  "
	svc := f.enrichmentService()
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "scan", size: mb})

	status, err := svc.ExtractText(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionCompleted, status.TextExtractionStatus)
	assert.False(t, status.HasText)
	assert.Equal(t, model.ExtractionPending, status.OCRStatus)
	assert.Equal(t, []string{model.JobOCR}, f.jobs.kinds())
}

func TestTextExtractionFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.inspector.textErr = errBoom
	svc := f.enrichmentService()
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "broken", size: mb})

	require.NoError(t, svc.HandleJob(ctx, model.EnrichmentJob{Kind: model.JobTextExtraction, DocumentID: doc.ID, UserID: 1}))

	status, err := svc.Status(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionFailed, status.TextExtractionStatus)
}

func TestTextExtractionJobIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.inspector.text = longText
	svc := f.enrichmentService()
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "a", size: mb})
	job := model.EnrichmentJob{Kind: model.JobTextExtraction, DocumentID: doc.ID, UserID: 1}

	require.NoError(t, svc.HandleJob(ctx, job))
	f.inspector.text = "changed"
	svc = f.enrichmentService()
	require.NoError(t, svc.HandleJob(ctx, job))

	got, err := f.documents.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(longText), got.ExtractedText)
}

func TestThumbnailJobStoresOnce(t *testing.T) {
	f := newFixture(t)
	svc := f.enrichmentService()
	ctx := context.Background()
	c := f.seedCollection(t, 1, "Red", nil)
	_, err := f.collectionService().Update(ctx, 1, c.ID, UpdateCollectionInput{Color: strPtr("#ff0000")})
	require.NoError(t, err)
	doc := f.seedDocument(t, docSeed{name: "a", size: mb, collection: &c.ID})
	job := model.EnrichmentJob{Kind: model.JobThumbnail, DocumentID: doc.ID, UserID: 1}

	require.NoError(t, svc.HandleJob(ctx, job))
	require.NoError(t, svc.HandleJob(ctx, job))
	assert.Equal(t, 1, f.storage.puts)

	got, err := f.documents.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "users/1/thumbnails/a.png", got.ThumbnailRef)
	assert.True(t, strings.HasPrefix(string(f.storage.objects[got.ThumbnailRef]), "\x89PNG"))
}

func TestOCRUsesLLMAndFillsMissingText(t *testing.T) {
	f := newFixture(t)
	f.inspector.text = "Th e qu ick br own fox"
	f.llm.reply = "The quick brown fox"
	svc := f.enrichmentService()
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "scan", size: mb})

	status, err := svc.RunOCR(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionCompleted, status.OCRStatus)

	got, err := f.documents.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "The quick brown fox", got.OCRText)
	assert.Equal(t, "The quick brown fox", got.ExtractedText)
	require.Len(t, f.llm.calls, 1)
	assert.Equal(t, "Th e qu ick br own fox", f.llm.calls[0][1].Content)

	require.NoError(t, svc.HandleJob(ctx, model.EnrichmentJob{Kind: model.JobOCR, DocumentID: doc.ID, UserID: 1}))
	assert.Len(t, f.llm.calls, 1)
}

func TestOCRFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.inspector.text = "faint text"
	f.llm.err = errBoom
	svc := f.enrichmentService()
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "scan", size: mb})

	require.NoError(t, svc.HandleJob(ctx, model.EnrichmentJob{Kind: model.JobOCR, DocumentID: doc.ID, UserID: 1}))
	status, err := svc.Status(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionFailed, status.OCRStatus)
	assert.Contains(t, status.OCRError, "boom")
}

func TestOCRWithoutLLM(t *testing.T) {
	f := newFixture(t)
	svc := NewEnrichmentService(f.documents, f.collections, f.storage, f.inspector, nil, ai.ChatConfig{}, f.jobs, f.metrics, f.logger)
	doc := f.seedDocument(t, docSeed{name: "scan", size: mb})

	_, err := svc.RunOCR(context.Background(), 1, doc.ID)
	assert.ErrorIs(t, err, ErrLLMNotConfigured)
	assert.NoError(t, svc.HandleJob(context.Background(), model.EnrichmentJob{Kind: model.JobOCR, DocumentID: doc.ID, UserID: 1}))
}

func TestStorageCleanupOnlyForDeletedDocuments(t *testing.T) {
	f := newFixture(t)
	svc := f.enrichmentService()
	ctx := context.Background()
	live := f.seedDocument(t, docSeed{name: "live", size: mb})
	gone := f.seedDocument(t, docSeed{name: "gone", size: mb})
	_, err := f.documents.SoftDelete(ctx, 1, gone.ID)
	require.NoError(t, err)

	require.NoError(t, svc.HandleJob(ctx, model.EnrichmentJob{Kind: model.JobStorageCleanup, DocumentID: live.ID, UserID: 1}))
	require.NoError(t, svc.HandleJob(ctx, model.EnrichmentJob{Kind: model.JobStorageCleanup, DocumentID: gone.ID, UserID: 1}))
	assert.Equal(t, []string{gone.StorageRef}, f.storage.deleted)

	f.storage.deleteErr = errBoom
	assert.ErrorIs(t, svc.HandleJob(ctx, model.EnrichmentJob{Kind: model.JobStorageCleanup, DocumentID: gone.ID, UserID: 1}), ErrStorageUnavailable)
}

func TestHandleUnknownJob(t *testing.T) {
	f := newFixture(t)
	err := f.enrichmentService().HandleJob(context.Background(), model.EnrichmentJob{Kind: "resize"})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestSearchTextFindsMatchesWithContext(t *testing.T) {
	f := newFixture(t)
	svc := f.enrichmentService()
	ctx := context.Background()
	text := "Größe matters. " + strings.Repeat("x", 80) + " the GOPHER sleeps; a gopher wakes."
	doc := f.seedDocument(t, docSeed{name: "a", size: mb, text: text})

	result, err := svc.SearchText(ctx, 1, doc.ID, "gopher")
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	assert.Equal(t, "GOPHER", result.Matches[0].Match)
	assert.Equal(t, "gopher", result.Matches[1].Match)
	assert.Equal(t, utf8.RuneCountInString(text[:strings.Index(text, "GOPHER")]), result.Matches[0].Position)
	assert.True(t, strings.HasSuffix(result.Matches[0].Context, "sleeps; a gopher wakes."))
	assert.False(t, strings.Contains(result.Matches[0].Context, "Größe"))

	result, err = svc.SearchText(ctx, 1, doc.ID, "a.b")
	require.NoError(t, err)
	assert.Zero(t, result.Total)

	_, err = svc.SearchText(ctx, 1, doc.ID, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchTextCapsMatches(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, docSeed{name: "a", size: mb, text: strings.Repeat("ab ", 150)})

	result, err := f.enrichmentService().SearchText(context.Background(), 1, doc.ID, "AB")
	require.NoError(t, err)
	assert.Equal(t, 150, result.Total)
	assert.True(t, result.Truncated)
	assert.Len(t, result.Matches, maxTextMatches)
}
