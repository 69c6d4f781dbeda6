package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfshelf/internal/model"
	"pdfshelf/internal/repository"
)

func TestNoteLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := NewNoteService(repository.NewNoteRepository(f.db), f.documents)
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "book", size: mb, pages: 5})

	first, err := svc.Create(ctx, 1, CreateNoteInput{DocumentID: doc.ID, PageNumber: 2, Content: " first "})
	require.NoError(t, err)
	assert.Equal(t, "first", first.Content)
	assert.Equal(t, model.DefaultNoteColor, first.Color)

	_, err = svc.Create(ctx, 1, CreateNoteInput{DocumentID: doc.ID, PageNumber: 1, Content: "intro", Color: "#60A5FA"})
	require.NoError(t, err)

	for _, in := range []CreateNoteInput{
		{DocumentID: doc.ID, PageNumber: 6, Content: "past the end"},
		{DocumentID: doc.ID, PageNumber: 0, Content: "no page"},
		{DocumentID: doc.ID, PageNumber: 1, Content: ""},
		{DocumentID: doc.ID, PageNumber: 1, Content: "x", Color: "#000000"},
	} {
		_, err := svc.Create(ctx, 1, in)
		assert.ErrorIs(t, err, ErrInvalidInput, in)
	}
	_, err = svc.Create(ctx, 2, CreateNoteInput{DocumentID: doc.ID, PageNumber: 1, Content: "x"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	notes, err := svc.ListByDocument(ctx, 1, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, 1, notes[0].PageNumber)

	onPage, err := svc.ListByDocument(ctx, 1, doc.ID, 2)
	require.NoError(t, err)
	assert.Len(t, onPage, 1)

	updated, err := svc.Update(ctx, 1, first.ID, UpdateNoteInput{Color: strPtr("#34d399")})
	require.NoError(t, err)
	assert.Equal(t, "#34d399", updated.Color)
	assert.Equal(t, "first", updated.Content)

	_, err = svc.Update(ctx, 1, first.ID, UpdateNoteInput{})
	assert.ErrorIs(t, err, ErrNoUpdateFields)

	require.NoError(t, svc.Delete(ctx, 1, first.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1, first.ID), ErrNoteNotFound)
	_, err = svc.Update(ctx, 1, first.ID, UpdateNoteInput{Content: strPtr("again")})
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestReadingProgress(t *testing.T) {
	f := newFixture(t)
	svc := NewReadingProgressService(repository.NewReadingProgressRepository(f.db), f.documents, f.logger)
	ctx := context.Background()
	doc := f.seedDocument(t, docSeed{name: "book", size: mb, pages: 8})
	other := f.seedDocument(t, docSeed{name: "other", size: mb, pages: 3})

	initial, err := svc.Get(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, initial.CurrentPage)
	assert.Equal(t, 8, initial.TotalPages)
	assert.Equal(t, model.ViewModeContinuous, initial.ViewMode)
	assert.Equal(t, 1.0, initial.Zoom)

	svc.now = func() time.Time { return t0 }
	saved, err := svc.Update(ctx, 1, doc.ID, UpdateProgressInput{CurrentPage: 3, Zoom: floatPtr(1.5), ViewMode: strPtr(model.ViewModeSingle)})
	require.NoError(t, err)
	assert.Equal(t, 38, saved.Percentage)
	assert.Equal(t, 1.5, saved.Zoom)

	svc.now = func() time.Time { return t0.Add(time.Minute) }
	saved, err = svc.Update(ctx, 1, doc.ID, UpdateProgressInput{CurrentPage: 8})
	require.NoError(t, err)
	assert.Equal(t, 100, saved.Percentage)
	assert.Equal(t, 1.5, saved.Zoom)
	assert.Equal(t, model.ViewModeSingle, saved.ViewMode)

	svc.now = func() time.Time { return t0.Add(2 * time.Minute) }
	_, err = svc.Update(ctx, 1, other.ID, UpdateProgressInput{CurrentPage: 1})
	require.NoError(t, err)

	for _, in := range []UpdateProgressInput{
		{CurrentPage: 9},
		{CurrentPage: 0},
		{CurrentPage: 1, Zoom: floatPtr(6)},
		{CurrentPage: 1, ViewMode: strPtr("spread")},
	} {
		_, err := svc.Update(ctx, 1, doc.ID, in)
		assert.ErrorIs(t, err, ErrInvalidInput, in)
	}

	recent, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, other.ID, recent[0].DocumentID)
	require.NotNil(t, recent[0].Document)
	assert.Equal(t, "other.pdf", recent[0].Document.OriginalName)

	touched, err := f.documents.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, touched.LastOpenedAt)
	assert.True(t, touched.LastOpenedAt.Equal(t0.Add(time.Minute)))

	_, err = f.documents.SoftDelete(ctx, 1, other.ID)
	require.NoError(t, err)
	recent, err = svc.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
