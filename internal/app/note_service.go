package app

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"pdfshelf/internal/model"
	"pdfshelf/internal/repository"
)

const maxNoteRunes = 5000

type NoteService struct {
	noteRepo     *repository.NoteRepository
	documentRepo *repository.DocumentRepository
}

func NewNoteService(noteRepo *repository.NoteRepository, documentRepo *repository.DocumentRepository) *NoteService {
	return &NoteService{noteRepo: noteRepo, documentRepo: documentRepo}
}

type CreateNoteInput struct {
	DocumentID uint
	PageNumber int
	Content    string
	Color      string
}

type UpdateNoteInput struct {
	Content *string
	Color   *string
}

func paletteRule() validation.Rule {
	colors := make([]interface{}, 0, len(model.NotePalette))
	for _, c := range model.NotePalette {
		colors = append(colors, c)
	}
	return validation.In(colors...).Error("must be one of the note palette colors")
}

func (s *NoteService) Create(ctx context.Context, userID uint, input CreateNoteInput) (*model.Note, error) {
	note := &model.Note{
		UserID:     userID,
		DocumentID: input.DocumentID,
		PageNumber: input.PageNumber,
		Content:    strings.TrimSpace(input.Content),
		Color:      strings.ToLower(strings.TrimSpace(input.Color)),
	}
	if note.Color == "" {
		note.Color = model.DefaultNoteColor
	}

	doc, err := s.documentRepo.GetByIDAndUserID(ctx, input.DocumentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	maxPage := doc.PageCount
	if maxPage < 1 {
		maxPage = 1
	}
	err = validation.Errors{
		"content":     validation.Validate(note.Content, validation.Required, validation.RuneLength(1, maxNoteRunes)),
		"color":       validation.Validate(note.Color, paletteRule()),
		"page_number": validation.Validate(note.PageNumber, validation.Required, validation.Min(1), validation.Max(maxPage)),
	}.Filter()
	if err != nil {
		return nil, invalid(err)
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// ListByDocument returns the document's notes; page 0 lists every page.
func (s *NoteService) ListByDocument(ctx context.Context, userID, documentID uint, page int) ([]model.Note, error) {
	if page < 0 {
		return nil, fmt.Errorf("%w: page must not be negative", ErrInvalidInput)
	}
	doc, err := s.documentRepo.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return s.noteRepo.ListByDocument(ctx, userID, documentID, page)
}

func (s *NoteService) Update(ctx context.Context, userID, id uint, input UpdateNoteInput) (*model.Note, error) {
	if input.Content == nil && input.Color == nil {
		return nil, ErrNoUpdateFields
	}
	note, err := s.noteRepo.GetByIDAndUserID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}

	if input.Content != nil {
		note.Content = strings.TrimSpace(*input.Content)
	}
	if input.Color != nil {
		note.Color = strings.ToLower(strings.TrimSpace(*input.Color))
	}
	err = validation.Errors{
		"content": validation.Validate(note.Content, validation.Required, validation.RuneLength(1, maxNoteRunes)),
		"color":   validation.Validate(note.Color, validation.Required, paletteRule()),
	}.Filter()
	if err != nil {
		return nil, invalid(err)
	}

	if err := s.noteRepo.Update(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, userID, id uint) error {
	ok, err := s.noteRepo.SoftDelete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoteNotFound
	}
	return nil
}
