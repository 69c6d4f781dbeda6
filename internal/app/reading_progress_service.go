package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"pdfshelf/internal/model"
	"pdfshelf/internal/repository"
)

const (
	MinZoom            = 0.25
	MaxZoom            = 5.0
	recentProgressSize = 20
)

type ReadingProgressService struct {
	progressRepo *repository.ReadingProgressRepository
	documentRepo *repository.DocumentRepository
	logger       logrus.FieldLogger
	now          func() time.Time
}

func NewReadingProgressService(progressRepo *repository.ReadingProgressRepository, documentRepo *repository.DocumentRepository, logger logrus.FieldLogger) *ReadingProgressService {
	return &ReadingProgressService{
		progressRepo: progressRepo,
		documentRepo: documentRepo,
		logger:       logger,
		now:          time.Now,
	}
}

type UpdateProgressInput struct {
	CurrentPage int
	Zoom        *float64
	ViewMode    *string
}

// Get returns the stored progress or the starting position for an unread document.
func (s *ReadingProgressService) Get(ctx context.Context, userID, documentID uint) (*model.ReadingProgress, error) {
	doc, err := s.documentRepo.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	progress, err := s.progressRepo.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		return progress, nil
	}
	return &model.ReadingProgress{
		UserID:      userID,
		DocumentID:  documentID,
		CurrentPage: 1,
		TotalPages:  doc.PageCount,
		Percentage:  0,
		Zoom:        1,
		ViewMode:    model.ViewModeContinuous,
	}, nil
}

func (s *ReadingProgressService) Update(ctx context.Context, userID, documentID uint, input UpdateProgressInput) (*model.ReadingProgress, error) {
	doc, err := s.documentRepo.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	current, err := s.progressRepo.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	zoom, viewMode := 1.0, model.ViewModeContinuous
	if current != nil {
		zoom, viewMode = current.Zoom, current.ViewMode
	}
	if input.Zoom != nil {
		zoom = *input.Zoom
	}
	if input.ViewMode != nil {
		viewMode = strings.TrimSpace(*input.ViewMode)
	}

	total := doc.PageCount
	maxPage := total
	if maxPage < 1 {
		maxPage = 1
	}
	err = validation.Errors{
		"current_page": validation.Validate(input.CurrentPage, validation.Required, validation.Min(1), validation.Max(maxPage)),
		"zoom":         validation.Validate(zoom, validation.Min(MinZoom), validation.Max(MaxZoom)),
		"view_mode":    validation.Validate(viewMode, validation.Required, validation.In(model.ViewModeSingle, model.ViewModeContinuous)),
	}.Filter()
	if err != nil {
		return nil, invalid(err)
	}

	now := s.now().UTC()
	progress := &model.ReadingProgress{
		UserID:      userID,
		DocumentID:  documentID,
		CurrentPage: input.CurrentPage,
		TotalPages:  total,
		Percentage:  percentage(input.CurrentPage, total),
		Zoom:        zoom,
		ViewMode:    viewMode,
		LastReadAt:  now,
	}
	if err := s.progressRepo.Upsert(ctx, progress); err != nil {
		return nil, err
	}
	if err := s.documentRepo.TouchLastOpened(ctx, documentID, userID, now); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"user_id": userID, "document_id": documentID}).Warn("touch document after progress update failed")
	}

	saved, err := s.progressRepo.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("reading progress for document %d was not stored", documentID)
	}
	return saved, nil
}

func (s *ReadingProgressService) Recent(ctx context.Context, userID uint) ([]model.ReadingProgress, error) {
	return s.progressRepo.ListRecent(ctx, userID, recentProgressSize)
}

func percentage(current, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(current) / float64(total) * 100))
	if p > 100 {
		p = 100
	}
	return p
}
