package app

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pdfshelf/internal/metrics"
	"pdfshelf/internal/model"
	"pdfshelf/internal/pkg/optional"
	"pdfshelf/internal/repository"
)

const (
	pdfMimeType        = "application/pdf"
	statsTopTags       = 10
	statsRecentWindow  = 30 * 24 * time.Hour
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

var pdfMagic = []byte("%PDF-")

type DocumentServiceOptions struct {
	URLTTL         time.Duration
	MaxUploadBytes int64
}

// DocumentService owns the document lifecycle: upload, filtered listing,
// edits, soft deletion and statistics.
type DocumentService struct {
	documentRepo   *repository.DocumentRepository
	collectionRepo *repository.CollectionRepository
	storage        ObjectStorage
	inspector      PDFInspector
	jobs           JobPublisher
	metrics        *metrics.Metrics
	logger         logrus.FieldLogger
	opts           DocumentServiceOptions
	now            func() time.Time
}

func NewDocumentService(
	documentRepo *repository.DocumentRepository,
	collectionRepo *repository.CollectionRepository,
	storage ObjectStorage,
	inspector PDFInspector,
	jobs JobPublisher,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
	opts DocumentServiceOptions,
) *DocumentService {
	if opts.URLTTL <= 0 {
		opts.URLTTL = time.Hour
	}
	return &DocumentService{
		documentRepo:   documentRepo,
		collectionRepo: collectionRepo,
		storage:        storage,
		inspector:      inspector,
		jobs:           jobs,
		metrics:        m,
		logger:         logger,
		opts:           opts,
		now:            time.Now,
	}
}

type UploadInput struct {
	Filename     string
	Data         []byte
	CollectionID *uint
	Tags         []string
}

type UpdateDocumentInput struct {
	OriginalName *string
	Tags         *[]string
	CollectionID optional.ID
}

// DocumentPatch is the bulk-editable subset of a document.
type DocumentPatch struct {
	Tags         *[]string   `json:"tags"`
	CollectionID optional.ID `json:"collection_id"`
}

func (p DocumentPatch) empty() bool {
	return p.Tags == nil && !p.CollectionID.Present
}

type DocumentView struct {
	model.Document
	FormattedSize string  `json:"formatted_size"`
	FileURL       *string `json:"file_url"`
	ThumbnailURL  *string `json:"thumbnail_url"`
}

type DocumentPage struct {
	Documents  []DocumentView `json:"documents"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

type CollectionStat struct {
	CollectionID  *uint  `json:"collection_id"`
	Name          string `json:"name"`
	DocumentCount int64  `json:"document_count"`
	TotalSize     int64  `json:"total_size"`
	FormattedSize string `json:"formatted_size"`
}

type TagStat struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type DocumentStats struct {
	TotalDocuments       int64            `json:"total_documents"`
	TotalSize            int64            `json:"total_size"`
	FormattedTotalSize   string           `json:"formatted_total_size"`
	TotalPages           int64            `json:"total_pages"`
	AvgPageCount         float64          `json:"avg_page_count"`
	AvgFileSize          float64          `json:"avg_file_size"`
	FormattedAvgFileSize string           `json:"formatted_avg_file_size"`
	RecentUploads        int64            `json:"recent_uploads"`
	Collections          []CollectionStat `json:"collections"`
	TopTags              []TagStat        `json:"top_tags"`
}

func (s *DocumentService) Upload(ctx context.Context, userID uint, input UploadInput) (*DocumentView, error) {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(input.Filename, "\\", "/")))
	size := int64(len(input.Data))

	err := validation.Errors{
		"filename": validation.Validate(name, validation.Required, validation.RuneLength(1, 255)),
	}.Filter()
	if err != nil {
		return nil, invalid(err)
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") || !bytes.HasPrefix(input.Data, pdfMagic) {
		return nil, fmt.Errorf("%w: only PDF files are accepted", ErrInvalidPDF)
	}
	if s.opts.MaxUploadBytes > 0 && size > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %s", ErrInvalidInput, humanize.IBytes(uint64(s.opts.MaxUploadBytes)))
	}

	tags, err := normalizeTags(input.Tags)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCollection(ctx, userID, input.CollectionID); err != nil {
		return nil, err
	}

	pages, err := s.inspector.PageCount(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPDF, err.Error())
	}

	stored := uuid.NewString() + ".pdf"
	key := fmt.Sprintf("users/%d/documents/%s", userID, stored)
	ref, err := s.storage.Put(ctx, key, input.Data, pdfMimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}

	doc := &model.Document{
		UserID:               userID,
		Filename:             stored,
		OriginalName:         name,
		StorageRef:           ref,
		MimeType:             pdfMimeType,
		FileSize:             size,
		PageCount:            pages,
		CollectionID:         input.CollectionID,
		TextExtractionStatus: model.ExtractionPending,
		OCRStatus:            model.ExtractionPending,
		TagLinks:             repository.NewTagLinks(userID, tags),
	}
	if err := s.documentRepo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, ref); delErr != nil {
			s.logger.WithError(delErr).WithField("storage_ref", ref).Warn("remove orphaned upload failed")
		}
		return nil, err
	}
	s.metrics.ObserveUpload(size)

	s.enqueue(ctx, model.EnrichmentJob{Kind: model.JobThumbnail, DocumentID: doc.ID, UserID: userID})
	s.enqueue(ctx, model.EnrichmentJob{Kind: model.JobTextExtraction, DocumentID: doc.ID, UserID: userID})

	view := s.view(ctx, *doc)
	return &view, nil
}

func (s *DocumentService) List(ctx context.Context, userID uint, filter DocumentFilter) (*DocumentPage, error) {
	query, page, limit, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	docs, total, err := s.documentRepo.List(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	return &DocumentPage{
		Documents:  s.views(ctx, docs),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// Search is a name-only lookup for quick pickers.
func (s *DocumentService) Search(ctx context.Context, userID uint, term string, limit int) ([]DocumentView, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []DocumentView{}, nil
	}
	_, limit = clampPage(1, limit, defaultSearchLimit, maxSearchLimit)
	docs, _, err := s.documentRepo.List(ctx, userID, repository.DocumentQuery{
		Search: term,
		Sort:   repository.DocumentSort{Key: repository.SortCreatedAt, Desc: true},
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, docs), nil
}

func (s *DocumentService) Recent(ctx context.Context, userID uint, limit int) ([]DocumentView, error) {
	_, limit = clampPage(1, limit, defaultRecentLimit, maxRecentLimit)
	docs, err := s.documentRepo.Recent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, docs), nil
}

// Get returns one active document and records the open.
func (s *DocumentService) Get(ctx context.Context, userID, id uint) (*DocumentView, error) {
	doc, err := s.documentRepo.GetByIDAndUserID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	now := s.now().UTC()
	if err := s.documentRepo.RecordOpen(ctx, id, userID, now); err != nil {
		return nil, err
	}
	doc.OpenCount++
	doc.LastOpenedAt = &now

	view := s.view(ctx, *doc)
	return &view, nil
}

func (s *DocumentService) Update(ctx context.Context, userID, id uint, input UpdateDocumentInput) (*DocumentView, error) {
	if input.OriginalName == nil && input.Tags == nil && !input.CollectionID.Present {
		return nil, ErrNoUpdateFields
	}

	changes := repository.DocumentChanges{
		SetCollection: input.CollectionID.Present,
		CollectionID:  input.CollectionID.Value,
	}
	if input.OriginalName != nil {
		name := strings.TrimSpace(*input.OriginalName)
		if name == "" || utf8.RuneCountInString(name) > 255 {
			return nil, fmt.Errorf("%w: original_name must be 1 to 255 characters", ErrInvalidInput)
		}
		changes.OriginalName = &name
	}
	if input.Tags != nil {
		tags, err := normalizeTags(*input.Tags)
		if err != nil {
			return nil, err
		}
		changes.Tags = &tags
	}
	if changes.SetCollection {
		if err := s.ensureCollection(ctx, userID, changes.CollectionID); err != nil {
			return nil, err
		}
	}

	matched, err := s.documentRepo.ApplyChanges(ctx, userID, id, changes)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, ErrDocumentNotFound
	}

	doc, err := s.documentRepo.GetByIDAndUserID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	view := s.view(ctx, *doc)
	return &view, nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, id uint) error {
	n, err := s.BulkDelete(ctx, userID, []uint{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// BulkDelete soft-deletes each listed document independently and returns how
// many were deleted. Storage cleanup is scheduled per document.
func (s *DocumentService) BulkDelete(ctx context.Context, userID uint, ids []uint) (int, error) {
	ids, err := uniqueIDs(ids)
	if err != nil {
		return 0, err
	}

	deleted, failed := 0, 0
	for _, id := range ids {
		fields := logrus.Fields{"user_id": userID, "document_id": id}
		doc, err := s.documentRepo.GetByIDAndUserID(ctx, id, userID)
		if err != nil {
			failed++
			s.logger.WithError(err).WithFields(fields).Warn("bulk delete skipped document")
			continue
		}
		if doc == nil {
			continue
		}
		ok, err := s.documentRepo.SoftDelete(ctx, userID, id)
		if err != nil {
			failed++
			s.logger.WithError(err).WithFields(fields).Warn("bulk delete skipped document")
			continue
		}
		if !ok {
			continue
		}
		deleted++
		s.scheduleCleanup(ctx, *doc)
	}
	if deleted == 0 {
		if failed > 0 {
			return 0, fmt.Errorf("bulk delete failed for %d document(s)", failed)
		}
		return 0, ErrDocumentNotFound
	}
	return deleted, nil
}

// BulkUpdate applies the same patch to each document independently and
// returns how many matched.
func (s *DocumentService) BulkUpdate(ctx context.Context, userID uint, ids []uint, patch DocumentPatch) (int, error) {
	ids, err := uniqueIDs(ids)
	if err != nil {
		return 0, err
	}
	if patch.empty() {
		return 0, ErrNoUpdateFields
	}

	changes := repository.DocumentChanges{
		SetCollection: patch.CollectionID.Present,
		CollectionID:  patch.CollectionID.Value,
	}
	if patch.Tags != nil {
		tags, err := normalizeTags(*patch.Tags)
		if err != nil {
			return 0, err
		}
		changes.Tags = &tags
	}
	if changes.SetCollection {
		if err := s.ensureCollection(ctx, userID, changes.CollectionID); err != nil {
			return 0, err
		}
	}

	modified := 0
	for _, id := range ids {
		matched, err := s.documentRepo.ApplyChanges(ctx, userID, id, changes)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{"user_id": userID, "document_id": id}).Warn("bulk update skipped document")
			continue
		}
		if matched {
			modified++
		}
	}
	return modified, nil
}

// BulkMove moves documents into collectionID, or out of any collection when nil.
func (s *DocumentService) BulkMove(ctx context.Context, userID uint, ids []uint, collectionID *uint) (int, error) {
	target := optional.Null()
	if collectionID != nil {
		target = optional.Set(*collectionID)
	}
	return s.BulkUpdate(ctx, userID, ids, DocumentPatch{CollectionID: target})
}

func (s *DocumentService) Stats(ctx context.Context, userID uint) (*DocumentStats, error) {
	totals, err := s.documentRepo.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.documentRepo.CountCreatedSince(ctx, userID, s.now().UTC().Add(-statsRecentWindow))
	if err != nil {
		return nil, err
	}
	usage, err := s.documentRepo.UsageByCollection(ctx, userID)
	if err != nil {
		return nil, err
	}
	tags, err := s.documentRepo.TopTags(ctx, userID, statsTopTags)
	if err != nil {
		return nil, err
	}
	collections, err := s.collectionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make(map[uint]string, len(collections))
	for _, c := range collections {
		names[c.ID] = c.Name
	}

	stats := &DocumentStats{
		TotalDocuments:       totals.TotalDocuments,
		TotalSize:            totals.TotalSize,
		FormattedTotalSize:   humanize.IBytes(uint64(totals.TotalSize)),
		TotalPages:           totals.TotalPages,
		AvgPageCount:         totals.AvgPageCount,
		AvgFileSize:          totals.AvgFileSize,
		FormattedAvgFileSize: humanize.IBytes(uint64(totals.AvgFileSize)),
		RecentUploads:        recent,
		Collections:          make([]CollectionStat, 0, len(usage)),
		TopTags:              make([]TagStat, 0, len(tags)),
	}
	for _, u := range usage {
		name := "Uncategorized"
		if u.CollectionID != nil {
			name = names[*u.CollectionID]
		}
		stats.Collections = append(stats.Collections, CollectionStat{
			CollectionID:  u.CollectionID,
			Name:          name,
			DocumentCount: u.DocumentCount,
			TotalSize:     u.TotalSize,
			FormattedSize: humanize.IBytes(uint64(u.TotalSize)),
		})
	}
	for _, t := range tags {
		stats.TopTags = append(stats.TopTags, TagStat{Name: t.Name, Count: t.UsageCount})
	}
	return stats, nil
}

func (s *DocumentService) ensureCollection(ctx context.Context, userID uint, id *uint) error {
	if id == nil {
		return nil
	}
	collection, err := s.collectionRepo.GetByIDAndUserID(ctx, *id, userID)
	if err != nil {
		return err
	}
	if collection == nil {
		return fmt.Errorf("%w: %d", ErrCollectionNotFound, *id)
	}
	return nil
}

func (s *DocumentService) enqueue(ctx context.Context, job model.EnrichmentJob) bool {
	if s.jobs == nil {
		return false
	}
	if err := s.jobs.Publish(ctx, job); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"job_kind":    job.Kind,
			"document_id": job.DocumentID,
			"user_id":     job.UserID,
		}).Warn("enqueue enrichment job failed")
		return false
	}
	return true
}

// scheduleCleanup queues removal of the stored objects, falling back to an
// inline attempt when the queue is unavailable. Failures are only logged.
func (s *DocumentService) scheduleCleanup(ctx context.Context, doc model.Document) {
	if s.enqueue(ctx, model.EnrichmentJob{Kind: model.JobStorageCleanup, DocumentID: doc.ID, UserID: doc.UserID}) {
		return
	}
	removeStoredObjects(ctx, s.storage, s.metrics, s.logger, doc)
}

func removeStoredObjects(ctx context.Context, storage ObjectStorage, m *metrics.Metrics, logger logrus.FieldLogger, doc model.Document) bool {
	ok := true
	for _, ref := range []string{doc.StorageRef, doc.ThumbnailRef} {
		if ref == "" {
			continue
		}
		if err := storage.Delete(ctx, ref); err != nil {
			ok = false
			logger.WithError(err).WithFields(logrus.Fields{
				"document_id": doc.ID,
				"storage_ref": ref,
			}).Warn("remove stored object failed")
		}
	}
	m.ObserveCleanup(ok)
	return ok
}

func (s *DocumentService) views(ctx context.Context, docs []model.Document) []DocumentView {
	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, s.view(ctx, d))
	}
	return views
}

func (s *DocumentService) view(ctx context.Context, doc model.Document) DocumentView {
	if doc.Tags == nil {
		doc.FillTags()
	}
	return DocumentView{
		Document:      doc,
		FormattedSize: humanize.IBytes(uint64(doc.FileSize)),
		FileURL:       s.temporaryURL(ctx, doc.ID, doc.StorageRef),
		ThumbnailURL:  s.temporaryURL(ctx, doc.ID, doc.ThumbnailRef),
	}
}

func (s *DocumentService) temporaryURL(ctx context.Context, documentID uint, ref string) *string {
	if ref == "" {
		return nil
	}
	url, err := s.storage.TemporaryURL(ctx, ref, s.opts.URLTTL)
	if err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Warn("sign storage url failed")
		return nil
	}
	return &url
}

func uniqueIDs(ids []uint) ([]uint, error) {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: document_ids is required", ErrInvalidInput)
	}
	return out, nil
}
