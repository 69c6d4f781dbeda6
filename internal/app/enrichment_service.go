package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"pdfshelf/internal/ai"
	"pdfshelf/internal/metrics"
	"pdfshelf/internal/model"
	"pdfshelf/internal/pkg/pdfextract"
	"pdfshelf/internal/pkg/thumbnail"
	"pdfshelf/internal/repository"
)

const (
	maxTextMatches   = 100
	matchContextRune = 50
	ocrInputChars    = 12000
	maxOCRErrorRunes = 1000
)

var ErrUnknownJob = errors.New("unknown enrichment job")

const ocrSystemPrompt = "You restore text recovered from scanned PDF pages. " +
	"Fix broken words, hyphenation and line breaks, keep the original language and wording, " +
	"and reply with the cleaned text only."

// EnrichmentService runs the background steps that follow an upload. Every
// step re-reads the document and does nothing when its work is already done.
type EnrichmentService struct {
	documentRepo   *repository.DocumentRepository
	collectionRepo *repository.CollectionRepository
	storage        ObjectStorage
	inspector      PDFInspector
	llm            LLMClient
	llmCfg         ai.ChatConfig
	jobs           JobPublisher
	metrics        *metrics.Metrics
	logger         logrus.FieldLogger
}

func NewEnrichmentService(
	documentRepo *repository.DocumentRepository,
	collectionRepo *repository.CollectionRepository,
	storage ObjectStorage,
	inspector PDFInspector,
	llm LLMClient,
	llmCfg ai.ChatConfig,
	jobs JobPublisher,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) *EnrichmentService {
	return &EnrichmentService{
		documentRepo:   documentRepo,
		collectionRepo: collectionRepo,
		storage:        storage,
		inspector:      inspector,
		llm:            llm,
		llmCfg:         llmCfg,
		jobs:           jobs,
		metrics:        m,
		logger:         logger,
	}
}

type TextStatus struct {
	DocumentID           uint   `json:"document_id"`
	TextExtractionStatus string `json:"text_extraction_status"`
	HasText              bool   `json:"has_text"`
	OCRStatus            string `json:"ocr_status"`
	OCRError             string `json:"ocr_error,omitempty"`
	TextLength           int    `json:"text_length"`
}

type TextMatch struct {
	Position int    `json:"position"`
	Match    string `json:"match"`
	Context  string `json:"context"`
}

type TextSearchResult struct {
	Query     string      `json:"query"`
	Total     int         `json:"total"`
	Truncated bool        `json:"truncated"`
	Matches   []TextMatch `json:"matches"`
}

func (s *EnrichmentService) llmEnabled() bool {
	return s.llm != nil && s.llmCfg.APIKey != "" && s.llmCfg.BaseURL != ""
}

// HandleJob dispatches a queued job. A returned error means the job may be
// retried; terminal failures are recorded on the document instead.
func (s *EnrichmentService) HandleJob(ctx context.Context, job model.EnrichmentJob) error {
	var err error
	switch job.Kind {
	case model.JobThumbnail:
		err = s.GenerateThumbnail(ctx, job.UserID, job.DocumentID)
	case model.JobTextExtraction:
		_, err = s.extractText(ctx, job.UserID, job.DocumentID, false)
	case model.JobOCR:
		_, err = s.runOCR(ctx, job.UserID, job.DocumentID, false)
		if errors.Is(err, ErrLLMNotConfigured) {
			err = nil
		}
	case model.JobStorageCleanup:
		err = s.CleanupStorage(ctx, job.UserID, job.DocumentID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownJob, job.Kind)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveJob(job.Kind, outcome)
	return err
}

func (s *EnrichmentService) GenerateThumbnail(ctx context.Context, userID, documentID uint) error {
	doc, err := s.documentRepo.GetAnyByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil || doc.IsDeleted || doc.ThumbnailRef != "" {
		return nil
	}

	accent := color.Color(thumbnail.DefaultAccent)
	if doc.CollectionID != nil {
		collection, err := s.collectionRepo.GetByIDAndUserID(ctx, *doc.CollectionID, userID)
		if err != nil {
			return err
		}
		if collection != nil {
			if c, ok := parseHexColor(collection.Color); ok {
				accent = c
			}
		}
	}

	png, err := thumbnail.Render(thumbnail.Card{
		Title:     doc.OriginalName,
		PageCount: doc.PageCount,
		SizeLabel: humanize.IBytes(uint64(doc.FileSize)),
		Accent:    accent,
	})
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(doc.Filename, ".pdf")
	ref, err := s.storage.Put(ctx, fmt.Sprintf("users/%d/thumbnails/%s.png", userID, stem), png, "image/png")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}
	return s.documentRepo.UpdateEnrichment(ctx, doc.ID, map[string]interface{}{"thumbnail_ref": ref})
}

// ExtractText re-runs extraction on demand and returns the resulting status.
func (s *EnrichmentService) ExtractText(ctx context.Context, userID, documentID uint) (*TextStatus, error) {
	return s.extractText(ctx, userID, documentID, true)
}

func (s *EnrichmentService) extractText(ctx context.Context, userID, documentID uint, force bool) (*TextStatus, error) {
	doc, err := s.documentRepo.GetAnyByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.IsDeleted {
		if force {
			return nil, ErrDocumentNotFound
		}
		return nil, nil
	}
	if !force && doc.TextExtractionStatus == model.ExtractionCompleted {
		return statusOf(doc), nil
	}

	log := s.logger.WithFields(logrus.Fields{"document_id": doc.ID, "user_id": userID, "job_kind": model.JobTextExtraction})
	if err := s.documentRepo.UpdateEnrichment(ctx, doc.ID, map[string]interface{}{
		"text_extraction_status": model.ExtractionProcessing,
	}); err != nil {
		return nil, err
	}

	data, err := s.storage.Get(ctx, doc.StorageRef)
	if err != nil {
		log.WithError(err).Warn("load document for text extraction failed")
		return s.recordExtraction(ctx, doc, "", false)
	}
	text, err := s.inspector.ExtractText(data)
	if err != nil {
		log.WithError(err).Warn("text extraction failed")
		return s.recordExtraction(ctx, doc, "", false)
	}

	status, err := s.recordExtraction(ctx, doc, text, true)
	if err != nil {
		return nil, err
	}
	if !status.HasText && status.OCRStatus == model.ExtractionPending && s.llmEnabled() {
		s.enqueue(ctx, model.EnrichmentJob{Kind: model.JobOCR, DocumentID: doc.ID, UserID: userID})
	}
	return status, nil
}

func (s *EnrichmentService) recordExtraction(ctx context.Context, doc *model.Document, text string, ok bool) (*TextStatus, error) {
	fields := map[string]interface{}{"text_extraction_status": model.ExtractionFailed}
	doc.TextExtractionStatus = model.ExtractionFailed
	if ok {
		text = strings.TrimSpace(text)
		hasText := pdfextract.HasMeaningfulText(text)
		fields = map[string]interface{}{
			"text_extraction_status": model.ExtractionCompleted,
			"extracted_text":         text,
			"has_text":               hasText,
		}
		doc.TextExtractionStatus = model.ExtractionCompleted
		doc.ExtractedText = text
		doc.HasText = hasText
		if hasText {
			fields["ocr_status"] = model.OCRNotNeeded
			doc.OCRStatus = model.OCRNotNeeded
		}
	}
	if err := s.documentRepo.UpdateEnrichment(ctx, doc.ID, fields); err != nil {
		return nil, err
	}
	return statusOf(doc), nil
}

// RunOCR forces a text-recovery pass through the language model.
func (s *EnrichmentService) RunOCR(ctx context.Context, userID, documentID uint) (*TextStatus, error) {
	return s.runOCR(ctx, userID, documentID, true)
}

func (s *EnrichmentService) runOCR(ctx context.Context, userID, documentID uint, force bool) (*TextStatus, error) {
	doc, err := s.documentRepo.GetAnyByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.IsDeleted {
		if force {
			return nil, ErrDocumentNotFound
		}
		return nil, nil
	}
	if !force && (doc.OCRStatus == model.ExtractionCompleted || doc.OCRStatus == model.OCRNotNeeded) {
		return statusOf(doc), nil
	}
	if !s.llmEnabled() {
		return nil, ErrLLMNotConfigured
	}

	log := s.logger.WithFields(logrus.Fields{"document_id": doc.ID, "user_id": userID, "job_kind": model.JobOCR})
	if err := s.documentRepo.UpdateEnrichment(ctx, doc.ID, map[string]interface{}{
		"ocr_status": model.ExtractionProcessing,
		"ocr_error":  "",
	}); err != nil {
		return nil, err
	}

	raw := doc.ExtractedText
	if raw == "" {
		data, err := s.storage.Get(ctx, doc.StorageRef)
		if err != nil {
			return s.recordOCRFailure(ctx, doc, fmt.Errorf("load document: %w", err))
		}
		if raw, err = s.inspector.ExtractText(data); err != nil {
			return s.recordOCRFailure(ctx, doc, fmt.Errorf("read text layer: %w", err))
		}
	}
	raw = pdfextract.CollapseWhitespace(raw)
	if raw == "" {
		return s.recordOCRFailure(ctx, doc, errors.New("document has no recoverable text layer"))
	}

	cleaned, err := s.llm.Complete(ctx, s.llmCfg, []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: ocrSystemPrompt},
		{Role: ai.RoleUser, Content: truncateRunes(raw, ocrInputChars)},
	})
	if err != nil {
		log.WithError(err).Warn("ocr completion failed")
		return s.recordOCRFailure(ctx, doc, err)
	}
	cleaned = strings.TrimSpace(cleaned)

	fields := map[string]interface{}{
		"ocr_status": model.ExtractionCompleted,
		"ocr_text":   cleaned,
		"ocr_error":  "",
	}
	doc.OCRStatus = model.ExtractionCompleted
	doc.OCRText = cleaned
	doc.OCRError = ""
	if strings.TrimSpace(doc.ExtractedText) == "" {
		doc.ExtractedText = cleaned
		doc.HasText = pdfextract.HasMeaningfulText(cleaned)
		fields["extracted_text"] = cleaned
		fields["has_text"] = doc.HasText
	}
	if err := s.documentRepo.UpdateEnrichment(ctx, doc.ID, fields); err != nil {
		return nil, err
	}
	return statusOf(doc), nil
}

func (s *EnrichmentService) recordOCRFailure(ctx context.Context, doc *model.Document, cause error) (*TextStatus, error) {
	msg := truncateRunes(cause.Error(), maxOCRErrorRunes)
	doc.OCRStatus = model.ExtractionFailed
	doc.OCRError = msg
	if err := s.documentRepo.UpdateEnrichment(ctx, doc.ID, map[string]interface{}{
		"ocr_status": model.ExtractionFailed,
		"ocr_error":  msg,
	}); err != nil {
		return nil, err
	}
	return statusOf(doc), nil
}

// CleanupStorage removes the stored objects of a soft-deleted document.
func (s *EnrichmentService) CleanupStorage(ctx context.Context, userID, documentID uint) error {
	doc, err := s.documentRepo.GetAnyByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil || !doc.IsDeleted {
		return nil
	}
	if !removeStoredObjects(ctx, s.storage, s.metrics, s.logger, *doc) {
		return fmt.Errorf("%w: cleanup of document %d incomplete", ErrStorageUnavailable, doc.ID)
	}
	return nil
}

func (s *EnrichmentService) Status(ctx context.Context, userID, documentID uint) (*TextStatus, error) {
	doc, err := s.documentRepo.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return statusOf(doc), nil
}

// SearchText finds case-insensitive literal matches in the document text.
func (s *EnrichmentService) SearchText(ctx context.Context, userID, documentID uint, query string) (*TextSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: q is required", ErrInvalidInput)
	}
	doc, err := s.documentRepo.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	text := doc.ExtractedText
	if strings.TrimSpace(text) == "" {
		text = doc.OCRText
	}
	result := &TextSearchResult{Query: query, Matches: make([]TextMatch, 0)}
	if text == "" {
		return result, nil
	}

	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	locs := re.FindAllStringIndex(text, -1)
	result.Total = len(locs)
	if len(locs) > maxTextMatches {
		locs = locs[:maxTextMatches]
		result.Truncated = true
	}

	position, consumed := 0, 0
	for _, loc := range locs {
		position += utf8.RuneCountInString(text[consumed:loc[0]])
		consumed = loc[0]
		result.Matches = append(result.Matches, TextMatch{
			Position: position,
			Match:    text[loc[0]:loc[1]],
			Context:  surrounding(text, loc[0], loc[1], matchContextRune),
		})
	}
	return result, nil
}

func (s *EnrichmentService) enqueue(ctx context.Context, job model.EnrichmentJob) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Publish(ctx, job); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"job_kind":    job.Kind,
			"document_id": job.DocumentID,
		}).Warn("enqueue enrichment job failed")
	}
}

func statusOf(doc *model.Document) *TextStatus {
	text := doc.ExtractedText
	if text == "" {
		text = doc.OCRText
	}
	return &TextStatus{
		DocumentID:           doc.ID,
		TextExtractionStatus: doc.TextExtractionStatus,
		HasText:              doc.HasText,
		OCRStatus:            doc.OCRStatus,
		OCRError:             doc.OCRError,
		TextLength:           utf8.RuneCountInString(text),
	}
}

// surrounding returns up to n runes on each side of text[start:end].
func surrounding(text string, start, end, n int) string {
	from := start
	for i := 0; i < n && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for i := 0; i < n && to < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}
	return pdfextract.CollapseWhitespace(text[from:to])
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func parseHexColor(hex string) (color.RGBA, bool) {
	if !hexColor.MatchString(hex) {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}
