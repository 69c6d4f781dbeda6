package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pdfshelf/internal/ai"
	"pdfshelf/internal/metrics"
	"pdfshelf/internal/model"
	"pdfshelf/internal/platform/database"
	"pdfshelf/internal/repository"
)

const mb = int64(1024 * 1024)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var samplePDF = []byte("%PDF-1.4\n% test body\n")

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

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	puts      int
	putErr    error
	getErr    error
	deleteErr error
	urlErr    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.puts++
	f.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (f *fakeStorage) Get(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[ref]
	if !ok {
		return nil, fmt.Errorf("object %s not found", ref)
	}
	return data, nil
}

func (f *fakeStorage) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeStorage) TemporaryURL(_ context.Context, ref string, _ time.Duration) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://files.test/" + ref + "?sig=1", nil
}

type fakeInspector struct {
	pages   int
	pageErr error
	text    string
	textErr error
}

func (f fakeInspector) PageCount([]byte) (int, error) {
	return f.pages, f.pageErr
}

func (f fakeInspector) ExtractText([]byte) (string, error) {
	return f.text, f.textErr
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []model.EnrichmentJob
	err  error
}

func (f *fakeJobs) Publish(_ context.Context, job model.EnrichmentJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobs) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j.Kind)
	}
	return out
}

type fakeLLM struct {
	reply string
	err   error
	calls [][]ai.ChatMessage
}

func (f *fakeLLM) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) StreamComplete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	for _, word := range strings.SplitAfter(f.reply, " ") {
		if err := onChunk(word); err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

type fakeHistoryCache struct {
	history map[uint][]model.ConversationMessage
	dirty   map[uint]bool
	gets    int
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		history: make(map[uint][]model.ConversationMessage),
		dirty:   make(map[uint]bool),
	}
}

func (f *fakeHistoryCache) GetHistory(_ context.Context, id uint) ([]model.ConversationMessage, bool, error) {
	f.gets++
	messages, ok := f.history[id]
	return messages, ok, nil
}

func (f *fakeHistoryCache) SetHistory(_ context.Context, id uint, messages []model.ConversationMessage) error {
	f.history[id] = messages
	return nil
}

func (f *fakeHistoryCache) DeleteHistory(_ context.Context, id uint) error {
	delete(f.history, id)
	return nil
}

func (f *fakeHistoryCache) MarkDirty(_ context.Context, id uint) error {
	f.dirty[id] = true
	return nil
}

func (f *fakeHistoryCache) IsDirty(_ context.Context, id uint) (bool, error) {
	return f.dirty[id], nil
}

var errBoom = errors.New("boom")

var testLLMConfig = ai.ChatConfig{BaseURL: "https://llm.test/v1", APIKey: "key", Model: "test-model"}

// fixture wires every service over one in-memory database.
type fixture struct {
	db          *gorm.DB
	documents   *repository.DocumentRepository
	collections *repository.CollectionRepository
	storage     *fakeStorage
	jobs        *fakeJobs
	llm         *fakeLLM
	inspector   fakeInspector
	metrics     *metrics.Metrics
	logger      *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	return &fixture{
		db:          db,
		documents:   repository.NewDocumentRepository(db),
		collections: repository.NewCollectionRepository(db),
		storage:     newFakeStorage(),
		jobs:        &fakeJobs{},
		llm:         &fakeLLM{reply: "answer"},
		inspector:   fakeInspector{pages: 12},
		metrics:     metrics.New(),
		logger:      quietLogger(),
	}
}

func (f *fixture) documentService() *DocumentService {
	return NewDocumentService(f.documents, f.collections, f.storage, f.inspector, f.jobs, f.metrics, f.logger,
		DocumentServiceOptions{URLTTL: time.Hour, MaxUploadBytes: 50 * mb})
}

func (f *fixture) collectionService() *CollectionService {
	return NewCollectionService(f.collections, f.documents)
}

func (f *fixture) enrichmentService() *EnrichmentService {
	return NewEnrichmentService(f.documents, f.collections, f.storage, f.inspector, f.llm, testLLMConfig, f.jobs, f.metrics, f.logger)
}

type docSeed struct {
	userID     uint
	name       string
	size       int64
	pages      int
	tags       []string
	collection *uint
	text       string
	created    time.Time
}

// seedDocument inserts a document and stores a matching object in the fake storage.
func (f *fixture) seedDocument(t *testing.T, s docSeed) model.Document {
	t.Helper()
	if s.userID == 0 {
		s.userID = 1
	}
	if s.created.IsZero() {
		s.created = t0
	}
	if s.pages == 0 {
		s.pages = 10
	}
	ref := fmt.Sprintf("users/%d/documents/%s.pdf", s.userID, s.name)
	f.storage.objects[ref] = samplePDF
	doc := model.Document{
		UserID:               s.userID,
		Filename:             s.name + ".pdf",
		OriginalName:         s.name + ".pdf",
		StorageRef:           ref,
		MimeType:             pdfMimeType,
		FileSize:             s.size,
		PageCount:            s.pages,
		CollectionID:         s.collection,
		ExtractedText:        s.text,
		TextExtractionStatus: model.ExtractionPending,
		OCRStatus:            model.ExtractionPending,
		CreatedAt:            s.created,
		TagLinks:             repository.NewTagLinks(s.userID, s.tags),
	}
	require.NoError(t, f.documents.Create(context.Background(), &doc))
	return doc
}

func (f *fixture) seedCollection(t *testing.T, userID uint, name string, parent *uint) model.Collection {
	t.Helper()
	c, err := f.collectionService().Create(context.Background(), userID, CreateCollectionInput{Name: name, ParentID: parent})
	require.NoError(t, err)
	return *c
}

func uintPtr(v uint) *uint          { return &v }
func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64   { return &v }
func strPtr(v string) *string       { return &v }
func tagsPtr(v ...string) *[]string { return &v }
