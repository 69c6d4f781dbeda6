package app

import (
	"context"
	"time"

	"pdfshelf/internal/ai"
	"pdfshelf/internal/model"
)

// ObjectStorage holds document files and thumbnails under owner-scoped keys.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	TemporaryURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

type PDFInspector interface {
	PageCount(data []byte) (int, error)
	ExtractText(data []byte) (string, error)
}

type LLMClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

// JobPublisher hands enrichment work to the background queue.
type JobPublisher interface {
	Publish(ctx context.Context, job model.EnrichmentJob) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.ConversationMessage, bool, error)
	SetHistory(ctx context.Context, conversationID uint, messages []model.ConversationMessage) error
	DeleteHistory(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}
