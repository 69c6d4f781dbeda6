package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"pdfshelf/internal/ai"
	"pdfshelf/internal/model"
	"pdfshelf/internal/repository"
)

const maxChatMessageRunes = 4000

type ChatService struct {
	conversationRepo *repository.ConversationRepository
	documentRepo     *repository.DocumentRepository
	historyCache     HistoryCache
	llmClient        LLMClient
	defaultLLM       ai.ChatConfig
	maxContext       int
	contextChars     int
	logger           logrus.FieldLogger
	now              func() time.Time
}

type SendMessageInput struct {
	UserID     uint
	DocumentID uint
	Content    string
	PageNumber *int
}

type SendMessageResult struct {
	ConversationID uint                        `json:"conversation_id"`
	Messages       []model.ConversationMessage `json:"messages"`
}

type ConversationHistory struct {
	ConversationID *uint                       `json:"conversation_id"`
	DocumentID     uint                        `json:"document_id"`
	Messages       []model.ConversationMessage `json:"messages"`
}

func NewChatService(
	conversationRepo *repository.ConversationRepository,
	documentRepo *repository.DocumentRepository,
	historyCache HistoryCache,
	llmClient LLMClient,
	defaultLLM ai.ChatConfig,
	maxContext int,
	contextChars int,
	logger logrus.FieldLogger,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 10
	}
	if contextChars <= 0 {
		contextChars = 4000
	}
	return &ChatService{
		conversationRepo: conversationRepo,
		documentRepo:     documentRepo,
		historyCache:     historyCache,
		llmClient:        llmClient,
		defaultLLM:       defaultLLM,
		maxContext:       maxContext,
		contextChars:     contextChars,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	conversation, prompt, content, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	reply, err := s.llmClient.Complete(ctx, s.defaultLLM, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLLMFailed, err.Error())
	}
	return s.persist(ctx, conversation, input.PageNumber, content, reply)
}

// StreamMessage forwards chunks to onChunk as they arrive. The exchange is
// stored only once the stream completes.
func (s *ChatService) StreamMessage(ctx context.Context, input SendMessageInput, onChunk func(string) error) (*SendMessageResult, error) {
	conversation, prompt, content, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	full, err := s.llmClient.StreamComplete(ctx, s.defaultLLM, prompt, onChunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLLMFailed, err.Error())
	}
	return s.persist(ctx, conversation, input.PageNumber, content, full)
}

func (s *ChatService) GetHistory(ctx context.Context, userID, documentID uint) (*ConversationHistory, error) {
	if err := s.ensureDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	conversation, err := s.conversationRepo.GetByDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	history := &ConversationHistory{DocumentID: documentID, Messages: []model.ConversationMessage{}}
	if conversation == nil {
		return history, nil
	}
	history.ConversationID = &conversation.ID

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversation.ID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversation.ID); cacheErr == nil && hit {
				history.Messages = cached
				return history, nil
			}
		}
	}

	messages, err := s.conversationRepo.ListMessages(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversation.ID); dirtyErr == nil && !dirty {
			if err := s.historyCache.SetHistory(ctx, conversation.ID, messages); err != nil {
				s.logger.WithError(err).WithField("conversation_id", conversation.ID).Warn("cache conversation history failed")
			}
		}
	}
	history.Messages = messages
	return history, nil
}

func (s *ChatService) ClearHistory(ctx context.Context, userID, documentID uint) error {
	if err := s.ensureDocument(ctx, userID, documentID); err != nil {
		return err
	}
	conversation, err := s.conversationRepo.GetByDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return nil
	}
	s.invalidate(ctx, conversation.ID)
	if err := s.conversationRepo.ClearMessages(ctx, conversation.ID); err != nil {
		return err
	}
	s.dropCache(ctx, conversation.ID)
	return nil
}

func (s *ChatService) prepare(ctx context.Context, input SendMessageInput) (*model.Conversation, []ai.ChatMessage, string, error) {
	if input.UserID == 0 || input.DocumentID == 0 {
		return nil, nil, "", ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, nil, "", ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > maxChatMessageRunes {
		return nil, nil, "", fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, maxChatMessageRunes)
	}
	if input.PageNumber != nil && *input.PageNumber < 1 {
		return nil, nil, "", fmt.Errorf("%w: page_number must be positive", ErrInvalidInput)
	}
	if s.llmClient == nil || s.defaultLLM.APIKey == "" || s.defaultLLM.BaseURL == "" || s.defaultLLM.Model == "" {
		return nil, nil, "", ErrLLMNotConfigured
	}

	doc, err := s.documentRepo.GetByIDAndUserID(ctx, input.DocumentID, input.UserID)
	if err != nil {
		return nil, nil, "", err
	}
	if doc == nil {
		return nil, nil, "", ErrDocumentNotFound
	}

	docContext := doc.ExtractedText
	if strings.TrimSpace(docContext) == "" {
		docContext = doc.OCRText
	}
	docContext = truncateRunes(strings.TrimSpace(docContext), s.contextChars)

	conversation, err := s.conversationRepo.GetOrCreate(ctx, input.UserID, input.DocumentID, docContext)
	if err != nil {
		return nil, nil, "", err
	}
	if conversation.Context != docContext {
		if err := s.conversationRepo.UpdateContext(ctx, conversation.ID, docContext); err != nil {
			return nil, nil, "", err
		}
		conversation.Context = docContext
	}

	recent, err := s.conversationRepo.ListRecentMessages(ctx, conversation.ID, s.maxContext)
	if err != nil {
		return nil, nil, "", err
	}
	return conversation, buildPromptMessages(doc.OriginalName, conversation.Context, input.PageNumber, recent, content), content, nil
}

func (s *ChatService) persist(ctx context.Context, conversation *model.Conversation, page *int, content, reply string) (*SendMessageResult, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "The model returned an empty response."
	}

	now := s.now().UTC()
	messages := []model.ConversationMessage{
		{ConversationID: conversation.ID, Role: model.RoleUser, Content: content, PageNumber: page, CreatedAt: now},
		{ConversationID: conversation.ID, Role: model.RoleAssistant, Content: reply, PageNumber: page, CreatedAt: now},
	}

	s.invalidate(ctx, conversation.ID)
	if err := s.conversationRepo.AppendMessages(ctx, messages); err != nil {
		return nil, err
	}
	s.dropCache(ctx, conversation.ID)

	return &SendMessageResult{ConversationID: conversation.ID, Messages: messages}, nil
}

func (s *ChatService) ensureDocument(ctx context.Context, userID, documentID uint) error {
	doc, err := s.documentRepo.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return nil
}

// invalidate marks the cached history stale before a write so concurrent
// readers go to the database until the marker expires.
func (s *ChatService) invalidate(ctx context.Context, conversationID uint) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.MarkDirty(ctx, conversationID); err != nil {
		s.logger.WithError(err).WithField("conversation_id", conversationID).Warn("mark conversation history dirty failed")
	}
	s.dropCache(ctx, conversationID)
}

func (s *ChatService) dropCache(ctx context.Context, conversationID uint) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.DeleteHistory(ctx, conversationID); err != nil {
		s.logger.WithError(err).WithField("conversation_id", conversationID).Warn("drop conversation history failed")
	}
}

func buildPromptMessages(title, docContext string, page *int, recent []model.ConversationMessage, input string) []ai.ChatMessage {
	var system strings.Builder
	fmt.Fprintf(&system, "You are a helpful assistant answering questions about the PDF document %q. ", title)
	system.WriteString("Answer from the document content when possible and say so when the answer is not in it.")
	if page != nil {
		fmt.Fprintf(&system, " The reader is currently on page %d.", *page)
	}
	if docContext != "" {
		system.WriteString("\n\nDocument content:\n")
		system.WriteString(docContext)
	} else {
		system.WriteString("\n\nNo text could be extracted from this document yet.")
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{Role: ai.RoleSystem, Content: system.String()})
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = model.RoleUser
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: model.RoleUser, Content: input})
	return messages
}
