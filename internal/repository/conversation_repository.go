package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfshelf/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByDocument(ctx context.Context, userID, documentID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("user_id = ? AND document_id = ?", userID, documentID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conv, nil
}

// GetOrCreate returns the single conversation for the user and document,
// creating it with the given context when missing.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, userID, documentID uint, docContext string) (*model.Conversation, error) {
	conv := model.Conversation{UserID: userID, DocumentID: documentID, Context: docContext}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error
	if err != nil {
		return nil, fmt.Errorf("create conversation failed: %w", err)
	}
	existing, err := r.GetByDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("conversation for document %d vanished", documentID)
	}
	return existing, nil
}

func (r *ConversationRepository) UpdateContext(ctx context.Context, id uint, docContext string) error {
	if err := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", id).Update("context", docContext).Error; err != nil {
		return fmt.Errorf("update conversation context failed: %w", err)
	}
	return nil
}

// AppendMessages stores the exchange atomically.
func (r *ConversationRepository) AppendMessages(ctx context.Context, messages []model.ConversationMessage) error {
	if len(messages) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&messages).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", messages[0].ConversationID).
			Update("updated_at", tx.NowFunc()).Error
	})
	if err != nil {
		return fmt.Errorf("append conversation messages failed: %w", err)
	}
	return nil
}

// ListMessages returns messages oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uint) ([]model.ConversationMessage, error) {
	messages := make([]model.ConversationMessage, 0)
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list conversation messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentMessages returns the newest limit messages, oldest first.
func (r *ConversationRepository) ListRecentMessages(ctx context.Context, conversationID uint, limit int) ([]model.ConversationMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	messages := make([]model.ConversationMessage, 0, limit)
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list recent conversation messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ConversationRepository) ClearMessages(ctx context.Context, conversationID uint) error {
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&model.ConversationMessage{}).Error; err != nil {
		return fmt.Errorf("clear conversation messages failed: %w", err)
	}
	return nil
}
