package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"pdfshelf/internal/model"
)

// ConversationCache keeps recent conversation histories in redis. A short-lived
// dirty marker is set before every write so readers bypass a stale entry.
type ConversationCache struct {
	client         redisv9.Cmdable
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewConversationCache(client redisv9.Cmdable, historyTTL, dirtyMarkerTTL time.Duration) *ConversationCache {
	if historyTTL <= 0 {
		historyTTL = 5 * time.Minute
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &ConversationCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *ConversationCache) GetHistory(ctx context.Context, conversationID uint) ([]model.ConversationMessage, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(conversationID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.ConversationMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

func (c *ConversationCache) SetHistory(ctx context.Context, conversationID uint, messages []model.ConversationMessage) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(conversationID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) DeleteHistory(ctx context.Context, conversationID uint) error {
	if err := c.client.Del(ctx, historyKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) MarkDirty(ctx context.Context, conversationID uint) error {
	if err := c.client.Set(ctx, dirtyKey(conversationID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) IsDirty(ctx context.Context, conversationID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(conversationID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func historyKey(conversationID uint) string {
	return fmt.Sprintf("chat:history:%d", conversationID)
}

func dirtyKey(conversationID uint) string {
	return fmt.Sprintf("chat:history:dirty:%d", conversationID)
}
