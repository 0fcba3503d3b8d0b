package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) messagesKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (r *RedisConversationRepository) analysisKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:analysis", conversationID)
}

func (r *RedisConversationRepository) reportKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:report", conversationID)
}

// touch extends the TTL of key after a write.
func (r *RedisConversationRepository) touch(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	ok, err := r.rdb.Expire(ctx, key, r.ttl).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
		return errx.WrapRedis(err)
	}
	if !ok {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on conversation key")
	}
	return nil
}

func (r *RedisConversationRepository) AddMessage(ctx context.Context, conversationID string, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.messagesKey(conversationID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	key := r.messagesKey(conversationID)
	history := &model.ConversationHistory{ConversationID: conversationID, Messages: []*schema.Message{}}

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("conversationID", conversationID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		history.Messages = append(history.Messages, &m)
	}

	raw, err := r.rdb.Get(ctx, r.analysisKey(conversationID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, errx.WrapRedis(err)
	default:
		var aq model.AnalyzedQuery
		if err := json.Unmarshal([]byte(raw), &aq); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		history.Analysis = &aq
	}

	report, err := r.rdb.Get(ctx, r.reportKey(conversationID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errx.WrapRedis(err)
	}
	history.FinalReport = report

	return history, nil
}

func (r *RedisConversationRepository) SaveAnalysis(ctx context.Context, conversationID string, analysis model.AnalyzedQuery) error {
	b, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	key := r.analysisKey(conversationID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save analysis to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) SaveFinalReport(ctx context.Context, conversationID string, report string) error {
	key := r.reportKey(conversationID)
	if err := r.rdb.Set(ctx, key, report, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save final report to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	keys := []string{r.messagesKey(conversationID), r.analysisKey(conversationID), r.reportKey(conversationID)}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
