package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"bladi-assistant/internal/model"
)

const versionTTL = 24 * time.Hour

// HistoryCache keeps the recent-message window of each session so that the
// repetition checks of a turn do not hit MySQL. Every invalidation bumps a
// per-session version; a window read before the bump is never written back.
type HistoryCache struct {
	client     *redisv9.Client
	historyTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 5 * time.Minute
	}
	return &HistoryCache{
		client:     client,
		historyTTL: historyTTL,
	}
}

// GetRecent returns the cached window, or on a miss the version a later
// SetRecent must present.
func (c *HistoryCache) GetRecent(ctx context.Context, sessionID uint) ([]model.Message, int64, bool, error) {
	values, err := c.client.MGet(ctx, c.historyKey(sessionID), c.versionKey(sessionID)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("redis get history failed: %w", err)
	}

	version, err := parseVersion(values[1])
	if err != nil {
		return nil, 0, false, err
	}
	raw, ok := values[0].(string)
	if !ok {
		return nil, version, false, nil
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, 0, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, version, true, nil
}

// SetRecent stores messages only if no invalidation happened since the
// GetRecent that returned version.
func (c *HistoryCache) SetRecent(ctx context.Context, sessionID uint, version int64, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}

	versionKey := c.versionKey(sessionID)
	err = c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		raw, err := tx.Get(ctx, versionKey).Result()
		if err != nil && !errors.Is(err, redisv9.Nil) {
			return err
		}
		current, err := parseVersion(raw)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.Set(ctx, c.historyKey(sessionID), payload, c.historyTTL)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redisv9.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) Invalidate(ctx context.Context, sessionID uint) error {
	versionKey := c.versionKey(sessionID)
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		pipe.Del(ctx, c.historyKey(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) historyKey(sessionID uint) string {
	return fmt.Sprintf("chatbot:history:%d", sessionID)
}

func (c *HistoryCache) versionKey(sessionID uint) string {
	return fmt.Sprintf("chatbot:history:%d:version", sessionID)
}

func parseVersion(value interface{}) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		if v == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse history version failed: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected history version type %T", value)
	}
}
