package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"EventGate/internal/model"
	"EventGate/storage/redis"
)

const (
	// attemptOutcomeTTL 回放窗口：离线队列最长滞留加足够余量
	attemptOutcomeTTL = 48 * time.Hour
	// attemptPendingTTL 处理中占位的保活时间，进程崩溃后占位自动失效
	attemptPendingTTL = 60 * time.Second

	attemptPendingMarker = "__pending__"
)

// RedisAttemptLog 基于 redis 的 attemptId 幂等日志。
// TryBegin 用 SETNX 抢占处理权，结果落地后覆盖为 outcome JSON
type RedisAttemptLog struct{}

func NewRedisAttemptLog() *RedisAttemptLog {
	return &RedisAttemptLog{}
}

func (l *RedisAttemptLog) key(attemptID string) string {
	return redis.Key("attempt", attemptID)
}

func (l *RedisAttemptLog) TryBegin(ctx context.Context, attemptID string) (bool, error) {
	ok, err := redis.Client().SetNX(ctx, l.key(attemptID), attemptPendingMarker, attemptPendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark attempt processing: %w", err)
	}
	return ok, nil
}

func (l *RedisAttemptLog) GetOutcome(ctx context.Context, attemptID string) (*model.Outcome, bool, error) {
	val, err := redis.Client().Get(ctx, l.key(attemptID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get attempt outcome: %w", err)
	}
	if val == attemptPendingMarker {
		return nil, false, nil
	}

	var outcome model.Outcome
	if err := json.Unmarshal([]byte(val), &outcome); err != nil {
		return nil, false, fmt.Errorf("failed to decode attempt outcome: %w", err)
	}
	return &outcome, true, nil
}

func (l *RedisAttemptLog) SetOutcome(ctx context.Context, attemptID string, outcome model.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode attempt outcome: %w", err)
	}

	if err := redis.Client().Set(ctx, l.key(attemptID), data, attemptOutcomeTTL).Err(); err != nil {
		return fmt.Errorf("failed to store attempt outcome: %w", err)
	}
	return nil
}

func (l *RedisAttemptLog) Clear(ctx context.Context, attemptID string) error {
	if err := redis.Client().Del(ctx, l.key(attemptID)).Err(); err != nil {
		return fmt.Errorf("failed to clear attempt marker: %w", err)
	}
	return nil
}
