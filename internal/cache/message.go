package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"EventGate/storage/redis"
)

const (
	messageProcessingTTL = 5 * time.Minute
	messageProcessedTTL  = 48 * time.Hour
)

func messageKey(messageID string) string {
	return redis.Key("mq", "msg", messageID)
}

// TryMarkMessageProcessing 消费端幂等：SETNX 抢到处理权才继续，
// 抢不到说明该消息正在或已被其他消费者处理
func TryMarkMessageProcessing(ctx context.Context, messageID string) (bool, error) {
	ok, err := redis.Client().SetNX(ctx, messageKey(messageID), "processing", messageProcessingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message processing: %w", err)
	}
	return ok, nil
}

// MarkMessageProcessed 处理完成后把标记升级为长 TTL，防止重投递重复计数
func MarkMessageProcessed(ctx context.Context, messageID string) error {
	if err := redis.Client().Set(ctx, messageKey(messageID), "processed", messageProcessedTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}

// UnmarkMessageProcessing 处理失败时释放标记，允许重投递重试
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	if err := redis.Client().Del(ctx, messageKey(messageID)).Err(); err != nil {
		return fmt.Errorf("failed to unmark message processing: %w", err)
	}
	return nil
}

func isNilErr(err error) bool {
	return errors.Is(err, goredis.Nil)
}
