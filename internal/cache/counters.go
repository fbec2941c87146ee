package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"EventGate/config"
	"EventGate/internal/model/dto"
	"EventGate/storage/redis"
)

const (
	checkedInCounterTTL = 7 * 24 * time.Hour
	activityFeedTTL     = 7 * 24 * time.Hour
)

func checkedInKey(eventID int64) string {
	return redis.Key("event", strconv.FormatInt(eventID, 10), "checked_in")
}

func activityKey(eventID int64) string {
	return redis.Key("event", strconv.FormatInt(eventID, 10), "activity")
}

// IncrCheckedIn 活动实时签到计数加一，只有 accepted 结果会走到这里
func IncrCheckedIn(ctx context.Context, eventID int64) error {
	key := checkedInKey(eventID)

	pipe := redis.Client().TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, checkedInCounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to incr checked-in counter: %w", err)
	}
	return nil
}

// GetCheckedInCount 读取实时计数，key 不存在按 0 处理
func GetCheckedInCount(ctx context.Context, eventID int64) (int64, error) {
	val, err := redis.Client().Get(ctx, checkedInKey(eventID)).Int64()
	if err != nil {
		if isNilErr(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get checked-in counter: %w", err)
	}
	return val, nil
}

// PushActivity 向活动动态流头部插入一条记录并裁剪到配置长度
func PushActivity(ctx context.Context, eventID int64, item dto.ActivityItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode activity item: %w", err)
	}

	size := config.Cfg.ActivityFeedSize
	if size <= 0 {
		size = 50
	}
	key := activityKey(eventID)

	pipe := redis.Client().TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(size-1))
	pipe.Expire(ctx, key, activityFeedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push activity item: %w", err)
	}
	return nil
}

// GetActivity 读取最近的签到动态，新到旧排列
func GetActivity(ctx context.Context, eventID int64, limit int) ([]dto.ActivityItem, error) {
	if limit <= 0 {
		limit = config.Cfg.ActivityFeedSize
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := redis.Client().LRange(ctx, activityKey(eventID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity feed: %w", err)
	}

	items := make([]dto.ActivityItem, 0, len(rows))
	for _, row := range rows {
		var item dto.ActivityItem
		if err := json.Unmarshal([]byte(row), &item); err != nil {
			continue // 坏记录跳过，不影响整条流
		}
		items = append(items, item)
	}
	return items, nil
}
