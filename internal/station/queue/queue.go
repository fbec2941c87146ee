package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"EventGate/internal/dedup"
	"EventGate/internal/model"
	"EventGate/pkg/logger"
	"EventGate/pkg/metrics"
)

// State 队列的同步状态机
type State string

const (
	StateDisconnected State = "disconnected" // 离线，尚无积压
	StateQueuing      State = "queuing"      // 离线，有待同步条目
	StateSyncing      State = "syncing"      // 正在回放
	StateDrained      State = "drained"      // 回放完毕，无积压
)

// SubmitFunc 把一条离线签到交给服务端，返回服务端判定
type SubmitFunc func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error)

// Status 队列对外暴露的状态快照，驱动"离线 — N 条待同步"指示
type Status struct {
	State        State `json:"state"`
	PendingCount int   `json:"pending_count"`
}

// Queue 单设备独占的持久化离线队列。
// 进程重启后积压仍在，回放严格按入队顺序
type Queue struct {
	store    *Store
	deviceID string

	mu    sync.Mutex
	state State
}

func New(store *Store, deviceID string) (*Queue, error) {
	q := &Queue{
		store:    store,
		deviceID: deviceID,
		state:    StateDisconnected,
	}

	// 重启后带着积压醒来，直接进入 queuing
	count, err := store.PendingCount(context.Background())
	if err != nil {
		return nil, err
	}
	if count > 0 {
		q.state = StateQueuing
	}

	return q, nil
}

// Enqueue 追加一条待同步签到
func (q *Queue) Enqueue(ctx context.Context, attempt model.CheckInAttempt) error {
	if err := q.store.Append(ctx, attempt); err != nil {
		return err
	}

	q.mu.Lock()
	if q.state != StateSyncing {
		q.state = StateQueuing
	}
	q.mu.Unlock()

	metrics.GetMetrics().RecordQueueDepth(ctx, 1, q.deviceID)

	logger.Logger.Info("Enqueued offline check-in",
		zap.String("attempt_id", attempt.AttemptID),
		zap.String("attendee_ref", attempt.AttendeeRef),
	)

	return nil
}

// Drain 按入队顺序回放所有待同步条目。
// 服务端返回的任何判定（包括 already_checked_in）都算同步成功；
// 只有形状非法的条目标记 rejected；传输失败中断回放并保留剩余积压
func (q *Queue) Drain(ctx context.Context, submit SubmitFunc) error {
	q.mu.Lock()
	if q.state == StateSyncing {
		q.mu.Unlock()
		return nil // 已有回放在进行
	}
	q.state = StateSyncing
	q.mu.Unlock()

	err := q.drain(ctx, submit)

	q.mu.Lock()
	defer q.mu.Unlock()

	count, countErr := q.store.PendingCount(ctx)
	if countErr != nil {
		q.state = StateQueuing
		if err == nil {
			err = countErr
		}
		return err
	}

	if count > 0 {
		// 回放中断了，或者回放途中又进来了新条目
		q.state = StateQueuing
	} else {
		q.state = StateDrained
		metrics.GetMetrics().RecordDrained(ctx, q.deviceID)
	}

	return err
}

func (q *Queue) drain(ctx context.Context, submit SubmitFunc) error {
	entries, err := q.store.Pending(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if validateErr := dedup.ValidateAttempt(entry.Attempt); validateErr != nil {
			logger.Logger.Warn("Rejecting malformed queue entry",
				zap.Int64("entry_id", entry.ID),
				zap.String("attempt_id", entry.Attempt.AttemptID),
				zap.Error(validateErr),
			)
			if markErr := q.store.MarkRejected(ctx, entry.ID, validateErr.Error()); markErr != nil {
				return markErr
			}
			metrics.GetMetrics().RecordQueueDepth(ctx, -1, q.deviceID)
			continue
		}

		outcome, submitErr := submit(ctx, entry.Attempt)
		if submitErr != nil {
			// 传输失败，剩余条目留在队列里等下次回放
			return fmt.Errorf("submit queued attempt %s: %w", entry.Attempt.AttemptID, submitErr)
		}

		if markErr := q.store.MarkSynced(ctx, entry.ID, outcome.Status); markErr != nil {
			return markErr
		}
		metrics.GetMetrics().RecordQueueDepth(ctx, -1, q.deviceID)

		logger.Logger.Info("Synced offline check-in",
			zap.String("attempt_id", entry.Attempt.AttemptID),
			zap.String("outcome", string(outcome.Status)),
		)
	}

	return nil
}

// Status 当前状态快照
func (q *Queue) Status(ctx context.Context) (Status, error) {
	count, err := q.store.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}

	q.mu.Lock()
	state := q.state
	q.mu.Unlock()

	return Status{State: state, PendingCount: count}, nil
}
