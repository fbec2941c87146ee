package dedup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"EventGate/internal/model"
	errs "EventGate/pkg/errors"
	"EventGate/pkg/logger"
	"EventGate/utils"
)

// AttemptLog 按 attemptId 记录处理状态和结果，幂等回放的依据。
// TryBegin 必须是原子的：并发提交同一个 attemptId 只有一个能拿到处理权
type AttemptLog interface {
	TryBegin(ctx context.Context, attemptID string) (bool, error)
	GetOutcome(ctx context.Context, attemptID string) (*model.Outcome, bool, error)
	SetOutcome(ctx context.Context, attemptID string, outcome model.Outcome) error
	Clear(ctx context.Context, attemptID string) error
}

// ProcessFunc 实际执行签到迁移，由 Deduplicator 保证每个 attemptId 至多调用一次成功
type ProcessFunc func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error)

const (
	inFlightPollInterval = 50 * time.Millisecond
	inFlightPollCount    = 3
)

// Deduplicator 提交入口的幂等层。重复的 attemptId 直接回放已存储的结果，
// 不会再触发状态迁移，也不会重复计数
type Deduplicator struct {
	log     AttemptLog
	process ProcessFunc
}

func NewDeduplicator(log AttemptLog, process ProcessFunc) *Deduplicator {
	return &Deduplicator{log: log, process: process}
}

// Submit 处理一次签到请求。replayed 为 true 表示结果来自此前同一 attemptId 的处理
func (d *Deduplicator) Submit(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, bool, error) {
	if err := ValidateAttempt(attempt); err != nil {
		return model.Outcome{}, false, err
	}

	// 先查已完成的结果，命中则直接回放
	if outcome, ok, err := d.log.GetOutcome(ctx, attempt.AttemptID); err != nil {
		return model.Outcome{}, false, err
	} else if ok {
		return *outcome, true, nil
	}

	acquired, err := d.log.TryBegin(ctx, attempt.AttemptID)
	if err != nil {
		return model.Outcome{}, false, err
	}
	if !acquired {
		// 同一 attemptId 正在处理中，短暂等它落地再回放
		return d.awaitInFlight(ctx, attempt.AttemptID)
	}

	outcome, err := d.process(ctx, attempt)
	if err != nil {
		// 处理失败不留占位，放行后续重试
		if clearErr := d.log.Clear(ctx, attempt.AttemptID); clearErr != nil {
			logger.Logger.Warn("Failed to clear attempt marker",
				zap.String("attempt_id", attempt.AttemptID),
				zap.Error(clearErr),
			)
		}
		return model.Outcome{}, false, err
	}

	if err := d.log.SetOutcome(ctx, attempt.AttemptID, outcome); err != nil {
		// 结果已经生效，存储回放记录失败只能记日志：
		// 下一次重复提交会落到 registry 的 already_checked_in 分支
		logger.Logger.Error("Failed to store attempt outcome",
			zap.String("attempt_id", attempt.AttemptID),
			zap.Error(err),
		)
	}

	return outcome, false, nil
}

func (d *Deduplicator) awaitInFlight(ctx context.Context, attemptID string) (model.Outcome, bool, error) {
	for i := 0; i < inFlightPollCount; i++ {
		select {
		case <-ctx.Done():
			return model.Outcome{}, false, ctx.Err()
		case <-time.After(inFlightPollInterval):
		}

		outcome, ok, err := d.log.GetOutcome(ctx, attemptID)
		if err != nil {
			return model.Outcome{}, false, err
		}
		if ok {
			return *outcome, true, nil
		}
	}
	return model.Outcome{}, false, errs.AttemptInFlight
}

// ValidateAttempt 校验请求的基本形状，任何一项不合格都拒绝为 INVALID_ATTEMPT
func ValidateAttempt(attempt model.CheckInAttempt) error {
	if attempt.AttemptID == "" || len(attempt.AttemptID) > 128 {
		return errs.InvalidAttempt
	}
	if attempt.EventID <= 0 {
		return errs.InvalidAttempt
	}
	if !utils.ValidateAttendeeRef(attempt.AttendeeRef) {
		return errs.InvalidAttempt
	}
	if !model.ValidMethod(attempt.Method) {
		return errs.InvalidAttempt
	}
	if !utils.ValidateDeviceID(attempt.DeviceID) {
		return errs.InvalidAttempt
	}
	return nil
}
