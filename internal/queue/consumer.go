package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"EventGate/internal/cache"
	"EventGate/internal/model"
	"EventGate/internal/model/dto"
	"EventGate/pkg/errors"
	"EventGate/pkg/logger"
	"EventGate/storage/mq"
)

const outcomeConsumerTag = "eventgate-worker"

var (
	incrCheckedIn = cache.IncrCheckedIn
	pushActivity  = cache.PushActivity
)

// StartOutcomeConsumer 消费签到结果事件，折算实时计数器和活动动态流。
// 计数只对 accepted 生效，already_checked_in 进动态流但不重复计数
func StartOutcomeConsumer() error {
	return mq.Consume(mq.ConsumeOptions{
		Queue:         mq.CheckInOutcomeQueue,
		ConsumerTag:   outcomeConsumerTag,
		PrefetchCount: 16,
		Handler:       handleOutcomeMessage,
	})
}

func handleOutcomeMessage(body []byte) error {
	var msg model.CheckInEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 格式坏掉的消息重投也救不回来，直接确认丢弃
		return &errors.SkipMessageError{Reason: fmt.Sprintf("malformed message: %v", err)}
	}
	if msg.MessageID == "" {
		return &errors.SkipMessageError{Reason: "missing message id"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	acquired, err := cache.TryMarkMessageProcessing(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	if !acquired {
		return &errors.SkipMessageError{Reason: "message already processed: " + msg.MessageID}
	}

	if err := applyOutcome(ctx, msg); err != nil {
		if unmarkErr := cache.UnmarkMessageProcessing(ctx, msg.MessageID); unmarkErr != nil {
			logger.Logger.Warn("Failed to unmark message processing",
				zap.String("message_id", msg.MessageID),
				zap.Error(unmarkErr),
			)
		}
		return err
	}

	if err := cache.MarkMessageProcessed(ctx, msg.MessageID); err != nil {
		logger.Logger.Warn("Failed to mark message processed",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	}

	return nil
}

func applyOutcome(ctx context.Context, msg model.CheckInEventMessage) error {
	switch msg.Outcome {
	case string(model.OutcomeAccepted), string(model.OutcomeAlreadyCheckedIn):
	default:
		logger.Logger.Debug("Ignoring outcome event",
			zap.String("message_id", msg.MessageID),
			zap.String("outcome", msg.Outcome),
		)
		return nil
	}

	// 只有 accepted 进计数器，already_checked_in 只上动态流
	if msg.Outcome == string(model.OutcomeAccepted) {
		if err := incrCheckedIn(ctx, msg.EventID); err != nil {
			return err
		}
	}

	item := dto.ActivityItem{
		AttendeeID:   msg.AttendeeID,
		AttendeeName: msg.AttendeeName,
		Outcome:      msg.Outcome,
		Method:       msg.Method,
		DeviceID:     msg.DeviceID,
		OccurredAt:   msg.OccurredAt,
	}
	if err := pushActivity(ctx, msg.EventID, item); err != nil {
		// 动态流是锦上添花，失败不触发重投（计数可能已生效，重投会重复加）
		logger.Logger.Warn("Failed to push activity item",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Applied check-in outcome",
		zap.String("message_id", msg.MessageID),
		zap.Int64("event_id", msg.EventID),
		zap.Int64("attendee_id", msg.AttendeeID),
	)

	return nil
}
