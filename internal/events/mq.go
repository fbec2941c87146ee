package events

import (
	"context"

	"go.uber.org/zap"

	"EventGate/internal/model"
	"EventGate/pkg/logger"
	"EventGate/storage/mq"
)

// MQSink 把领域事件发布到 RabbitMQ，worker 侧消费折算计数器和动态流
type MQSink struct{}

func NewMQSink() *MQSink {
	return &MQSink{}
}

// Emit 异步发布，发布失败只记日志，绝不影响签到主流程
func (s *MQSink) Emit(ctx context.Context, msg model.CheckInEventMessage) {
	go func() {
		if err := mq.PublishMessage(mq.CheckInExchange, mq.CheckInOutcomeRoutingKey, msg); err != nil {
			logger.Logger.Error("Failed to publish check-in event",
				zap.String("message_id", msg.MessageID),
				zap.Int64("attendee_id", msg.AttendeeID),
				zap.String("outcome", msg.Outcome),
				zap.Error(err),
			)
		}
	}()
}
