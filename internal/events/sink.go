package events

import (
	"context"

	"EventGate/internal/model"
)

// Sink 签到领域事件出口。
// Emit 不允许阻塞调用方，也不允许让签到失败：实现自行吞掉并记录错误。
type Sink interface {
	Emit(ctx context.Context, msg model.CheckInEventMessage)
}
