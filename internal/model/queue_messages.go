package model

// CheckInEventMessage 签到领域事件，accepted / already_checked_in 时发布
// 下游（计数器、动态流、大盘）按 MessageID 幂等消费
type CheckInEventMessage struct {
	MessageID    string `json:"message_id"`
	EventID      int64  `json:"event_id"`
	AttendeeID   int64  `json:"attendee_id"`
	AttendeeName string `json:"attendee_name,omitempty"`
	Outcome      string `json:"outcome"`
	Method       string `json:"method"`
	DeviceID     string `json:"device_id"`
	OccurredAt   string `json:"occurred_at"` // RFC3339
}
