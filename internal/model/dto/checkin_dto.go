package dto

import "time"

// SubmitCheckInRequest 扫码站提交签到请求
type SubmitCheckInRequest struct {
	AttemptID       string    `json:"attempt_id"`
	EventID         int64     `json:"event_id"`
	AttendeeRef     string    `json:"attendee_ref"`
	Method          string    `json:"method"`
	ClientTimestamp time.Time `json:"client_timestamp"`
}

// SubmitCheckInResponse 提交结果
type SubmitCheckInResponse struct {
	Status     string         `json:"status"`
	AttendeeID int64          `json:"attendee_id,omitempty"`
	Attendee   *AttendeeItem  `json:"attendee,omitempty"`
	CheckIn    *CheckInDetail `json:"check_in,omitempty"`
}

// CheckInDetail 签到明细
type CheckInDetail struct {
	Time     time.Time `json:"time"`
	Method   string    `json:"method"`
	DeviceID string    `json:"device_id"`
}

// EventStatsResponse 活动维度的权威计数
type EventStatsResponse struct {
	EventID         int64 `json:"event_id"`
	TotalAttendees  int64 `json:"total_attendees"`
	CheckedInCount  int64 `json:"checked_in_count"`
	LiveCounter     int64 `json:"live_counter"` // worker 折算出的 redis 计数，最终一致
}

// ActivityItem 最近签到动态
type ActivityItem struct {
	AttendeeID   int64  `json:"attendee_id"`
	AttendeeName string `json:"attendee_name,omitempty"`
	Outcome      string `json:"outcome"`
	Method       string `json:"method"`
	DeviceID     string `json:"device_id"`
	OccurredAt   string `json:"occurred_at"`
}
