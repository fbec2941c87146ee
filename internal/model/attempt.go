package model

import "time"

// CheckInAttempt 一次签到请求，来源可以是扫码、手动录入、批量扫描或离线回放
type CheckInAttempt struct {
	AttemptID       string        `json:"attempt_id"`       // 来源侧生成的唯一 ID，幂等回放的依据
	EventID         int64         `json:"event_id"`
	AttendeeRef     string        `json:"attendee_ref"`     // 注册码或参会者 ID
	Method          CheckInMethod `json:"method"`
	DeviceID        string        `json:"device_id"`
	ClientTimestamp time.Time     `json:"client_timestamp"` // 来源侧时间，离线排队时早于服务端处理时间
}

// OutcomeStatus 提交结果的判定
type OutcomeStatus string

const (
	OutcomeAccepted         OutcomeStatus = "accepted"
	OutcomeAlreadyCheckedIn OutcomeStatus = "already_checked_in" // 正常幂等结果，不是错误
	OutcomeNotFound         OutcomeStatus = "not_found"
	OutcomeIneligible       OutcomeStatus = "ineligible"
)

// Outcome 提交一次签到请求的类型化结果
type Outcome struct {
	Status     OutcomeStatus  `json:"status"`
	AttendeeID int64          `json:"attendee_id,omitempty"`
	Attendee   *Attendee      `json:"attendee,omitempty"`
	CheckIn    *CheckInRecord `json:"check_in,omitempty"` // accepted 为新记录，already_checked_in 为原记录
}

// Counted 该结果是否计入吞吐速率（只有 accepted 计入）
func (o Outcome) Counted() bool {
	return o.Status == OutcomeAccepted
}
