package model

import "time"

// AttendeeStatus 参会者状态枚举
type AttendeeStatus string

const (
	AttendeeStatusRegistered AttendeeStatus = "registered" // 已报名
	AttendeeStatusPending    AttendeeStatus = "pending"    // 待确认
	AttendeeStatusWaitlisted AttendeeStatus = "waitlisted" // 候补
	AttendeeStatusCancelled  AttendeeStatus = "cancelled"  // 已取消
	AttendeeStatusCheckedIn  AttendeeStatus = "checked_in" // 已签到
)

// CheckInMethod 签到方式
type CheckInMethod string

const (
	CheckInMethodQR     CheckInMethod = "qr"
	CheckInMethodManual CheckInMethod = "manual"
	CheckInMethodBulk   CheckInMethod = "bulk"
)

// ValidMethod 判断签到方式是否合法
func ValidMethod(m CheckInMethod) bool {
	switch m {
	case CheckInMethodQR, CheckInMethodManual, CheckInMethodBulk:
		return true
	}
	return false
}

// Attendee 参会者记录，由外部报名/导入系统创建
// 核心唯一的写操作是单向迁移到 checked_in：
// 签到字段存在当且仅当 status == checked_in
type Attendee struct {
	BaseModel
	EventID          int64          `gorm:"not null;uniqueIndex:idx_attendees_event_code,priority:1;index:idx_attendees_event_status" json:"event_id"`
	RegistrationCode string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_attendees_event_code,priority:2" json:"registration_code"`
	Name             string         `gorm:"type:varchar(256);not null" json:"name"`
	Email            string         `gorm:"type:varchar(256)" json:"email,omitempty"`
	Company          string         `gorm:"type:varchar(256)" json:"company,omitempty"`
	TicketType       string         `gorm:"type:varchar(64)" json:"ticket_type,omitempty"`
	Status           AttendeeStatus `gorm:"type:varchar(16);not null;default:'registered';index:idx_attendees_event_status" json:"status"`
	CheckInAt        *time.Time     `json:"check_in_at,omitempty"`
	CheckInMethod    CheckInMethod  `gorm:"type:varchar(16)" json:"check_in_method,omitempty"`
	CheckInDevice    string         `gorm:"type:varchar(128)" json:"check_in_device,omitempty"`
}

// TableName 指定表名
func (Attendee) TableName() string {
	return "attendees"
}

// CheckInRecord 签到明细，accepted 与 already_checked_in 结果都会携带
type CheckInRecord struct {
	Time     time.Time     `json:"time"`
	Method   CheckInMethod `json:"method"`
	DeviceID string        `json:"device_id"`
}

// CheckInRecordOf 从已签到的参会者行还原签到明细
func CheckInRecordOf(a *Attendee) *CheckInRecord {
	if a == nil || a.Status != AttendeeStatusCheckedIn || a.CheckInAt == nil {
		return nil
	}
	return &CheckInRecord{
		Time:     *a.CheckInAt,
		Method:   a.CheckInMethod,
		DeviceID: a.CheckInDevice,
	}
}
