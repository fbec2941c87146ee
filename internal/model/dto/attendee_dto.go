package dto

import "time"

// AttendeeItem 检索/提交响应中的参会者视图
type AttendeeItem struct {
	ID               int64      `json:"id"`
	RegistrationCode string     `json:"registration_code"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Company          string     `json:"company,omitempty"`
	TicketType       string     `json:"ticket_type,omitempty"`
	Status           string     `json:"status"`
	CheckInAt        *time.Time `json:"check_in_at,omitempty"`
}

// SearchAttendeesResponse 手动检索响应
type SearchAttendeesResponse struct {
	Query     string         `json:"query"`
	Attendees []AttendeeItem `json:"attendees"`
}

// ImportAttendeeRow 花名册导入行
type ImportAttendeeRow struct {
	RegistrationCode string `json:"registration_code"`
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Company          string `json:"company,omitempty"`
	TicketType       string `json:"ticket_type,omitempty"`
	Status           string `json:"status,omitempty"`
}

// ImportAttendeesRequest 花名册导入请求
type ImportAttendeesRequest struct {
	EventID   int64               `json:"event_id"`
	EventName string              `json:"event_name,omitempty"` // event_id 为 0 时创建新活动
	Rows      []ImportAttendeeRow `json:"rows"`
}

// ImportAttendeesResponse 导入结果
type ImportAttendeesResponse struct {
	EventID  int64 `json:"event_id"`
	Created  int   `json:"created"`
	Updated  int   `json:"updated"`
	Skipped  int   `json:"skipped"` // 已签到行不回写
	Rejected int   `json:"rejected"`
}
