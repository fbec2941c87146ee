package model

import "time"

// Event 活动元信息，花名册导入时创建，核心只读
type Event struct {
	BaseModel
	Name      string     `gorm:"type:varchar(256);not null" json:"name"`
	Venue     string     `gorm:"type:varchar(256)" json:"venue,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	ClientRef string     `gorm:"type:varchar(128);index" json:"client_ref,omitempty"`
}

// TableName 指定表名
func (Event) TableName() string {
	return "events"
}
