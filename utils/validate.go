package utils

import (
	"regexp"
)

// 注册码：大写字母/数字/下划线/连字符，4~64 位（兼容 "REG001"、"QR_ATT001_TECH2024" 这类格式）
var attendeeRefPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,64}$`)

func ValidateAttendeeRef(ref string) bool {
	return attendeeRefPattern.MatchString(ref)
}

// ValidateDeviceID 设备 ID 非空且不超过 128 字符
func ValidateDeviceID(deviceID string) bool {
	return deviceID != "" && len(deviceID) <= 128
}
