package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 认证相关错误。
var (
	StationKeyInvalid = Definition{Code: "STATION_KEY_INVALID", Message: "Station key invalid"}
	Unauthorized      = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	RateLimited       = Definition{Code: "RATE_LIMITED", Message: "Too many requests"}
)

// 签到处理错误。
// already_checked_in 不在这里：它是正常的幂等结果，不是错误。
var (
	InvalidAttempt     = Definition{Code: "INVALID_ATTEMPT", Message: "Attempt is malformed"}
	AttendeeNotFound   = Definition{Code: "ATTENDEE_NOT_FOUND", Message: "Attendee not found"}
	AttendeeIneligible = Definition{Code: "ATTENDEE_INELIGIBLE", Message: "Attendee not eligible for check-in"}
	EventNotFound      = Definition{Code: "EVENT_NOT_FOUND", Message: "Event not found"}
	AttemptInFlight    = Definition{Code: "ATTEMPT_IN_FLIGHT", Message: "Attempt is still being processed"}
)

// 花名册导入错误。
var (
	ImportRowInvalid = Definition{Code: "IMPORT_ROW_INVALID", Message: "Import row invalid"}
)

// token 相关错误。
var (
	ErrTokenGeneratorNotInitialized = Definition{Code: "TOKEN_GENERATOR_NOT_INITIALIZED", Message: "Token generator not initialized"}
	ErrUnexpectedSigningMethod      = Definition{Code: "TOKEN_SIGNING_METHOD_INVALID", Message: "Unexpected token signing method"}
	ErrInvalidToken                 = Definition{Code: "TOKEN_INVALID", Message: "Token invalid"}
	ErrInvalidTokenClaims           = Definition{Code: "TOKEN_CLAIMS_INVALID", Message: "Token claims invalid"}
	ErrInvalidTokenType             = Definition{Code: "TOKEN_TYPE_INVALID", Message: "Token type invalid"}
	ErrDeviceIDNotFound             = Definition{Code: "DEVICE_ID_NOT_FOUND", Message: "Device ID not found in token"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	StationKeyInvalid.Code:  StationKeyInvalid,
	Unauthorized.Code:       Unauthorized,
	RateLimited.Code:        RateLimited,
	InvalidAttempt.Code:     InvalidAttempt,
	AttendeeNotFound.Code:   AttendeeNotFound,
	AttendeeIneligible.Code: AttendeeIneligible,
	EventNotFound.Code:      EventNotFound,
	AttemptInFlight.Code:    AttemptInFlight,
	ImportRowInvalid.Code:   ImportRowInvalid,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
