package errors

// SkipMessageError 消费者返回该错误时消息被确认但不重试（重复投递等）。
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}
