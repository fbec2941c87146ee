package events

import (
	"context"
	"sync"

	"EventGate/internal/model"
)

// MemorySink 进程内事件收集器，扫码站本地回显和测试使用
type MemorySink struct {
	mu     sync.Mutex
	events []model.CheckInEventMessage
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(ctx context.Context, msg model.CheckInEventMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, msg)
}

// Events 返回已收集事件的副本
func (s *MemorySink) Events() []model.CheckInEventMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CheckInEventMessage, len(s.events))
	copy(out, s.events)
	return out
}
