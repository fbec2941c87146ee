package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"EventGate/internal/model"
)

// SessionState 批量扫描会话状态机
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateActive  SessionState = "active"
	StatePaused  SessionState = "paused"
	StateStopped SessionState = "stopped"
)

// SubmitFunc 把一次扫描检测交给提交链路。
// queued 为 true 表示离线入队，判定要等回放后才有
type SubmitFunc func(ctx context.Context, attempt model.CheckInAttempt) (outcome model.Outcome, queued bool, err error)

// Stats 会话计数快照。
// ScansPerMinute 只按 accepted 计算，重复和拒绝不进分子
type Stats struct {
	State          SessionState `json:"state"`
	Accepted       int          `json:"accepted"`
	Duplicate      int          `json:"duplicate"`
	Rejected       int          `json:"rejected"`
	ScansPerMinute float64      `json:"scans_per_minute"`
}

// Session 批量扫描会话：连续检测逐个变成 bulk 方式的签到提交。
// 每次检测独立处理，结果乱序返回不影响计数正确性
type Session struct {
	eventID  int64
	deviceID string
	submit   SubmitFunc
	now      func() time.Time // 注入时钟，速率计算可测

	mu        sync.Mutex
	state     SessionState
	startedAt time.Time
	accepted  int
	duplicate int
	rejected  int
	rate      float64
}

func NewSession(eventID int64, deviceID string, submit SubmitFunc, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		eventID:  eventID,
		deviceID: deviceID,
		submit:   submit,
		now:      now,
		state:    StateIdle,
	}
}

// Start 开始会话，计数和计时从这里起算
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return
	}
	s.state = StateActive
	s.startedAt = s.now()
}

// Pause 暂停会话，暂停期间的检测被忽略
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive {
		s.state = StatePaused
	}
}

// Resume 恢复会话
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StatePaused {
		s.state = StateActive
	}
}

// Stop 终止会话，之后的检测既不处理也不入队
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive || s.state == StatePaused {
		s.state = StateStopped
	}
}

// OnDetect 处理一次扫描检测。非 active 状态的检测直接忽略，
// 返回 false 表示该检测未被处理
func (s *Session) OnDetect(ctx context.Context, code string) (model.Outcome, bool) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return model.Outcome{}, false
	}
	at := s.now()
	s.mu.Unlock()

	attempt := model.CheckInAttempt{
		AttemptID:       uuid.NewString(),
		EventID:         s.eventID,
		AttendeeRef:     code,
		Method:          model.CheckInMethodBulk,
		DeviceID:        s.deviceID,
		ClientTimestamp: at,
	}

	outcome, queued, err := s.submit(ctx, attempt)
	if err != nil {
		s.record(func() { s.rejected++ })
		return model.Outcome{}, true
	}
	if queued {
		// 离线入队的检测还没有判定，不进任何计数
		return model.Outcome{}, true
	}

	switch outcome.Status {
	case model.OutcomeAccepted:
		s.record(func() {
			s.accepted++
			s.rate = s.computeRateLocked()
		})
	case model.OutcomeAlreadyCheckedIn:
		s.record(func() { s.duplicate++ })
	default:
		s.record(func() { s.rejected++ })
	}

	return outcome, true
}

func (s *Session) record(apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply()
}

// computeRateLocked 调用方必须持锁
func (s *Session) computeRateLocked() float64 {
	elapsed := s.now().Sub(s.startedAt).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.accepted) / elapsed
}

// Stats 当前计数快照
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		State:          s.state,
		Accepted:       s.accepted,
		Duplicate:      s.duplicate,
		Rejected:       s.rejected,
		ScansPerMinute: s.rate,
	}
}
