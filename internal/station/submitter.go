package station

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"EventGate/internal/model"
	"EventGate/internal/station/queue"
	"EventGate/pkg/logger"
)

// Submitter 扫码站的提交链路：在线直连服务端，
// 传输失败转离线入队，恢复在线后按序回放积压
type Submitter struct {
	client *Client
	queue  *queue.Queue

	mu     sync.Mutex
	online bool
}

func NewSubmitter(client *Client, q *queue.Queue) *Submitter {
	return &Submitter{
		client: client,
		queue:  q,
		online: true,
	}
}

// Online 当前连接状态
func (s *Submitter) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Submit 提交一次签到。queued 为 true 表示离线入队，此时没有判定。
// 业务拒绝原样返回错误，不会入队
func (s *Submitter) Submit(ctx context.Context, attempt model.CheckInAttempt) (outcome model.Outcome, queued bool, err error) {
	if !s.Online() {
		if err := s.queue.Enqueue(ctx, attempt); err != nil {
			return model.Outcome{}, false, err
		}
		return model.Outcome{}, true, nil
	}

	outcome, err = s.client.SubmitCheckIn(ctx, attempt)
	if err == nil {
		return outcome, false, nil
	}

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		// 服务端明确拒绝，入队重放也不会变好
		return model.Outcome{}, false, err
	}

	logger.Logger.Warn("Server unreachable, switching to offline queue",
		zap.String("attempt_id", attempt.AttemptID),
		zap.Error(err),
	)
	s.setOnline(false)

	if err := s.queue.Enqueue(ctx, attempt); err != nil {
		return model.Outcome{}, false, err
	}
	return model.Outcome{}, true, nil
}

// SetOnline 连接状态变化。恢复在线时触发积压回放
func (s *Submitter) SetOnline(ctx context.Context, online bool) error {
	s.setOnline(online)

	if !online {
		return nil
	}

	err := s.queue.Drain(ctx, s.client.SubmitCheckIn)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			// 回放途中又断了
			s.setOnline(false)
		}
		return err
	}

	return nil
}

// QueueStatus 队列状态，驱动"离线 — N 条待同步"指示
func (s *Submitter) QueueStatus(ctx context.Context) (queue.Status, error) {
	return s.queue.Status(ctx)
}

func (s *Submitter) setOnline(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
}
