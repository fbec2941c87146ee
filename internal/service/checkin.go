package service

import (
	"context"
	"sync"
	"time"

	"EventGate/config"
	"EventGate/internal/cache"
	"EventGate/internal/dedup"
	"EventGate/internal/events"
	"EventGate/internal/model"
	"EventGate/internal/model/dto"
	"EventGate/internal/registry"
	errs "EventGate/pkg/errors"
	"EventGate/pkg/metrics"
	"EventGate/storage/database"
)

type CheckInService struct {
	registry *registry.Registry
	dedup    *dedup.Deduplicator
}

var (
	checkInService *CheckInService
	checkInOnce    sync.Once
)

func CheckIn() *CheckInService {
	checkInOnce.Do(func() {
		reg := registry.NewRegistry(
			database.DB(),
			events.NewMQSink(),
			registry.Policy{
				AllowPending:    config.Cfg.CheckInAllowPending,
				AllowWaitlisted: config.Cfg.CheckInAllowWaitlisted,
			},
		)

		checkInService = &CheckInService{
			registry: reg,
			dedup: dedup.NewDeduplicator(
				cache.NewRedisAttemptLog(),
				func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error) {
					return reg.TryCheckIn(
						ctx,
						attempt.EventID,
						attempt.AttendeeRef,
						attempt.Method,
						attempt.DeviceID,
						time.Now(),
					)
				},
			),
		}
	})

	return checkInService
}

// Submit 处理一次签到提交：幂等层在前，状态迁移在后。
// not_found / ineligible 以错误形式返回，already_checked_in 是正常结果
func (s *CheckInService) Submit(
	ctx context.Context,
	req dto.SubmitCheckInRequest,
	deviceID string,
) (*dto.SubmitCheckInResponse, error) {
	start := time.Now()

	attempt := model.CheckInAttempt{
		AttemptID:       req.AttemptID,
		EventID:         req.EventID,
		AttendeeRef:     req.AttendeeRef,
		Method:          model.CheckInMethod(req.Method),
		DeviceID:        deviceID,
		ClientTimestamp: req.ClientTimestamp,
	}

	outcome, _, err := s.dedup.Submit(ctx, attempt)

	status := string(outcome.Status)
	if err != nil {
		status = "error"
	}
	metrics.GetMetrics().RecordOutcome(ctx, status, req.Method, deviceID, time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}

	switch outcome.Status {
	case model.OutcomeNotFound:
		return nil, errs.AttendeeNotFound
	case model.OutcomeIneligible:
		return nil, errs.AttendeeIneligible
	}

	return outcomeToResponse(outcome), nil
}

func outcomeToResponse(outcome model.Outcome) *dto.SubmitCheckInResponse {
	resp := &dto.SubmitCheckInResponse{
		Status:     string(outcome.Status),
		AttendeeID: outcome.AttendeeID,
	}
	if outcome.Attendee != nil {
		resp.Attendee = attendeeToItem(outcome.Attendee)
	}
	if outcome.CheckIn != nil {
		resp.CheckIn = &dto.CheckInDetail{
			Time:     outcome.CheckIn.Time,
			Method:   string(outcome.CheckIn.Method),
			DeviceID: outcome.CheckIn.DeviceID,
		}
	}
	return resp
}

// Stats 活动统计：权威计数来自注册表，实时计数来自 worker 折算的 redis
func (s *CheckInService) Stats(ctx context.Context, eventID int64) (*dto.EventStatsResponse, error) {
	exists, err := s.registry.EventExists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.EventNotFound
	}

	total, checkedIn, err := s.registry.Stats(ctx, eventID)
	if err != nil {
		return nil, err
	}

	live, err := cache.GetCheckedInCount(ctx, eventID)
	if err != nil {
		// redis 不可用时实时计数降级为权威计数
		live = checkedIn
	}

	return &dto.EventStatsResponse{
		EventID:        eventID,
		TotalAttendees: total,
		CheckedInCount: checkedIn,
		LiveCounter:    live,
	}, nil
}

// Activity 最近签到动态
func (s *CheckInService) Activity(ctx context.Context, eventID int64, limit int) ([]dto.ActivityItem, error) {
	exists, err := s.registry.EventExists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.EventNotFound
	}

	return cache.GetActivity(ctx, eventID, limit)
}
