package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"EventGate/internal/events"
	"EventGate/internal/model"
	"EventGate/pkg/logger"
	"EventGate/pkg/snowflake"
)

// Policy 签到资格策略。registered 永远有资格，cancelled 永远没有。
type Policy struct {
	AllowPending    bool
	AllowWaitlisted bool
}

// EligibleStatuses 返回允许迁移到 checked_in 的状态集合
func (p Policy) EligibleStatuses() []model.AttendeeStatus {
	statuses := []model.AttendeeStatus{model.AttendeeStatusRegistered}
	if p.AllowPending {
		statuses = append(statuses, model.AttendeeStatusPending)
	}
	if p.AllowWaitlisted {
		statuses = append(statuses, model.AttendeeStatusWaitlisted)
	}
	return statuses
}

// Registry 参会者签到状态的唯一权威。
// TryCheckIn 是系统里唯一的写操作，按行做条件更新，
// 同一参会者的并发请求最多只有一个能赢得 accepted。
type Registry struct {
	db     *gorm.DB
	sink   events.Sink
	policy Policy
}

func NewRegistry(db *gorm.DB, sink events.Sink, policy Policy) *Registry {
	return &Registry{db: db, sink: sink, policy: policy}
}

// Lookup 按注册码或参会者 ID 解析参会者，未命中返回 nil
func (r *Registry) Lookup(ctx context.Context, eventID int64, ref string) (*model.Attendee, error) {
	var attendee model.Attendee

	err := r.db.WithContext(ctx).
		Where("event_id = ? AND registration_code = ?", eventID, ref).
		First(&attendee).Error
	if err == nil {
		return &attendee, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query attendee by code: %w", err)
	}

	// 注册码未命中时允许用数字 ID 引用
	id, parseErr := strconv.ParseInt(ref, 10, 64)
	if parseErr != nil {
		return nil, nil
	}

	err = r.db.WithContext(ctx).
		Where("event_id = ? AND id = ?", eventID, id).
		First(&attendee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attendee by id: %w", err)
	}

	return &attendee, nil
}

// TryCheckIn 原子地尝试把参会者迁移到 checked_in。
// 条件 UPDATE 的行锁保证同一参会者的迁移是线性化的：
// RowsAffected == 1 的那一次提交（且只有那一次）得到 accepted。
func (r *Registry) TryCheckIn(
	ctx context.Context,
	eventID int64,
	ref string,
	method model.CheckInMethod,
	deviceID string,
	at time.Time,
) (model.Outcome, error) {
	attendee, err := r.Lookup(ctx, eventID, ref)
	if err != nil {
		return model.Outcome{}, err
	}
	if attendee == nil {
		return model.Outcome{Status: model.OutcomeNotFound}, nil
	}

	if attendee.Status == model.AttendeeStatusCheckedIn {
		outcome := model.Outcome{
			Status:     model.OutcomeAlreadyCheckedIn,
			AttendeeID: attendee.ID,
			Attendee:   attendee,
			CheckIn:    model.CheckInRecordOf(attendee),
		}
		r.emit(ctx, attendee, outcome, method, deviceID, at)
		return outcome, nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.Attendee{}).
		Where("id = ? AND status IN ?", attendee.ID, r.policy.EligibleStatuses()).
		Updates(map[string]interface{}{
			"status":          string(model.AttendeeStatusCheckedIn),
			"check_in_at":     at,
			"check_in_method": string(method),
			"check_in_device": deviceID,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return model.Outcome{}, fmt.Errorf("failed to update attendee status: %w", res.Error)
	}

	if res.RowsAffected == 1 {
		attendee.Status = model.AttendeeStatusCheckedIn
		attendee.CheckInAt = &at
		attendee.CheckInMethod = method
		attendee.CheckInDevice = deviceID

		outcome := model.Outcome{
			Status:     model.OutcomeAccepted,
			AttendeeID: attendee.ID,
			Attendee:   attendee,
			CheckIn: &model.CheckInRecord{
				Time:     at,
				Method:   method,
				DeviceID: deviceID,
			},
		}
		r.emit(ctx, attendee, outcome, method, deviceID, at)
		return outcome, nil
	}

	// 没有命中更新条件：要么被并发请求抢先签到，要么状态不符合资格
	var current model.Attendee
	if err := r.db.WithContext(ctx).First(&current, attendee.ID).Error; err != nil {
		return model.Outcome{}, fmt.Errorf("failed to reload attendee: %w", err)
	}

	if current.Status == model.AttendeeStatusCheckedIn {
		outcome := model.Outcome{
			Status:     model.OutcomeAlreadyCheckedIn,
			AttendeeID: current.ID,
			Attendee:   &current,
			CheckIn:    model.CheckInRecordOf(&current),
		}
		r.emit(ctx, &current, outcome, method, deviceID, at)
		return outcome, nil
	}

	return model.Outcome{
		Status:     model.OutcomeIneligible,
		AttendeeID: current.ID,
		Attendee:   &current,
	}, nil
}

// Stats 活动维度的权威计数，聚合永远来自注册表而不是各设备会话计数
func (r *Registry) Stats(ctx context.Context, eventID int64) (total, checkedIn int64, err error) {
	err = r.db.WithContext(ctx).
		Model(&model.Attendee{}).
		Where("event_id = ?", eventID).
		Count(&total).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count attendees: %w", err)
	}

	err = r.db.WithContext(ctx).
		Model(&model.Attendee{}).
		Where("event_id = ? AND status = ?", eventID, model.AttendeeStatusCheckedIn).
		Count(&checkedIn).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count checked-in attendees: %w", err)
	}

	return total, checkedIn, nil
}

// EventExists 活动是否存在
func (r *Registry) EventExists(ctx context.Context, eventID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query event: %w", err)
	}
	return count > 0, nil
}

func (r *Registry) emit(
	ctx context.Context,
	attendee *model.Attendee,
	outcome model.Outcome,
	method model.CheckInMethod,
	deviceID string,
	at time.Time,
) {
	if r.sink == nil {
		return
	}

	messageID := ""
	if id, err := snowflake.NextID(); err == nil {
		messageID = fmt.Sprintf("ci_evt_%d", id)
	} else {
		logger.Logger.Warn("Failed to generate event message ID",
			zap.Int64("attendee_id", attendee.ID),
			zap.Error(err),
		)
		messageID = fmt.Sprintf("ci_evt_%d_%d", attendee.ID, at.UnixNano())
	}

	r.sink.Emit(ctx, model.CheckInEventMessage{
		MessageID:    messageID,
		EventID:      attendee.EventID,
		AttendeeID:   attendee.ID,
		AttendeeName: attendee.Name,
		Outcome:      string(outcome.Status),
		Method:       string(method),
		DeviceID:     deviceID,
		OccurredAt:   at.Format(time.RFC3339),
	})
}
