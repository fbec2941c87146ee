package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"EventGate/config"
	"EventGate/internal/model"
	"EventGate/internal/model/dto"
	"EventGate/internal/search"
	errs "EventGate/pkg/errors"
	"EventGate/storage/database"
	"EventGate/utils"
)

type AttendeeService struct {
	db       *gorm.DB
	searcher *search.Searcher
}

var (
	attendeeService *AttendeeService
	attendeeOnce    sync.Once
)

func Attendee() *AttendeeService {
	attendeeOnce.Do(func() {
		db := database.DB()
		attendeeService = &AttendeeService{
			db:       db,
			searcher: search.NewSearcher(db, config.Cfg.SearchMaxResults),
		}
	})

	return attendeeService
}

// Search 人工兜底检索
func (s *AttendeeService) Search(ctx context.Context, eventID int64, query, statusFilter string, limit int) (*dto.SearchAttendeesResponse, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Event{}).Where("id = ?", eventID).Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	if count == 0 {
		return nil, errs.EventNotFound
	}

	attendees, err := s.searcher.Search(ctx, eventID, query, model.AttendeeStatus(statusFilter), limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.AttendeeItem, 0, len(attendees))
	for i := range attendees {
		items = append(items, *attendeeToItem(&attendees[i]))
	}

	return &dto.SearchAttendeesResponse{Query: query, Attendees: items}, nil
}

// Import 导入/同步花名册。按 (event_id, registration_code) 做 upsert：
// 已签到的行不回写，保住签到事实
func (s *AttendeeService) Import(ctx context.Context, req dto.ImportAttendeesRequest) (*dto.ImportAttendeesResponse, error) {
	eventID := req.EventID

	if eventID == 0 {
		if req.EventName == "" {
			return nil, errs.ImportRowInvalid
		}
		event := model.Event{Name: req.EventName}
		if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
			return nil, fmt.Errorf("failed to create event: %w", err)
		}
		eventID = event.ID
	} else {
		var count int64
		err := s.db.WithContext(ctx).Model(&model.Event{}).Where("id = ?", eventID).Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to query event: %w", err)
		}
		if count == 0 {
			return nil, errs.EventNotFound
		}
	}

	resp := &dto.ImportAttendeesResponse{EventID: eventID}

	for _, row := range req.Rows {
		switch s.importRow(ctx, eventID, row) {
		case importCreated:
			resp.Created++
		case importUpdated:
			resp.Updated++
		case importSkipped:
			resp.Skipped++
		default:
			resp.Rejected++
		}
	}

	return resp, nil
}

type importResult int

const (
	importRejected importResult = iota
	importCreated
	importUpdated
	importSkipped
)

func (s *AttendeeService) importRow(ctx context.Context, eventID int64, row dto.ImportAttendeeRow) importResult {
	if !utils.ValidateAttendeeRef(row.RegistrationCode) || row.Name == "" {
		return importRejected
	}

	status := model.AttendeeStatus(row.Status)
	if row.Status == "" {
		status = model.AttendeeStatusRegistered
	}
	switch status {
	case model.AttendeeStatusRegistered, model.AttendeeStatusPending,
		model.AttendeeStatusWaitlisted, model.AttendeeStatusCancelled:
	default:
		// 导入不允许直接写 checked_in，签到只能走提交通道
		return importRejected
	}

	var existing model.Attendee
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND registration_code = ?", eventID, row.RegistrationCode).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		attendee := model.Attendee{
			EventID:          eventID,
			RegistrationCode: row.RegistrationCode,
			Name:             row.Name,
			Email:            row.Email,
			Company:          row.Company,
			TicketType:       row.TicketType,
			Status:           status,
		}
		if createErr := s.db.WithContext(ctx).Create(&attendee).Error; createErr != nil {
			return importRejected
		}
		return importCreated
	}
	if err != nil {
		return importRejected
	}

	if existing.Status == model.AttendeeStatusCheckedIn {
		return importSkipped
	}

	updateErr := s.db.WithContext(ctx).
		Model(&model.Attendee{}).
		Where("id = ? AND status <> ?", existing.ID, model.AttendeeStatusCheckedIn).
		Updates(map[string]interface{}{
			"name":        row.Name,
			"email":       row.Email,
			"company":     row.Company,
			"ticket_type": row.TicketType,
			"status":      string(status),
		}).Error
	if updateErr != nil {
		return importRejected
	}
	return importUpdated
}

func attendeeToItem(a *model.Attendee) *dto.AttendeeItem {
	return &dto.AttendeeItem{
		ID:               a.ID,
		RegistrationCode: a.RegistrationCode,
		Name:             a.Name,
		Email:            a.Email,
		Company:          a.Company,
		TicketType:       a.TicketType,
		Status:           string(a.Status),
		CheckInAt:        a.CheckInAt,
	}
}
