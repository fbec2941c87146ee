package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"EventGate/internal/model/dto"
	"EventGate/internal/service"
	errs "EventGate/pkg/errors"
	"EventGate/pkg/response"
)

// SearchAttendees 人工兜底检索参会者
// GET /v1/attendees/search?event_id=&q=
func SearchAttendees(ctx context.Context, c *app.RequestContext) {
	eventID, err := strconv.ParseInt(c.Query("event_id"), 10, 64)
	if err != nil || eventID <= 0 {
		response.Error(ctx, c, errs.EventNotFound)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := service.Attendee().Search(ctx, eventID, c.Query("q"), c.Query("status"), limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// ImportAttendees 导入/同步花名册
// POST /v1/attendees/import
func ImportAttendees(ctx context.Context, c *app.RequestContext) {
	var req dto.ImportAttendeesRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Attendee().Import(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
