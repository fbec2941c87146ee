package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"EventGate/internal/service"
	errs "EventGate/pkg/errors"
	"EventGate/pkg/response"
)

// GetEventStats 活动统计：权威计数 + worker 折算的实时计数
// GET /v1/events/:event_id/stats
func GetEventStats(ctx context.Context, c *app.RequestContext) {
	eventID, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil || eventID <= 0 {
		response.Error(ctx, c, errs.EventNotFound)
		return
	}

	result, err := service.CheckIn().Stats(ctx, eventID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetEventActivity 最近签到动态
// GET /v1/events/:event_id/activity?limit=
func GetEventActivity(ctx context.Context, c *app.RequestContext) {
	eventID, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil || eventID <= 0 {
		response.Error(ctx, c, errs.EventNotFound)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := service.CheckIn().Activity(ctx, eventID, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, items)
}
