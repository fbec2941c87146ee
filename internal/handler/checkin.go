package handler

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"

	"EventGate/internal/middleware"
	"EventGate/internal/model/dto"
	"EventGate/internal/service"
	"EventGate/pkg/response"
)

// SubmitCheckIn 提交一次签到请求，attempt_id 相同的重复提交回放首次结果
// POST /v1/check-ins/submit
func SubmitCheckIn(ctx context.Context, c *app.RequestContext) {
	deviceID, ok := middleware.GetDeviceID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("device ID not found in context"))
		return
	}

	var req dto.SubmitCheckInRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.CheckIn().Submit(ctx, req, deviceID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
