package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"EventGate/internal/model/dto"
	"EventGate/internal/service"
	"EventGate/pkg/response"
)

// ExchangeStationKey 扫码站用预共享密钥换取 token 对
// POST /v1/auth/station/exchange
func ExchangeStationKey(ctx context.Context, c *app.RequestContext) {
	var req dto.StationExchangeRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Auth().ExchangeStationKey(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// RefreshToken 刷新 token 对
// POST /v1/auth/token/refresh
func RefreshToken(ctx context.Context, c *app.RequestContext) {
	var req dto.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Auth().Refresh(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
