package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"EventGate/internal/handler"
	"EventGate/internal/middleware"
)

func Register(h *server.Hertz) {

	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	h.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := h.Group("/v1")

	// 认证相关路由
	auth := v1.Group("/auth")
	auth.Use(middleware.AuthRateLimitMiddleware()) // 认证接口限流
	{
		auth.POST("/station/exchange", handler.ExchangeStationKey)
		auth.POST("/token/refresh", handler.RefreshToken)
	}

	// 签到提交路由
	checkIns := v1.Group("/check-ins")
	checkIns.Use(middleware.AuthMiddleware())
	{
		checkIns.POST("/submit", middleware.SubmitRateLimitMiddleware(), handler.SubmitCheckIn)
	}

	// 参会者路由
	attendees := v1.Group("/attendees")
	attendees.Use(middleware.AuthMiddleware())
	{
		attendees.GET("/search", handler.SearchAttendees)
		attendees.POST("/import", handler.ImportAttendees)
	}

	// 活动统计路由
	events := v1.Group("/events")
	events.Use(middleware.AuthMiddleware())
	{
		events.GET("/:event_id/stats", handler.GetEventStats)
		events.GET("/:event_id/activity", handler.GetEventActivity)
	}
}
