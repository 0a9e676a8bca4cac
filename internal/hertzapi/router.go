package hertzapi

import (
	"context"
	"errors"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"vidsync/internal/hertzws"
	"vidsync/internal/protocol"
	"vidsync/internal/relay"
	"vidsync/internal/rooms"
	"vidsync/internal/transport"
)

const requestIDHeader = "X-Request-ID"

// NewRouter 初始化Hertz路由
func NewRouter(h *server.Hertz, hub *relay.Hub, opts transport.Options) *server.Hertz {
	// 创建WebSocket处理器
	wsHandler := hertzws.NewHandler(hub, opts)

	// 注册中间件
	h.Use(recoveryMiddleware())
	h.Use(loggerMiddleware())

	// 健康检查接口
	h.GET("/healthz", func(c context.Context, ctx *app.RequestContext) {
		ctx.String(consts.StatusOK, "ok")
	})
	h.GET("/health", handleHealth(hub))

	// API路由组
	api := h.Group("/api")
	{
		api.GET("/rooms/:roomId", handleGetRoom(hub))
	}

	// WebSocket路由
	h.GET("/ws", wsHandler.HandleWebSocket)

	return h
}

// recoveryMiddleware 恢复中间件
func recoveryMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				ilog.EventInfo(c, "panic_recovered", "path", string(ctx.Path()), "err", err)
				respondError(ctx, consts.StatusInternalServerError, "internal_error", "Internal Server Error")
			}
		}()
		ctx.Next(c)
	}
}

// loggerMiddleware 日志中间件, 为每个请求打上请求ID
func loggerMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		requestID := string(ctx.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Response.Header.Set(requestIDHeader, requestID)

		ctx.Next(c)

		ilog.EventInfo(c, "http_request",
			"requestId", requestID,
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"status", ctx.Response.StatusCode(),
			"latency", time.Since(start).String(),
		)
	}
}

// handleHealth 返回房间数和连接数
func handleHealth(hub *relay.Hub) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, hub.Stats())
	}
}

// handleGetRoom 获取房间状态处理函数
func handleGetRoom(hub *relay.Hub) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		roomID := ctx.Param("roomId")
		info, err := hub.RoomInfo(roomID)
		if err != nil {
			if errors.Is(err, rooms.ErrRoomNotFound) {
				respondError(ctx, consts.StatusNotFound, "room_not_found", err.Error())
				return
			}
			respondError(ctx, consts.StatusInternalServerError, "state_fetch_failed", err.Error())
			return
		}

		ctx.JSON(consts.StatusOK, info)
	}
}

// respondError 返回错误响应
func respondError(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, protocol.Envelope{
		Kind: "ERROR",
		Data: protocol.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}
