package hertzws

import (
	"context"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"

	"vidsync/internal/transport"
)

// Handler WebSocket处理器
type Handler struct {
	hub      transport.Hub
	opts     transport.Options
	upgrader websocket.HertzUpgrader
}

// NewHandler 创建新的WebSocket处理器
func NewHandler(hub transport.Hub, opts transport.Options) *Handler {
	opts.IsUnexpectedClose = func(err error) bool {
		return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure)
	}
	return &Handler{
		hub:  hub,
		opts: opts,
		upgrader: websocket.HertzUpgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(ctx *app.RequestContext) bool {
				return true
			},
		},
	}
}

// HandleWebSocket 处理WebSocket连接
func (h *Handler) HandleWebSocket(c context.Context, ctx *app.RequestContext) {
	// 升级HTTP连接为WebSocket连接, 连接关闭前会话一直运行
	err := h.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		transport.NewSession(conn, h.hub, h.opts).Run(context.Background())
	})
	if err != nil {
		ilog.EventInfo(c, "ws_upgrade_failed", "remote", ctx.RemoteAddr().String(), "err", err)
	}
}
