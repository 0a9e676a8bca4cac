package ws

import (
	"context"
	"net/http"

	"github.com/RanFeng/ilog"
	"github.com/gorilla/websocket"

	"vidsync/internal/transport"
)

type Handler struct {
	hub      transport.Hub
	opts     transport.Options
	upgrader websocket.Upgrader
}

func NewHandler(hub transport.Hub, opts transport.Options) *Handler {
	opts.IsUnexpectedClose = func(err error) bool {
		return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure)
	}
	return &Handler{
		hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		ilog.EventInfo(r.Context(), "ws_upgrade_failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	// The request context is cancelled once ServeHTTP returns, so the
	// session logs against a detached context.
	transport.NewSession(conn, h.hub, h.opts).Run(context.Background())
}
