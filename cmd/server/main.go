package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/hertz/pkg/app/server"

	"vidsync/internal/config"
	"vidsync/internal/hertzapi"
	"vidsync/internal/httpapi"
	"vidsync/internal/relay"
	"vidsync/internal/rooms"
)

type httpServer interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// hertzServer 适配Hertz服务器的启动与关闭
type hertzServer struct {
	h *server.Hertz
}

func (s hertzServer) Start(string) error {
	return s.h.Run()
}

func (s hertzServer) Shutdown(ctx context.Context) error {
	return s.h.Shutdown(ctx)
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		ilog.EventInfo(ctx, "config_invalid", "err", err)
		os.Exit(1)
	}

	// 创建房间存储和消息中心
	hub := relay.NewHub(rooms.NewManager(cfg.RoomOptions()))

	var srv httpServer
	switch cfg.Engine {
	case config.EngineEcho:
		srv = httpapi.NewServer(hub, cfg.TransportOptions())
	default:
		h := server.Default(server.WithHostPorts(cfg.Addr()))
		srv = hertzServer{h: hertzapi.NewRouter(h, hub, cfg.TransportOptions())}
	}

	// 启动服务器
	go func() {
		ilog.EventInfo(ctx, "server_starting", "engine", cfg.Engine, "addr", cfg.Addr())
		if err := srv.Start(cfg.Addr()); err != nil {
			ilog.EventInfo(ctx, "server_failed", "err", err)
			os.Exit(1)
		}
	}()

	// 优雅关闭
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	ilog.EventInfo(ctx, "server_stopping")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	hub.CloseAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		ilog.EventInfo(ctx, "shutdown_failed", "err", err)
	}

	ilog.EventInfo(ctx, "server_stopped")
}
