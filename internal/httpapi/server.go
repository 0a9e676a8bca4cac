package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vidsync/internal/protocol"
	"vidsync/internal/relay"
	"vidsync/internal/rooms"
	"vidsync/internal/transport"
	"vidsync/internal/ws"
)

type Server struct {
	hub    *relay.Hub
	ws     *ws.Handler
	router *echo.Echo
}

func NewServer(hub *relay.Hub, opts transport.Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	server := &Server{
		hub:    hub,
		ws:     ws.NewHandler(hub, opts),
		router: e,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/health", server.handleHealth)
	e.GET("/api/rooms/:roomId", server.handleGetRoom)
	e.GET("/ws", server.handleWebSocket)

	return server
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	if err := s.router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, s.hub.Stats())
}

func (s *Server) handleGetRoom(c echo.Context) error {
	info, err := s.hub.RoomInfo(c.Param("roomId"))
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return respondError(c, http.StatusNotFound, "room_not_found", err.Error())
		}
		return respondError(c, http.StatusInternalServerError, "state_fetch_failed", err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	// The websocket handler takes over the connection; echo must not write
	// a response of its own.
	s.ws.ServeHTTP(c.Response(), c.Request())
	return nil
}

func respondError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, protocol.Envelope{
		Kind: "ERROR",
		Data: protocol.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}
