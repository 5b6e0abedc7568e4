package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"stove_coordination/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingEvery    = wsPongTimeout * 9 / 10
	wsReadLimit    = 4 << 10

	streamDefaultEvery = time.Second
	streamMaxEvery     = 10 * time.Second
)

const (
	frameState = "state"
	frameError = "error"
)

// stateFrame is every message the stream writes.
type stateFrame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Origin is not checked; the route already requires a bearer token.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// stateStream pushes one user's coordination snapshot over a socket.
type stateStream struct {
	h      *Handler
	log    *logger.Logger
	conn   *websocket.Conn
	userID string
}

// @Summary      Stream coordination state
// @Description  WebSocket; sends {"type":"state","data":StateSnapshot} every interval (default 1s, max 10s). A failed load sends {"type":"error"} and closes.
// @Tags         coordination
// @Param        interval     query  string  false  "Go duration, e.g. 2s"
// @Param        interval_ms  query  int     false  "Milliseconds"
// @Router       /api/v1/ws [get]
// @Security     BearerAuth
func (h *Handler) wsConnect(c *gin.Context) {
	every := h.parseInterval(c)
	log := logger.OrNop(h.log).Named("ws")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	s := &stateStream{h: h, log: log, conn: conn, userID: currentUser(c)}
	s.run(c.Request.Context(), every)
}

func (s *stateStream) run(ctx context.Context, every time.Duration) {
	s.conn.SetReadLimit(wsReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	closed := make(chan struct{})
	go s.drain(closed)

	if !s.push(ctx) {
		return
	}

	tick := time.NewTicker(every)
	defer tick.Stop()
	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debugw("ws_ping_failed", "user_id", s.userID, "err", err)
				return
			}
		case <-tick.C:
			if !s.push(ctx) {
				return
			}
		}
	}
}

// drain reads until the peer goes away so control frames are processed.
func (s *stateStream) drain(closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.log.Debugw("ws_closed", "user_id", s.userID, "err", err)
			return
		}
	}
}

// push writes the current snapshot and reports whether the stream should
// continue. A load failure is reported to the client before closing.
func (s *stateStream) push(ctx context.Context) bool {
	snap, err := s.h.services.Monitoring.GetState(ctx, s.userID)
	frame := stateFrame{Type: frameState, Data: snap}
	if err != nil {
		s.log.Errorw("ws_state_failed", "user_id", s.userID, "err", err)
		frame = stateFrame{Type: frameError, Error: "failed to load state"}
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if werr := s.conn.WriteJSON(frame); werr != nil {
		s.log.Debugw("ws_write_failed", "user_id", s.userID, "err", werr)
		return false
	}
	return err == nil
}

// parseInterval reads ?interval=2s, then ?interval_ms=2000. Out of range or
// malformed values fall back to one second.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	valid := func(d time.Duration) bool { return d > 0 && d <= streamMaxEvery }

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && valid(d) {
			return d
		}
	}
	if s := c.Query("interval_ms"); s != "" {
		if ms, err := strconv.Atoi(s); err == nil && valid(time.Duration(ms)*time.Millisecond) {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return streamDefaultEvery
}
