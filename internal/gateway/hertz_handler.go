package gateway

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// HandleHertzConnection handles a WebSocket connection from Hertz using hertz-contrib/websocket
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	token := string(c.Query(QueryToken))
	if token == "" {
		c.String(400, "missing required parameters")
		return
	}

	claims, platformId, err := s.authenticate(ctx, token, string(c.Query(QueryPlatformId)))
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		c.String(401, "unauthorized")
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		connId := uuid.New().String()
		wsConn := NewHertzWebSocketClientConn(conn, &s.cfg.WebSocket)
		client := NewClient(wsConn, claims.UserId, platformId, connId, s)

		// Blocks until the peer disconnects. The channel only joins the
		// user's room once it sends join-user-room.
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}
