package gateway

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"
)

// Client represents a connected channel. A channel is authenticated at
// upgrade time but receives fan-out only after it joins its user's room.
type Client struct {
	mu         sync.Mutex
	conn       ClientConn
	UserId     string
	PlatformId int
	ConnId     string
	server     *WsServer
	joined     atomic.Bool
	closed     atomic.Bool
	closedErr  error
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId string, platformId int, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:       conn,
		UserId:     userId,
		PlatformId: platformId,
		ConnId:     connId,
		server:     server,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// readLoop continuously reads events from the connection. It returns when
// the connection drops, and unregisters the channel on the way out.
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleEvent(message); err != nil {
			log.CtxWarn(c.ctx, "handle event error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}
	}
}

// handleEvent handles a single incoming client event
func (c *Client) handleEvent(message []byte) error {
	var ev ClientEvent
	if err := Decode(message, &ev); err != nil {
		return ErrInvalidProtocol
	}

	switch ev.Event {
	case EventJoinUserRoom:
		c.join()
		return nil
	default:
		return ErrInvalidProtocol
	}
}

// join subscribes the channel to its user's room. Idempotent.
func (c *Client) join() {
	if c.joined.CompareAndSwap(false, true) {
		c.server.RegisterClient(c)
		log.CtxDebug(c.ctx, "channel joined user room: user_id=%s, conn_id=%s", c.UserId, c.ConnId)
	}
}

// Joined reports whether the channel has joined its user room
func (c *Client) Joined() bool {
	return c.joined.Load()
}

// Push writes an already-encoded server event frame to the channel.
// Non-blocking: a full write buffer drops the frame with an error, the
// client reconciles from the store.
func (c *Client) Push(ctx context.Context, frame []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(frame)
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	if c.joined.Load() {
		c.server.UnregisterClient(c)
	}
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
