package gateway

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"workhub/internal/config"
	"workhub/internal/entity"
	"workhub/pkg/jwt"
)

// WsServer owns the registry of connected channels and fans out new-message
// events and refresh hints to them. It is the only long-lived shared mutable
// state in the messaging core; everything else derives from the store. It
// is injected where publishing is needed (service.Pusher), never reached
// through a global.
type WsServer struct {
	upgrader      *websocket.Upgrader
	cfg           *config.Config
	validator     TokenValidator
	userMap       *UserMap
	eventChan     chan *clientEvent
	pushChan      chan *pushTask
	onlineUserNum atomic.Int64
	onlineConnNum atomic.Int64
	maxConnNum    int64
}

// pushTask is one fan-out unit: an encoded frame for a set of target users
type pushTask struct {
	frame     []byte
	targetIds []string
}

// clientEvent is a registry change. Register and unregister share one
// channel so a channel that joins and drops immediately is processed in
// the order it happened.
type clientEvent struct {
	client   *Client
	register bool
}

// TokenValidator checks a bearer token and resolves the caller's claims.
// Backed by AuthService so revoked tokens are rejected at upgrade time.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, validator TokenValidator) *WsServer {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return &WsServer{
		upgrader:   upgrader,
		cfg:        cfg,
		validator:  validator,
		userMap:    NewUserMap(rdb),
		eventChan:  make(chan *clientEvent, 1000),
		pushChan:   make(chan *pushTask, cfg.WebSocket.PushChannelSize),
		maxConnNum: cfg.WebSocket.MaxConnNum,
	}
}

// Run starts the WebSocket server loops
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)
	go s.presenceLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("started %d push workers", workerNum)
}

// eventLoop handles channel registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.eventChan:
			s.handleClientEvent(ctx, ev)
		}
	}
}

func (s *WsServer) handleClientEvent(ctx context.Context, ev *clientEvent) {
	if ev.register {
		s.registerClient(ctx, ev.client)
	} else {
		s.unregisterClient(ctx, ev.client)
	}
}

// presenceLoop keeps redis presence keys alive for connected users
func (s *WsServer) presenceLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.userMap.RefreshAll(ctx)
		}
	}
}

// pushLoop handles async fan-out
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask delivers one frame to every registered channel of each
// target user. Users without channels are skipped; they reconcile from the
// store on their next fetch.
func (s *WsServer) processPushTask(ctx context.Context, task *pushTask) {
	for _, userId := range task.targetIds {
		clients, ok := s.userMap.GetAll(userId)
		if !ok {
			continue
		}

		for _, client := range clients {
			if err := client.Push(ctx, task.frame); err != nil {
				log.CtxDebug(ctx, "push to channel failed: user_id=%s, conn_id=%s, error=%v", userId, client.ConnId, err)
			}
		}
	}
}

// enqueue submits a fan-out task without ever blocking the request path
func (s *WsServer) enqueue(event string, payload interface{}, targetIds []string) {
	if len(targetIds) == 0 {
		return
	}

	frame, err := NewServerEvent(event, payload)
	if err != nil {
		log.Error("encode %s event failed: %v", event, err)
		return
	}

	select {
	case s.pushChan <- &pushTask{frame: frame, targetIds: targetIds}:
	default:
		log.Warn("push channel full, dropping %s fan-out for %d users", event, len(targetIds))
	}
}

// PushNewMessage delivers the hydrated message to every registered channel
// of each target user. Implements service.Pusher.
func (s *WsServer) PushNewMessage(msg *entity.MessageInfo, userIds []string) {
	s.enqueue(EventNewMessage, msg, userIds)
}

// SignalConversationsChanged tells the target users to re-fetch their
// conversation list
func (s *WsServer) SignalConversationsChanged(userIds []string) {
	s.enqueue(EventUpdateConversations, nil, userIds)
}

// SignalUnreadChanged tells one user to re-fetch their unread count
func (s *WsServer) SignalUnreadChanged(userId string) {
	s.enqueue(EventUpdateUnreadCount, nil, []string{userId})
}

// registerClient registers a channel into its user's room
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	existingClients, exists := s.userMap.GetAll(client.UserId)
	if !exists {
		s.onlineUserNum.Add(1)
	}

	s.userMap.Register(ctx, client)
	s.onlineConnNum.Add(1)

	log.CtxInfo(ctx, "channel registered: user_id=%s, platform_id=%d, conn_id=%s, existing_conns=%d, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, len(existingClients), s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// unregisterClient removes a channel from its user's room
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	isUserOffline := s.userMap.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)

	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "channel unregistered: user_id=%s, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// RegisterClient queues a channel for registration
func (s *WsServer) RegisterClient(client *Client) {
	s.eventChan <- &clientEvent{client: client, register: true}
}

// UnregisterClient queues a channel for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.eventChan <- &clientEvent{client: client, register: false}:
	default:
		log.Warn("event channel full, dropping unregister: user_id=%s", client.UserId)
	}
}

// IsOnline reports whether the user has at least one registered channel
func (s *WsServer) IsOnline(ctx context.Context, userId string) bool {
	return s.userMap.IsOnline(ctx, userId)
}

// authenticate validates the token query parameters of a connection attempt
func (s *WsServer) authenticate(ctx context.Context, token, platformIdStr string) (*jwt.Claims, int, error) {
	platformId := 0
	if platformIdStr != "" {
		platformId, _ = strconv.Atoi(platformIdStr)
	}

	var claims *jwt.Claims
	var err error
	if s.validator != nil {
		claims, err = s.validator.ValidateToken(ctx, token)
	} else {
		claims, err = jwt.ParseToken(token, s.cfg.JWT.Secret)
	}
	if err != nil {
		return nil, 0, err
	}
	return claims, platformId, nil
}

// HandleConnection handles a WebSocket connection on the standalone
// net/http listener (gorilla upgrade path)
func (s *WsServer) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get(QueryToken)
	if token == "" {
		http.Error(w, "missing required parameters", http.StatusBadRequest)
		return
	}

	claims, platformId, err := s.authenticate(ctx, token, r.URL.Query().Get(QueryPlatformId))
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	connId := uuid.New().String()
	wsConn := NewWebSocketClientConn(conn, &s.cfg.WebSocket)
	client := NewClient(wsConn, claims.UserId, platformId, connId, s)

	client.readLoop()
}
