package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhub/internal/config"
	"workhub/internal/entity"
)

// fakeConn captures written frames instead of touching a network
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	return nil, ErrConnClosed
}

func (f *fakeConn) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) events(t *testing.T) []ServerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ServerEvent, 0, len(f.frames))
	for _, frame := range f.frames {
		var ev ServerEvent
		require.NoError(t, json.Unmarshal(frame, &ev))
		out = append(out, ev)
	}
	return out
}

func newTestServer() *WsServer {
	cfg := &config.Config{}
	cfg.WebSocket.MaxConnNum = 100
	cfg.WebSocket.PushChannelSize = 100
	cfg.WebSocket.PushWorkerNum = 1
	return NewWsServer(cfg, nil, nil)
}

func joinClient(t *testing.T, s *WsServer, userId, connId string) (*Client, *fakeConn) {
	conn := &fakeConn{}
	client := NewClient(conn, userId, 0, connId, s)

	require.NoError(t, client.handleEvent([]byte(`{"event":"join-user-room"}`)))
	require.True(t, client.Joined())

	// Drain the registration the join queued
	select {
	case ev := <-s.eventChan:
		require.True(t, ev.register)
		s.handleClientEvent(context.Background(), ev)
	default:
		t.Fatal("join did not queue a registration")
	}
	return client, conn
}

func drainEvents(s *WsServer) {
	for {
		select {
		case ev := <-s.eventChan:
			s.handleClientEvent(context.Background(), ev)
		default:
			return
		}
	}
}

func drainPush(t *testing.T, s *WsServer) {
	for {
		select {
		case task := <-s.pushChan:
			s.processPushTask(context.Background(), task)
		default:
			return
		}
	}
}

func TestNewMessageFanOut(t *testing.T) {
	s := newTestServer()

	// Bob has two channels, Carol one, Alice is the sender
	_, bobWeb := joinClient(t, s, "bob", "conn-1")
	_, bobPhone := joinClient(t, s, "bob", "conn-2")
	_, carolConn := joinClient(t, s, "carol", "conn-3")
	_, aliceConn := joinClient(t, s, "alice", "conn-4")

	msg := &entity.MessageInfo{
		Id:             1,
		ConversationId: "conv-1",
		SenderId:       "alice",
		Author:         "Alice",
		Content:        "design review at 3?",
		Attachments: []*entity.AttachmentInfo{
			{Id: 9, Url: "https://files/whiteboard.png", FileName: "whiteboard.png", FileType: "image"},
		},
	}

	s.PushNewMessage(msg, []string{"bob", "carol"})
	drainPush(t, s)

	for _, conn := range []*fakeConn{bobWeb, bobPhone, carolConn} {
		events := conn.events(t)
		require.Len(t, events, 1)
		assert.Equal(t, EventNewMessage, events[0].Event)

		var got entity.MessageInfo
		require.NoError(t, json.Unmarshal(events[0].Data, &got))
		assert.Equal(t, "design review at 3?", got.Content)
		require.Len(t, got.Attachments, 1)
		assert.Equal(t, "whiteboard.png", got.Attachments[0].FileName)
	}

	// The sender is not a fan-out target
	assert.Empty(t, aliceConn.events(t))
}

func TestFanOutSkipsUnjoinedChannels(t *testing.T) {
	s := newTestServer()

	// Connected but never sent join-user-room
	conn := &fakeConn{}
	client := NewClient(conn, "dave", 0, "conn-1", s)
	assert.False(t, client.Joined())

	s.PushNewMessage(&entity.MessageInfo{Content: "hi"}, []string{"dave"})
	drainPush(t, s)

	assert.Empty(t, conn.events(t))
}

func TestSignalEventsCarryNoPayload(t *testing.T) {
	s := newTestServer()
	_, conn := joinClient(t, s, "erin", "conn-1")

	s.SignalConversationsChanged([]string{"erin"})
	s.SignalUnreadChanged("erin")
	drainPush(t, s)

	events := conn.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, EventUpdateConversations, events[0].Event)
	assert.Empty(t, events[0].Data)
	assert.Equal(t, EventUpdateUnreadCount, events[1].Event)
	assert.Empty(t, events[1].Data)
}

func TestJoinIsIdempotent(t *testing.T) {
	s := newTestServer()
	conn := &fakeConn{}
	client := NewClient(conn, "frank", 0, "conn-1", s)

	require.NoError(t, client.handleEvent([]byte(`{"event":"join-user-room"}`)))
	require.NoError(t, client.handleEvent([]byte(`{"event":"join-user-room"}`)))

	assert.Len(t, s.eventChan, 1)
}

func TestJoinThenDisconnectKeepsRegistryClean(t *testing.T) {
	s := newTestServer()
	conn := &fakeConn{}
	client := NewClient(conn, "judy", 0, "conn-1", s)

	// Join and drop before the event loop gets a chance to run; both
	// changes ride the same queue, so they apply in the order they happened
	require.NoError(t, client.handleEvent([]byte(`{"event":"join-user-room"}`)))
	client.close()
	drainEvents(s)

	assert.False(t, s.IsOnline(context.Background(), "judy"))
	assert.Equal(t, int64(0), s.onlineUserNum.Load())
	assert.Equal(t, int64(0), s.onlineConnNum.Load())

	s.PushNewMessage(&entity.MessageInfo{Content: "late"}, []string{"judy"})
	drainPush(t, s)
	assert.Empty(t, conn.events(t))
}

func TestHandleEventRejectsUnknownFrames(t *testing.T) {
	s := newTestServer()
	client := NewClient(&fakeConn{}, "grace", 0, "conn-1", s)

	assert.ErrorIs(t, client.handleEvent([]byte(`not json`)), ErrInvalidProtocol)
	assert.ErrorIs(t, client.handleEvent([]byte(`{"event":"shutdown"}`)), ErrInvalidProtocol)
	assert.False(t, client.Joined())
}

func TestUnregisterRemovesChannel(t *testing.T) {
	s := newTestServer()
	client, conn := joinClient(t, s, "heidi", "conn-1")

	s.unregisterClient(context.Background(), client)

	s.PushNewMessage(&entity.MessageInfo{Content: "gone"}, []string{"heidi"})
	drainPush(t, s)

	assert.Empty(t, conn.events(t))
	assert.Equal(t, int64(0), s.onlineConnNum.Load())
}

func TestClosedChannelRejectsPush(t *testing.T) {
	s := newTestServer()
	client, _ := joinClient(t, s, "ivan", "conn-1")

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Push(context.Background(), []byte(`{}`)), ErrConnClosed)
}

func TestServerEventEncoding(t *testing.T) {
	frame, err := NewServerEvent(EventNewMessage, map[string]string{"content": "x"})
	require.NoError(t, err)

	var ev ServerEvent
	require.NoError(t, Decode(frame, &ev))
	assert.Equal(t, EventNewMessage, ev.Event)
	assert.JSONEq(t, `{"content":"x"}`, string(ev.Data))

	// Hint events omit the data field entirely
	frame, err = NewServerEvent(EventUpdateUnreadCount, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"update-unread-count"}`, string(frame))
}
