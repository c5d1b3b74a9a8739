package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamPingInterval = 30 * time.Second
	streamPongWait     = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamReadLimit    = 4096
	streamSendBuffer   = 64
)

// ErrStreamBusy 广播队列已满，事件未推送
var ErrStreamBusy = errors.New("events: stream broadcast queue full")

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 管理端口，不校验来源
	CheckOrigin: func(*http.Request) bool { return true },
}

type streamMessage struct {
	deviceID string
	data     []byte
}

// streamRequest 客户端上行消息，目前只有 subscribe（切换设备过滤）
type streamRequest struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

type streamClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	filter atomic.Value // string，空串表示全部设备
}

func (c *streamClient) wants(deviceID string) bool {
	f, _ := c.filter.Load().(string)
	return f == "" || f == deviceID
}

// Stream WebSocket 实时事件推送，作为 Sink 挂在 Dispatcher 上
type Stream struct {
	mu         sync.RWMutex
	clients    map[*streamClient]struct{}
	register   chan *streamClient
	unregister chan *streamClient
	broadcast  chan streamMessage
	done       chan struct{}
	logger     *zap.Logger
}

func NewStream(logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		clients:    make(map[*streamClient]struct{}),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		broadcast:  make(chan streamMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run 事件循环，ctx 结束时断开所有客户端
func (h *Stream) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("stream client connected", zap.String("client_id", c.id), zap.Int("clients", n))

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*streamClient, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				if !c.wants(m.deviceID) {
					continue
				}
				select {
				case c.send <- m.data:
				default:
					// 消费过慢
					h.remove(c)
				}
			}
		}
	}
}

func (h *Stream) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("stream client disconnected", zap.String("client_id", c.id))
	}
}

// Count 在线客户端数
func (h *Stream) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Stream) Publish(_ context.Context, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- streamMessage{deviceID: e.DeviceID, data: data}:
		return nil
	case <-h.done:
		return nil
	default:
		return ErrStreamBusy
	}
}

// ServeHTTP 升级为 WebSocket，查询参数 device_id 可限定单个设备
func (h *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", zap.Error(err))
		return
	}
	c := &streamClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, streamSendBuffer),
	}
	c.filter.Store(r.URL.Query().Get("device_id"))

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Stream) readPump(c *streamClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(streamReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream client read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		var req streamRequest
		if json.Unmarshal(data, &req) != nil {
			continue
		}
		if req.Type == "subscribe" {
			c.filter.Store(req.DeviceID)
		}
	}
}

func (h *Stream) writePump(c *streamClient) {
	ticker := time.NewTicker(streamPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
