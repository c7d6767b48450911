package chat

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"PPSocial/logger"
	"PPSocial/module/chat/model"
	"PPSocial/tools/ids"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateSubscribed
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type ConnOptions struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendQueue    int
	ReadLimit    int64
}

func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		PingInterval: 25 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		SendQueue:    256,
		ReadLimit:    1 << 20,
	}
}

func (o *ConnOptions) norm() {
	d := DefaultConnOptions()
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.SendQueue <= 0 {
		o.SendQueue = d.SendQueue
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
}

// Conn 一条 WebSocket 连接。一个读协程、一个写协程；
// 写协程是唯一调用 WriteMessage 的地方，其他人只往 send 队列里放帧。
type Conn struct {
	id        string
	userID    string
	ws        *websocket.Conn
	remote    net.Addr
	opts      ConnOptions
	createdAt time.Time

	send    chan []byte
	done    chan struct{}
	state   atomic.Int32
	dropped atomic.Int64

	closeOnce sync.Once
	onClose   func(*Conn)
}

func newConn(ws *websocket.Conn, opts ConnOptions) *Conn {
	c := &Conn{
		id:        ids.GenerateString(),
		ws:        ws,
		remote:    ws.RemoteAddr(),
		opts:      opts,
		createdAt: time.Now(),
		send:      make(chan []byte, opts.SendQueue),
		done:      make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Conn) ID() string { return c.id }
func (c *Conn) UserID() string { return c.userID }
func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }
func (c *Conn) Dropped() int64 { return c.dropped.Load() }
func (c *Conn) Done() <-chan struct{} { return c.done }

// transition 只允许向前迁移；Closed 之后不再变化
func (c *Conn) transition(from, to ConnState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

func (c *Conn) authenticate(userID string) bool {
	if !c.transition(StateConnecting, StateAuthenticated) {
		return false
	}
	c.userID = userID
	return true
}

// Enqueue 非阻塞入队；队列满说明对端太慢，丢弃这一帧
func (c *Conn) Enqueue(frame []byte) bool {
	if c.State() == StateClosed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		n := c.dropped.Add(1)
		logger.Warn("ws send queue full, frame dropped",
			zap.String("conn", c.id), zap.String("user", c.userID), zap.Int64("dropped", n))
		return false
	}
}

// SendEvent 编码并入队一个事件
func (c *Conn) SendEvent(event string, data any) bool {
	frame, err := model.EncodeFrame(event, data)
	if err != nil {
		logger.Error("ws encode event failed", zap.String("event", event), zap.Error(err))
		return false
	}
	return c.Enqueue(frame)
}

// Close 从任何状态进入 Closed，只执行一次
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		if c.onClose != nil {
			c.onClose(c)
		}
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
		logger.Debug("ws closed", zap.String("conn", c.id), zap.String("user", c.userID))
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("ws write failed", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				logger.Debug("ws ping failed", zap.String("conn", c.id), zap.Error(err))
				return
			}
		}
	}
}

// readLoop 串行处理入站帧，直到出错或连接关闭；onPong 在每次收到 pong 时调用
func (c *Conn) readLoop(handle func(raw []byte), onPong func()) {
	defer c.Close()
	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		if onPong != nil {
			onPong()
		}
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Info("ws read error", zap.String("conn", c.id), zap.String("user", c.userID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		handle(data)
	}
}
