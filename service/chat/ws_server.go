package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"PPSocial/logger"
	"PPSocial/module/chat/model"
	"PPSocial/tools/errs"
	"PPSocial/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ServerOptions struct {
	Conn        ConnOptions
	SendTimeout time.Duration // 单个入站事件的处理超时，不随连接关闭而取消
}

type Server struct {
	router    *Router
	disp      *Dispatcher
	validator CredentialValidator
	presence  Presence
	counter   ConversationCounter
	opts      ServerOptions
	upgrader  websocket.Upgrader
}

func NewServer(router *Router, validator CredentialValidator, disp *Dispatcher, opts ServerOptions) *Server {
	safe.MustNotNil(router, "router")
	safe.MustNotNil(validator, "validator")
	if disp == nil {
		disp = NewDispatcher()
	}
	opts.Conn.norm()
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	return &Server{
		router:    router,
		disp:      disp,
		validator: validator,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) WithPresence(p Presence) *Server {
	s.presence = p
	return s
}

func (s *Server) WithConversationCounter(c ConversationCounter) *Server {
	s.counter = c
	return s
}

// HandleWS 握手前校验凭证：缺失或无效直接 401，不升级、不注册
func (s *Server) HandleWS(c *gin.Context) {
	token := credentialFrom(c.Request)
	if token == "" {
		logger.Info("ws refused: no credential", zap.String("remote", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrUnauthorized.Msg})
		return
	}
	userID, err := s.validator.Validate(token)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, errs.ErrCredentialExpired) {
			reason = "expired"
		}
		logger.Info("ws refused: bad credential", zap.String("reason", reason), zap.String("remote", c.ClientIP()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrCredentialMalformed.Msg})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Info("ws upgrade failed", zap.String("user", userID), zap.Error(err))
		return
	}
	conn := newConn(ws, s.opts.Conn)
	conn.authenticate(userID)
	s.serve(context.WithoutCancel(c.Request.Context()), conn)
}

func (s *Server) serve(base context.Context, c *Conn) {
	// greeting 先入队，保证它是连接上的第一帧
	c.SendEvent(model.EventConnected, &model.Connected{
		UserID:        c.UserID(),
		ConnID:        c.ID(),
		ServerTime:    time.Now().UTC(),
		Conversations: s.countConversations(base, c.UserID()),
	})
	c.onClose = s.teardown
	s.router.Directory().Register(c)
	c.transition(StateAuthenticated, StateSubscribed)
	s.touchPresence(c.UserID(), "online")
	logger.Info("ws connected", zap.String("user", c.UserID()), zap.String("conn", c.ID()))

	go c.writeLoop()
	c.readLoop(
		func(raw []byte) { s.handleFrame(base, c, raw) },
		func() { s.touchPresence(c.UserID(), "refresh") },
	)
}

func (s *Server) handleFrame(base context.Context, c *Conn, raw []byte) {
	f, err := model.DecodeFrame(raw)
	if err != nil {
		c.SendEvent(model.EventError, model.NewErrorEvent(err))
		return
	}
	ctx, cancel := context.WithTimeout(base, s.opts.SendTimeout)
	defer cancel()

	var herr error
	if perr := safe.Run("ws:"+f.Event, func() { herr = s.disp.Dispatch(ctx, c, f) }); perr != nil {
		herr = perr
	}
	if herr != nil {
		logger.Warn("ws event failed", zap.String("event", f.Event), zap.String("user", c.UserID()), zap.Error(herr))
		c.SendEvent(model.EventError, model.NewErrorEvent(herr))
	}
}

func (s *Server) teardown(c *Conn) {
	if s.router.Directory().Unregister(c) {
		s.touchPresence(c.UserID(), "offline")
	}
	logger.Info("ws disconnected", zap.String("user", c.UserID()), zap.String("conn", c.ID()), zap.Int64("dropped", c.Dropped()))
}

func (s *Server) countConversations(ctx context.Context, userID string) int {
	if s.counter == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := s.counter.CountConversations(ctx, userID)
	if err != nil {
		logger.Warn("count conversations failed", zap.String("user", userID), zap.Error(err))
	}
	return n
}

func (s *Server) touchPresence(userID, op string) {
	if s.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var err error
	switch op {
	case "online":
		err = s.presence.Online(ctx, userID)
	case "offline":
		err = s.presence.Offline(ctx, userID)
	default:
		err = s.presence.Refresh(ctx, userID)
	}
	if err != nil {
		logger.Warn("presence update failed", zap.String("op", op), zap.String("user", userID), zap.Error(err))
	}
}
