package router

import (
	"net/http"

	"PPSocial/global/config"
	"PPSocial/middleware"
	"PPSocial/middleware/security"
	chatmod "PPSocial/module/chat"
	"PPSocial/module/chat/message"
	chatmodel "PPSocial/module/chat/model"
	chatsvc "PPSocial/module/chat/service"
	postmod "PPSocial/module/post"
	poststore "PPSocial/module/post/store"
	postsvc "PPSocial/module/post/service"
	usermod "PPSocial/module/user"
	userstore "PPSocial/module/user/store"
	usersvc "PPSocial/module/user/service"
	"PPSocial/service/chat"
	"PPSocial/service/chat/handlers"
	toolsec "PPSocial/tools/security"

	"github.com/gin-gonic/gin"
)

// Sessions cookie 会话存储，storage.SessionStore 满足
type Sessions interface {
	usersvc.Sessions
	security.SessionReader
}

// Deps 已经连好的基础设施；Broker/Sink/Presence 可为 nil
type Deps struct {
	Sessions      Sessions
	Users         userstore.Repo
	Posts         poststore.Repo
	Conversations message.ConversationStore
	Issuer        *toolsec.Issuer
	Broker        chat.Broker
	Sink          chatsvc.EventSink
	Presence      chat.Presence
}

// App 组装好的 HTTP 入口与实时网关
type App struct {
	Engine   *gin.Engine
	Router   *chat.Router
	WS       *chat.Server
	Messages *chatsvc.MessageService
}

// Setup 组装服务与路由
func Setup(cfg *config.Config, d Deps) (*App, error) {
	users := usersvc.NewUserService(d.Users, d.Sessions, d.Issuer, d.Conversations)
	posts := postsvc.NewPostService(d.Posts, d.Users)

	rt := chat.NewRouter(chat.NewDirectory(), d.Broker)
	if err := rt.Start(); err != nil {
		return nil, err
	}

	msgs := chatsvc.NewMessageService(d.Conversations, users, rt, d.Sink, chatsvc.Options{
		Limits:   chatmodel.Limits{MaxImages: cfg.Chat.MaxImages, MaxContentRunes: cfg.Chat.MaxContentRunes},
		PageSize: cfg.Chat.PageSize,
	})

	disp := chat.NewDispatcher()
	handlers.Register(disp, msgs)
	ws := chat.NewServer(rt, d.Issuer, disp, chat.ServerOptions{
		Conn: chat.ConnOptions{
			PingInterval: cfg.WS.PingInterval,
			PongWait:     cfg.WS.PongWait,
			SendQueue:    cfg.WS.SendQueue,
			ReadLimit:    cfg.WS.ReadLimit,
		},
		SendTimeout: cfg.Chat.SendTimeout,
	}).WithConversationCounter(msgs)
	if d.Presence != nil {
		ws.WithPresence(d.Presence)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog())
	mgr := middleware.NewManager()
	mgr.Add(middleware.Origin())
	r.Use(mgr.Use())

	ok := func(c *gin.Context) { c.String(http.StatusOK, "OK") }
	r.GET("/", ok)
	r.HEAD("/", ok)
	r.GET("/ws", ws.HandleWS)
	r.GET("/socket", ws.HandleWS)

	routes := middleware.NewRoutes(r, security.SessionAuth(d.Sessions))
	usermod.NewHandler(users, usermod.CookieOptions{
		MaxAge: int(cfg.Auth.SessionTTL.Seconds()),
		Secure: cfg.Auth.CookieSecure,
	}).Routes(routes)
	postmod.NewHandler(posts).Routes(routes)
	chatmod.NewHandler(msgs).Routes(routes)

	return &App{Engine: r, Router: rt, WS: ws, Messages: msgs}, nil
}
