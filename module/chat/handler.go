package chat

import (
	"net/http"
	"strconv"

	"PPSocial/global"
	"PPSocial/logger"
	"PPSocial/middleware"
	"PPSocial/middleware/security"
	"PPSocial/module/chat/service"
	"PPSocial/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 私信历史的 HTTP 接口；发送只走 WebSocket
type Handler struct {
	svc *service.MessageService
}

func NewHandler(svc *service.MessageService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(rt *middleware.Routes) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.GET("/api/chats", h.Conversations, auth)
	rt.GET("/api/chats/:userId", h.History, auth)
}

// History GET /api/chats/:userId?page=N，page 从 1 开始，每页旧到新
func (h *Handler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	me := security.UserID(c)
	msgs, err := h.svc.GetHistory(c.Request.Context(), me, c.Param("userId"), page)
	if err != nil {
		if errs.HTTPStatus(err) == http.StatusBadRequest {
			global.Fail(c, err)
			return
		}
		logger.Error("load chat history failed", zap.String("user", me), zap.String("with", c.Param("userId")), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, &global.ErrorBody{Error: errs.ErrServerInternal.Msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) Conversations(c *gin.Context) {
	items, err := h.svc.ListConversations(c.Request.Context(), security.UserID(c))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items})
}
