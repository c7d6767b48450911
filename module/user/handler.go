package user

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"PPSocial/global"
	"PPSocial/middleware"
	"PPSocial/middleware/security"
	"PPSocial/module/user/service"
	"PPSocial/tools/errs"

	"github.com/gin-gonic/gin"
)

type CookieOptions struct {
	MaxAge int // 秒
	Secure bool
}

type Handler struct {
	svc    *service.UserService
	cookie CookieOptions
}

func NewHandler(svc *service.UserService, cookie CookieOptions) *Handler {
	return &Handler{svc: svc, cookie: cookie}
}

// Routes 账号、关注与搜索相关路由
func (h *Handler) Routes(rt *middleware.Routes) {
	open := middleware.RouteOpt{}
	auth := middleware.RouteOpt{IsAuth: true}
	rt.POST("/auth/register", h.Register, open)
	rt.POST("/auth/login", h.Login, open)
	rt.POST("/auth/logout", h.Logout, auth)
	rt.GET("/auth/profile", h.Profile, auth)
	rt.GET("/me", h.Me, auth)
	rt.POST("/user/follow", h.Follow, auth)
	rt.POST("/user/unfollow", h.Unfollow, auth)
	rt.GET("/search/userprofile", h.Search, auth)
	rt.GET("/search/self", h.Self, auth)
	rt.GET("/search/recommendations", h.Recommendations, auth)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type targetRequest struct {
	UserID string `json:"userId"`
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		global.Fail(c, errs.ErrValidation.WrapMsg("Invalid request body."))
		return false
	}
	return true
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.svc.Register(c.Request.Context(), req.Username, req.Password, req.Role); err != nil {
		if errors.Is(err, errs.ErrRecordExists) || errors.Is(err, errs.ErrValidation) {
			c.AbortWithStatusJSON(http.StatusBadRequest, &global.ErrorBody{Error: errs.Message(err)})
			return
		}
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, &global.MessageBody{Message: "User registered."})
}

func (h *Handler) setSessionCookie(c *gin.Context, sid string, maxAge int) {
	if h.cookie.Secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(security.CookieName, sid, maxAge, "/", "", h.cookie.Secure, true)
}

// Login 同时下发 cookie 会话与实时连接用的 token
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			c.AbortWithStatusJSON(http.StatusBadRequest, &global.ErrorBody{Error: errs.ErrUserNotFound.Msg})
			return
		}
		global.Fail(c, err)
		return
	}
	h.setSessionCookie(c, res.SessionID, h.cookie.MaxAge)
	c.JSON(http.StatusOK, gin.H{"message": "Logged in successfully.", "token": res.Token})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), security.SessionID(c)); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, &global.ErrorBody{Error: "Failed to log out."})
		return
	}
	h.setSessionCookie(c, "", -1)
	global.Success(c, "Logged out successfully.")
}

func (h *Handler) Profile(c *gin.Context) {
	u, err := h.svc.Profile(c.Request.Context(), security.UserID(c))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) Me(c *gin.Context) {
	me, err := h.svc.Me(c.Request.Context(), security.UserID(c))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (h *Handler) Follow(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Follow(c.Request.Context(), security.UserID(c), req.UserID)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        fmt.Sprintf("Successfully followed %s", res.Username),
		"conversationId": res.ConversationID,
	})
}

func (h *Handler) Unfollow(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	name, err := h.svc.Unfollow(c.Request.Context(), security.UserID(c), req.UserID)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, fmt.Sprintf("Successfully unfollowed %s", name))
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

// Search GET /search/userprofile?q=&page=&limit=
func (h *Handler) Search(c *gin.Context) {
	cards, p, err := h.svc.Search(c.Request.Context(), c.Query("q"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": cards, "pagination": p})
}

// Self GET /search/self?followersPage=&followingPage=&limit=
func (h *Handler) Self(c *gin.Context) {
	card, p, err := h.svc.Self(c.Request.Context(), security.UserID(c),
		queryInt(c, "followersPage"), queryInt(c, "followingPage"), queryInt(c, "limit"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": card, "pagination": p})
}

func (h *Handler) Recommendations(c *gin.Context) {
	users, err := h.svc.Recommendations(c.Request.Context(), security.UserID(c))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
