package post

import (
	"net/http"

	"PPSocial/global"
	"PPSocial/middleware"
	"PPSocial/middleware/security"
	"PPSocial/module/post/service"
	"PPSocial/tools/errs"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.PostService
}

func NewHandler(svc *service.PostService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(rt *middleware.Routes) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.POST("/posts/post", h.Create, auth)
	rt.POST("/posts/post/like/:postId", h.Like, auth)
	rt.POST("/posts/post/comment/:postId", h.Comment, auth)
	rt.GET("/user/feed", h.Feed, auth)
}

type bodyRequest struct {
	Content   string   `json:"content"`
	ImageURLs []string `json:"imageUrls"`
}

func bind(c *gin.Context) (*bodyRequest, bool) {
	var req bodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WrapMsg("Invalid request body."))
		return nil, false
	}
	return &req, true
}

func (h *Handler) Create(c *gin.Context) {
	req, ok := bind(c)
	if !ok {
		return
	}
	id, err := h.svc.Create(c.Request.Context(), security.UserID(c), req.Content, req.ImageURLs)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post was successful", "postId": id})
}

func (h *Handler) Like(c *gin.Context) {
	liked, err := h.svc.ToggleLike(c.Request.Context(), security.UserID(c), c.Param("postId"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated", "liked": liked})
}

func (h *Handler) Comment(c *gin.Context) {
	req, ok := bind(c)
	if !ok {
		return
	}
	cm, err := h.svc.Comment(c.Request.Context(), security.UserID(c), c.Param("postId"), req.Content, req.ImageURLs)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment added", "comment": cm})
}

func (h *Handler) Feed(c *gin.Context) {
	feed, err := h.svc.Feed(c.Request.Context(), security.UserID(c))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": feed})
}
