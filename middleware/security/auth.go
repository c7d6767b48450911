package security

import (
	"context"
	"errors"
	"net/http"

	"PPSocial/global"
	"PPSocial/tools/errs"

	"github.com/gin-gonic/gin"
)

const (
	CookieName = "pps.sid"

	// context key，后续 handler 统一用 UserID/SessionID 读取
	CtxUserKey    = "pps.userId"
	CtxSessionKey = "pps.sessionId"
)

// SessionReader 通过会话ID查用户ID；会话不存在时返回 errs.ErrUnauthorized
type SessionReader interface {
	Get(ctx context.Context, sid string) (string, error)
}

// SessionAuth 要求请求带有效的 pps.sid cookie
func SessionAuth(sessions SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(CookieName)
		if err != nil || sid == "" {
			notAuthenticated(c)
			return
		}
		uid, err := sessions.Get(c.Request.Context(), sid)
		if err != nil {
			if errors.Is(err, errs.ErrUnauthorized) {
				notAuthenticated(c)
				return
			}
			global.Fail(c, err)
			return
		}
		c.Set(CtxUserKey, uid)
		c.Set(CtxSessionKey, sid)
		c.Next()
	}
}

func notAuthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, &global.ErrorBody{Error: "Not authenticated"})
}

func UserID(c *gin.Context) string { return c.GetString(CtxUserKey) }

func SessionID(c *gin.Context) string { return c.GetString(CtxSessionKey) }
