package global

import (
	"net/http"

	"PPSocial/logger"
	"PPSocial/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorBody 错误响应：{"error": "..."}
type ErrorBody struct {
	Error string `json:"error"`
}

// MessageBody 只带提示语的成功响应
type MessageBody struct {
	Message string `json:"message"`
}

// Fail 按错误码写状态码和错误体；内部错误只对外说 Server error
func Fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, &ErrorBody{Error: errs.Message(err)})
}

func Success(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, &MessageBody{Message: msg})
}
