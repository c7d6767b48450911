package middleware

import (
	"time"

	"PPSocial/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog 每个请求一行：方法、路径、状态码、耗时
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("http", fields...)
	}
}
