package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// MiddlewareManager 全局中间件链，启动时注册，运行中可整体替换。
// 链上的中间件不要调用 c.Next，需要包住后续处理的（如访问日志）直接挂到 Engine 上
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

func (m *MiddlewareManager) Add(hs ...gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, hs...)
}

func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

func (m *MiddlewareManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mids)
}

// Use 作为总控挂到 Engine 上；每个请求取一次快照，某个中间件 Abort 后后续不再执行
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		handlers := append([]gin.HandlerFunc{}, m.mids...)
		m.mu.RUnlock()

		for _, h := range handlers {
			h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
