package middleware

import (
	"github.com/gin-gonic/gin"
)

// RouteOpt 路由选项
type RouteOpt struct {
	IsAuth bool
}

// Routes 按 RouteOpt 决定是否在 handler 前挂会话校验
type Routes struct {
	r    gin.IRoutes
	auth gin.HandlerFunc
}

func NewRoutes(r gin.IRoutes, auth gin.HandlerFunc) *Routes {
	return &Routes{r: r, auth: auth}
}

func (rt *Routes) chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.IsAuth && rt.auth != nil {
		return []gin.HandlerFunc{rt.auth, handler}
	}
	return []gin.HandlerFunc{handler}
}

func (rt *Routes) POST(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.POST(path, rt.chain(handler, opt)...)
}

func (rt *Routes) GET(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.GET(path, rt.chain(handler, opt)...)
}

func (rt *Routes) HEAD(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.HEAD(path, rt.chain(handler, opt)...)
}
