package natsx

import (
	"PPSocial/logger"
	"PPSocial/tools/safe"

	"go.uber.org/zap"
)

// NatsxMessage 统一消息对象
type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// NatsxHandler 业务处理函数
type NatsxHandler func(msg NatsxMessage) error

// NatsxMiddleware 中间件（日志、幂等、恢复）
type NatsxMiddleware func(NatsxHandler) NatsxHandler

// NatsxChain 组合中间件，mws[0] 在最外层
func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NatsxRecover handler 的 panic 与错误只记日志，不影响订阅
func NatsxRecover() NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(msg NatsxMessage) error {
			var err error
			if perr := safe.Run("nats:"+msg.Subject, func() { err = next(msg) }); perr != nil {
				return perr
			}
			if err != nil {
				logger.Warn("nats handler failed", zap.String("subject", msg.Subject), zap.Error(err))
			}
			return err
		}
	}
}
