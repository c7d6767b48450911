package chat

import (
	"context"

	"PPSocial/logger"
	"PPSocial/tools/ids"

	"go.uber.org/zap"
)

// Broker 跨进程投递；实现见 service/natsx.Broker
type Broker interface {
	Publish(ctx context.Context, userID, eventID string, payload []byte) error
	Subscribe(deliver func(userID string, payload []byte)) error
}

// Router 先投本节点，再交给 broker 投其他节点；broker 为 nil 时只投本节点
type Router struct {
	dir    *Directory
	broker Broker
}

func NewRouter(dir *Directory, broker Broker) *Router {
	return &Router{dir: dir, broker: broker}
}

func (r *Router) Directory() *Directory { return r.dir }

// Start 订阅其他节点发来的事件
func (r *Router) Start() error {
	if r.broker == nil {
		return nil
	}
	return r.broker.Subscribe(r.deliverRemote)
}

func (r *Router) deliverRemote(userID string, frame []byte) {
	if n := r.dir.Publish(userID, frame); n > 0 {
		logger.Debug("remote event delivered", zap.String("user", userID), zap.Int("conns", n))
	}
}

// Publish 实现 chat service 的 Publisher
func (r *Router) Publish(ctx context.Context, userID string, frame []byte) error {
	r.dir.Publish(userID, frame)
	if r.broker == nil {
		return nil
	}
	return r.broker.Publish(ctx, userID, ids.GenerateString(), frame)
}
