package natsx

import (
	"context"
	"strconv"
	"time"

	"PPSocial/global"
	"PPSocial/logger"

	"go.uber.org/zap"
)

const (
	HeaderNode  = "Pps-Node"
	HeaderMsgID = "Nats-Msg-Id"
)

// Broker 把某个用户的事件投给所有节点；每个节点只处理来自其他节点的事件，
// 本节点的连接已由调用方直接投递。
type Broker struct {
	client *NatsxClient
	prefix string
	nodeID string
	idem   IdemStore
}

func NewBroker(ctx context.Context, client *NatsxClient, prefix string, nodeID int64) *Broker {
	if prefix == "" {
		prefix = "pps.deliver"
	}
	return &Broker{
		client: client,
		prefix: prefix,
		nodeID: strconv.FormatInt(nodeID, 10),
		idem:   NewMemIdem(ctx, time.Minute),
	}
}

// Publish 发布到 <prefix>.<userId>；eventID 非空时用于接收端去重
func (b *Broker) Publish(_ context.Context, userID, eventID string, payload []byte) error {
	hdr := map[string]string{HeaderNode: b.nodeID}
	if eventID != "" {
		hdr[HeaderMsgID] = eventID
	}
	return b.client.Publish(global.DeliverSubject(b.prefix, userID), payload, hdr)
}

// Subscribe 订阅 <prefix>.*，把远端节点的事件交给 deliver
func (b *Broker) Subscribe(deliver func(userID string, payload []byte)) error {
	h := NatsxChain(b.handler(deliver), NatsxRecover(), NatsxIdemMiddleware(b.idem, time.Minute))
	return b.client.Subscribe(global.DeliverWildcard(b.prefix), h)
}

func (b *Broker) handler(deliver func(userID string, payload []byte)) NatsxHandler {
	return func(msg NatsxMessage) error {
		if msg.Header[HeaderNode] == b.nodeID {
			return nil
		}
		uid, ok := global.UserFromSubject(b.prefix, msg.Subject)
		if !ok {
			logger.Warn("broker: unexpected subject", zap.String("subject", msg.Subject))
			return nil
		}
		deliver(uid, msg.Data)
		return nil
	}
}

func (b *Broker) Close() error { return b.client.Close() }
