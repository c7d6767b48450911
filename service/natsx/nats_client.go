package natsx

import (
	"strings"
	"sync"
	"time"

	"PPSocial/logger"
	"PPSocial/tools/errs"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NatsxConfig 客户端配置
type NatsxConfig struct {
	Servers       []string
	Name          string
	User          string
	Password      string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// NatsxClient core NATS 连接与订阅的持有者
type NatsxClient struct {
	cfg NatsxConfig
	nc  *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNatsxClient 连接 NATS；断线后无限重连
func NewNatsxClient(cfg NatsxConfig) (*NatsxClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Warn("nats async error", zap.String("subject", subject), zap.Error(err))
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", cfg.Servers)
	}
	return &NatsxClient{cfg: cfg, nc: nc}, nil
}

// Subscribe 广播订阅（不用队列组：每个节点都要收到）
func (c *NatsxClient) Subscribe(subject string, h NatsxHandler) error {
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		_ = h(NatsxMessage{
			Subject: m.Subject,
			Data:    m.Data,
			Header:  headerToMap(m.Header),
		})
	})
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe", "subject", subject)
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

func (c *NatsxClient) Publish(subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Set(k, v)
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return errs.WrapMsg(err, "nats publish", "subject", subject)
	}
	return nil
}

func (c *NatsxClient) Connected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Close 优雅关闭：先排空订阅，再排空连接
func (c *NatsxClient) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Drain()
	}
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
