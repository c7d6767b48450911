package kafka

import (
	"encoding/json"
	"sync"

	"PPSocial/logger"
	"PPSocial/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EventSink 异步投递领域事件；发送失败只记日志，不回传给调用方
type EventSink struct {
	topic    string
	producer sarama.AsyncProducer

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

var (
	ErrSinkClosed = errs.New("kafka event sink closed")
	ErrSinkBusy   = errs.New("kafka input buffer full, event dropped")
)

// NewEventSink 连接 broker，必要时建 topic，并启动错误回收协程
func NewEventSink(c Config) (*EventSink, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, errs.New("kafka brokers and topic are required")
	}
	cfg, err := BuildBaseConfig(c)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka client", "brokers", c.Brokers)
	}
	if c.AutoCreateTopic {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, errs.WrapMsg(err, "kafka admin")
		}
		if err := EnsureTopic(admin, c); err != nil {
			logger.Warn("kafka ensure topic failed", zap.String("topic", c.Topic), zap.Error(err))
		}
	}
	p, err := sarama.NewAsyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.WrapMsg(err, "kafka producer")
	}
	return NewEventSinkFromProducer(c.Topic, p), nil
}

func NewEventSinkFromProducer(topic string, p sarama.AsyncProducer) *EventSink {
	s := &EventSink{topic: topic, producer: p, done: make(chan struct{})}
	go s.drainErrors()
	return s
}

func (s *EventSink) drainErrors() {
	defer close(s.done)
	for perr := range s.producer.Errors() {
		key := ""
		if perr.Msg != nil && perr.Msg.Key != nil {
			if b, err := perr.Msg.Key.Encode(); err == nil {
				key = string(b)
			}
		}
		logger.Warn("kafka event dropped", zap.String("topic", s.topic), zap.String("key", key), zap.Error(perr.Err))
	}
}

// Emit 以 key 分区，JSON 编码 event。不阻塞：sarama 输入缓冲满（broker 不可达）时直接丢弃，
// Close 之后返回 ErrSinkClosed
func (s *EventSink) Emit(key string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return errs.WrapMsg(err, "encode event")
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.producer.Input() <- msg:
		return nil
	default:
		logger.Warn("kafka input full, event dropped", zap.String("topic", s.topic), zap.String("key", key))
		return ErrSinkBusy
	}
}

// Close 刷出缓冲并关闭，重复调用安全
func (s *EventSink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.producer.AsyncClose()
		<-s.done
	})
	return nil
}
