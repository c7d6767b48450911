package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"PPSocial/data/database/mgo/mongoutil"
	"PPSocial/logger"
	"PPSocial/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	healthEvery = 10 * time.Second // 健康检查周期
	failThresh  = 3                // 连续失败阈值
)

// ReadyHook runs every time a connection is (re)established, e.g. to ensure indexes.
type ReadyHook func(ctx context.Context, db *mongo.Database) error

type MongoManager struct {
	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once
	hooks     []ReadyHook

	lastErr atomic.Value // error
}

var globalMgr = &MongoManager{readyCh: make(chan struct{})}

func Manager() *MongoManager { return globalMgr }

// OnReady 注册连接就绪回调；需在 StartAsync 之前调用
func OnReady(h ReadyHook) {
	globalMgr.mu.Lock()
	globalMgr.hooks = append(globalMgr.hooks, h)
	globalMgr.mu.Unlock()
}

// StartAsync 一直运行到 ctx.Done()；首次连上时 close readyCh，掉线后自动重连
func StartAsync(ctx context.Context, cfg *mongoutil.Config) {
	go globalMgr.run(ctx, cfg)
}

func (m *MongoManager) run(ctx context.Context, cfg *mongoutil.Config) {
	for {
		if !m.connect(ctx, cfg) {
			return
		}
		if !m.watch(ctx) {
			return
		}
	}
}

// connect 带退避重试，直到成功或 ctx 结束
func (m *MongoManager) connect(ctx context.Context, cfg *mongoutil.Config) bool {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return false
		}
		cli, err := mongoutil.NewMongoDB(ctx, cfg)
		if err == nil {
			if err = m.runHooks(ctx, cli.GetDB()); err == nil {
				m.mu.Lock()
				m.client = cli
				m.mu.Unlock()
				m.readyOnce.Do(func() { close(m.readyCh) })
				logger.Info("mongo connected", zap.String("db", cfg.Database))
				return true
			}
			_ = cli.Disconnect(context.Background())
		}

		m.lastErr.Store(err)
		logger.Warn("mongo connect failed", zap.Int("attempt", attempt), zap.Error(err))

		backoff := baseBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1)) // 0~20%
		timer := time.NewTimer(backoff - jitter/2)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if attempt < 6 {
			attempt++
		}
	}
}

func (m *MongoManager) runHooks(ctx context.Context, db *mongo.Database) error {
	m.mu.RLock()
	hooks := append([]ReadyHook(nil), m.hooks...)
	m.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx, db); err != nil {
			return errs.WrapMsg(err, "mongo ready hook")
		}
	}
	return nil
}

// watch 周期 ping；连续失败达到阈值时断开并返回 true 触发重连
func (m *MongoManager) watch(ctx context.Context) bool {
	fail := 0
	ticker := time.NewTicker(healthEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return false
		case <-ticker.C:
			m.mu.RLock()
			c := m.client
			m.mu.RUnlock()
			if c == nil {
				return true
			}
			if err := c.GetDB().Client().Ping(ctx, nil); err != nil {
				fail++
				m.lastErr.Store(err)
				if fail >= failThresh {
					logger.Warn("mongo lost, reconnecting", zap.Error(err))
					m.drop()
					return true
				}
			} else {
				fail = 0
			}
		}
	}
}

func (m *MongoManager) drop() {
	m.mu.Lock()
	if m.client != nil {
		_ = m.client.Disconnect(context.Background())
		m.client = nil
	}
	m.mu.Unlock()
}

// Err 最近一次错误
func Err() error {
	if v := globalMgr.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func GetDB() *mongo.Database {
	db, ok := TryGetDB()
	if !ok {
		panic("Mongo not ready: wait Ready() or use TryGetDB()")
	}
	return db
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil, false
	}
	return globalMgr.client.GetDB(), true
}

// WaitReady 阻塞到首次连接成功或 ctx 结束
func WaitReady(ctx context.Context, m *MongoManager) error {
	m.mu.RLock()
	ready := m.client != nil
	m.mu.RUnlock()
	if ready {
		return nil
	}
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		if last := Err(); last != nil {
			return errs.WrapMsg(last, "mongo not ready")
		}
		return ctx.Err()
	}
}
