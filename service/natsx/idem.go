package natsx

import (
	"context"
	"sync"
	"time"
)

// IdemStore 记录已处理过的消息 ID
type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

// 内存实现（单进程）
type memIdem struct {
	mu  sync.Mutex
	m   map[string]int64 // key -> expireUnixMilli
	ttl time.Duration
	now func() time.Time
}

// NewMemIdem 清理协程随 ctx 结束
func NewMemIdem(ctx context.Context, defaultTTL time.Duration) IdemStore {
	mi := &memIdem{m: make(map[string]int64), ttl: defaultTTL, now: time.Now}
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				mi.sweep()
			}
		}
	}()
	return mi
}

func (mi *memIdem) sweep() {
	now := mi.now().UnixMilli()
	mi.mu.Lock()
	for k, exp := range mi.m {
		if exp <= now {
			delete(mi.m, k)
		}
	}
	mi.mu.Unlock()
}

func (mi *memIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := mi.now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if old, ok := mi.m[key]; ok && old > now.UnixMilli() {
		return true, nil
	}
	mi.m[key] = now.Add(ttl).UnixMilli()
	return false, nil
}

// NatsxIdemMiddleware 按 HeaderMsgID 去重；没有 ID 的消息直接放行
func NatsxIdemMiddleware(store IdemStore, ttl time.Duration) NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(msg NatsxMessage) error {
			id := msg.Header[HeaderMsgID]
			if id == "" {
				return next(msg)
			}
			if seen, _ := store.SeenOnce(msg.Subject+"|"+id, ttl); seen {
				return nil
			}
			return next(msg)
		}
	}
}
