package redis

import (
	"context"
	"sync"
	"time"

	"PPSocial/tools/errs"

	"github.com/redis/go-redis/v9"
)

var (
	redisMu  sync.RWMutex
	redisMgr *RedisManager
)

type RedisManager struct {
	client *redis.Client
}

// Config 用于初始化 Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// InitRedis 初始化 Redis 管理器（单例），连不上时返回错误且不保留客户端
func InitRedis(c Config) error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr != nil {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return errs.WrapMsg(err, "redis ping", "addr", c.Addr)
	}
	redisMgr = &RedisManager{client: rdb}
	return nil
}

// GetRedis 获取 Redis Client
func GetRedis() *redis.Client {
	redisMu.RLock()
	defer redisMu.RUnlock()
	if redisMgr == nil {
		panic("Redis not initialized, call InitRedis first")
	}
	return redisMgr.client
}

func CloseRedis() error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr != nil && redisMgr.client != nil {
		err := redisMgr.client.Close()
		redisMgr = nil
		return err
	}
	return nil
}
