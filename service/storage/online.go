package storage

import (
	"context"
	"strconv"
	"time"

	"PPSocial/global"
	"PPSocial/tools/errs"

	"github.com/redis/go-redis/v9"
)

// 连接数 +1，并续期整个 hash
// KEYS[1] = presence key
// ARGV[1] = node field
// ARGV[2] = ttlSeconds
// 返回：该节点上的连接数
const luaPresenceInc = `
local n = redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
return n
`

// 连接数 -1；归零删除字段，hash 为空删除 key
// KEYS[1] = presence key
// ARGV[1] = node field
// 返回：该用户剩余的总连接数
const luaPresenceDec = `
local n = redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call("HDEL", KEYS[1], ARGV[1])
end
local total = 0
local vals = redis.call("HVALS", KEYS[1])
for _, v in ipairs(vals) do
  total = total + tonumber(v)
end
if total <= 0 then
  redis.call("DEL", KEYS[1])
end
return total
`

const DefaultPresenceTTL = 2 * time.Minute

// OnlineStore 记录每个用户在各节点上的存活连接数。仅用于展示在线状态，
// 投递从不依赖它。
type OnlineStore struct {
	rdb    redis.UniversalClient
	nodeID string
	ttl    time.Duration

	inc *redis.Script
	dec *redis.Script
}

func NewOnlineStore(rdb redis.UniversalClient, nodeID int64, ttl time.Duration) *OnlineStore {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &OnlineStore{
		rdb:    rdb,
		nodeID: strconv.FormatInt(nodeID, 10),
		ttl:    ttl,
		inc:    redis.NewScript(luaPresenceInc),
		dec:    redis.NewScript(luaPresenceDec),
	}
}

// Online 在本节点为 userID 记一个连接
func (m *OnlineStore) Online(ctx context.Context, userID string) error {
	err := m.inc.Run(ctx, m.rdb, []string{global.PresenceKey(userID)}, m.nodeID, int(m.ttl.Seconds())).Err()
	return errs.WrapMsg(err, "presence online", "user", userID)
}

// Offline 撤销一个连接
func (m *OnlineStore) Offline(ctx context.Context, userID string) error {
	err := m.dec.Run(ctx, m.rdb, []string{global.PresenceKey(userID)}, m.nodeID).Err()
	return errs.WrapMsg(err, "presence offline", "user", userID)
}

// Refresh 续期；由连接的心跳调用，节点崩溃后记录随 TTL 过期
func (m *OnlineStore) Refresh(ctx context.Context, userID string) error {
	err := m.rdb.Expire(ctx, global.PresenceKey(userID), m.ttl).Err()
	return errs.WrapMsg(err, "presence refresh", "user", userID)
}

// IsOnline 任一节点上有连接即在线，返回总连接数
func (m *OnlineStore) IsOnline(ctx context.Context, userID string) (bool, int, error) {
	vals, err := m.rdb.HVals(ctx, global.PresenceKey(userID)).Result()
	if err != nil {
		return false, 0, errs.WrapMsg(err, "presence lookup", "user", userID)
	}
	total := 0
	for _, v := range vals {
		n, _ := strconv.Atoi(v)
		total += n
	}
	return total > 0, total, nil
}
