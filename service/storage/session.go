package storage

import (
	"context"
	"errors"
	"time"

	"PPSocial/global"
	"PPSocial/tools/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore web 会话：cookie 里只放随机 sid，用户 id 存在 Redis
type SessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewSessionStore(rdb redis.UniversalClient, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	sid := uuid.NewString()
	if err := s.rdb.Set(ctx, global.SessionKey(sid), userID, s.ttl).Err(); err != nil {
		return "", errs.WrapMsg(err, "session create", "user", userID)
	}
	return sid, nil
}

// Get 返回会话绑定的用户；会话不存在或过期时返回 errs.ErrUnauthorized
func (s *SessionStore) Get(ctx context.Context, sid string) (string, error) {
	if sid == "" {
		return "", errs.ErrUnauthorized.Wrap()
	}
	uid, err := s.rdb.Get(ctx, global.SessionKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrUnauthorized.WrapMsg("session expired")
	}
	if err != nil {
		return "", errs.WrapMsg(err, "session get")
	}
	return uid, nil
}

func (s *SessionStore) Destroy(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return errs.WrapMsg(s.rdb.Del(ctx, global.SessionKey(sid)).Err(), "session destroy")
}
