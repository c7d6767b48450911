package store

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"PPSocial/module/user/model"
	"PPSocial/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo 进程内实现，用于测试
type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	cp.Followers = append([]string{}, u.Followers...)
	cp.Following = append([]string{}, u.Following...)
	return &cp
}

func (r *MemoryRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.users {
		if x.Username == u.Username {
			return errs.ErrRecordExists.WrapMsg("Username already taken.")
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.users[u.IDHex()] = cloneUser(u)
	return nil
}

func (r *MemoryRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound.Wrap()
	}
	return cloneUser(u), nil
}

func (r *MemoryRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, errs.ErrUserNotFound.Wrap()
}

func (r *MemoryRepo) FindBriefs(_ context.Context, ids []string) ([]*model.Brief, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Brief, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u.Brief())
		}
	}
	return out, nil
}

func (r *MemoryRepo) Follow(_ context.Context, follower, target string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.users[follower]
	t, ok2 := r.users[target]
	if !ok || !ok2 {
		return false, errs.ErrUserNotFound.Wrap()
	}
	if f.IsFollowing(target) {
		return false, nil
	}
	f.Following = append(f.Following, target)
	t.Followers = append(t.Followers, follower)
	return true, nil
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, x := range list {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func (r *MemoryRepo) Unfollow(_ context.Context, follower, target string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.users[follower]
	t, ok2 := r.users[target]
	if !ok || !ok2 {
		return false, errs.ErrUserNotFound.Wrap()
	}
	if !f.IsFollowing(target) {
		return false, nil
	}
	f.Following = remove(f.Following, target)
	t.Followers = remove(t.Followers, follower)
	return true, nil
}

func (r *MemoryRepo) Search(_ context.Context, q string, skip, limit int) ([]*model.User, error) {
	r.mu.RLock()
	q = strings.ToLower(q)
	var hits []*model.User
	for _, u := range r.users {
		if strings.Contains(strings.ToLower(u.Username), q) {
			hits = append(hits, cloneUser(u))
		}
	}
	r.mu.RUnlock()
	sort.Slice(hits, func(i, j int) bool { return hits[i].Username < hits[j].Username })
	if skip < 0 || skip >= len(hits) {
		return []*model.User{}, nil
	}
	hits = hits[skip:]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (r *MemoryRepo) Sample(_ context.Context, exclude string, n int) ([]*model.User, error) {
	r.mu.RLock()
	pool := make([]*model.User, 0, len(r.users))
	for id, u := range r.users {
		if id != exclude {
			pool = append(pool, cloneUser(u))
		}
	}
	r.mu.RUnlock()
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool, nil
}
