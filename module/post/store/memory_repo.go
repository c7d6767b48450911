package store

import (
	"context"
	"sort"
	"sync"

	"PPSocial/module/post/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo 进程内实现，用于测试
type MemoryRepo struct {
	mu    sync.RWMutex
	posts map[primitive.ObjectID]*model.Post
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{posts: make(map[primitive.ObjectID]*model.Post)}
}

func clonePost(p *model.Post) *model.Post {
	cp := *p
	cp.ImageURLs = append([]string{}, p.ImageURLs...)
	cp.Likes = append([]string{}, p.Likes...)
	cp.Comments = make([]*model.Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		cc := *c
		cc.ImageURLs = append([]string{}, c.ImageURLs...)
		cp.Comments = append(cp.Comments, &cc)
	}
	return &cp
}

func (r *MemoryRepo) Create(_ context.Context, p *model.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	r.mu.Lock()
	r.posts[p.ID] = clonePost(p)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepo) get(postID string) (*model.Post, error) {
	oid, err := postObjectID(postID)
	if err != nil {
		return nil, err
	}
	p, ok := r.posts[oid]
	if !ok {
		return nil, errPostNotFound()
	}
	return p, nil
}

func (r *MemoryRepo) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.get(postID)
	if err != nil {
		return false, err
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return false, nil
		}
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}

func (r *MemoryRepo) AddComment(_ context.Context, postID string, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.get(postID)
	if err != nil {
		return err
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	cc := *c
	p.Comments = append(p.Comments, &cc)
	return nil
}

func (r *MemoryRepo) FindByUsers(_ context.Context, users []string) ([]*model.Post, error) {
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		set[u] = struct{}{}
	}
	r.mu.RLock()
	out := make([]*model.Post, 0)
	for _, p := range r.posts {
		if _, ok := set[p.User]; ok {
			out = append(out, clonePost(p))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out, nil
}
