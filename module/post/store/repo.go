package store

import (
	"context"

	"PPSocial/module/post/model"
)

// Repo 帖子存储。postID 不是合法 ObjectID 时返回 errs.ErrValidation，不存在时返回 errs.ErrNotFound
type Repo interface {
	Create(ctx context.Context, p *model.Post) error
	// ToggleLike 已点赞则取消，否则点赞；返回操作后是否处于点赞状态
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, postID string, c *model.Comment) error
	// FindByUsers 作者在 users 中的帖子，新的在前
	FindByUsers(ctx context.Context, users []string) ([]*model.Post, error)
}
