package store

import (
	"context"

	"PPSocial/module/user/model"
)

// Repo 用户存储。找不到用户时返回 errs.ErrUserNotFound
type Repo interface {
	// Create 用户名重复时返回 errs.ErrRecordExists
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// FindBriefs 按 ids 顺序返回，不存在的跳过
	FindBriefs(ctx context.Context, ids []string) ([]*model.Brief, error)
	// Follow 返回 false 表示已经关注过
	Follow(ctx context.Context, follower, target string) (bool, error)
	// Unfollow 返回 false 表示本来就没关注
	Unfollow(ctx context.Context, follower, target string) (bool, error)
	// Search 用户名不区分大小写的包含匹配，按用户名排序
	Search(ctx context.Context, q string, skip, limit int) ([]*model.User, error)
	// Sample 随机取 n 个不是 exclude 的用户
	Sample(ctx context.Context, exclude string, n int) ([]*model.User, error)
}
