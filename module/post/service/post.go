package service

import (
	"context"
	"strings"
	"time"

	"PPSocial/logger"
	"PPSocial/module/post/model"
	"PPSocial/module/post/store"
	usermodel "PPSocial/module/user/model"
	"PPSocial/tools/errs"

	"go.uber.org/zap"
)

const (
	MaxImages       = 10
	unknownUsername = "Unknown"
)

// Users feed 需要的用户查询，module/user/store.Repo 满足
type Users interface {
	FindByID(ctx context.Context, id string) (*usermodel.User, error)
	FindBriefs(ctx context.Context, ids []string) ([]*usermodel.Brief, error)
}

type PostService struct {
	repo  store.Repo
	users Users
	now   func() time.Time
}

func NewPostService(repo store.Repo, users Users) *PostService {
	return &PostService{repo: repo, users: users, now: time.Now}
}

func normBody(content string, images []string) (string, []string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil, errs.ErrValidation.WrapMsg("content is required")
	}
	kept := make([]string, 0, len(images))
	for _, u := range images {
		if u = strings.TrimSpace(u); u != "" {
			kept = append(kept, u)
		}
	}
	if len(kept) > MaxImages {
		return "", nil, errs.ErrValidation.WrapMsg("too many images", "max", MaxImages)
	}
	return content, kept, nil
}

func (s *PostService) Create(ctx context.Context, userID, content string, images []string) (string, error) {
	content, images, err := normBody(content, images)
	if err != nil {
		return "", err
	}
	p := &model.Post{
		User:      userID,
		Content:   content,
		ImageURLs: images,
		Likes:     []string{},
		Comments:  []*model.Comment{},
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return "", err
	}
	logger.Debug("post created", zap.String("user", userID), zap.String("post", p.ID.Hex()))
	return p.ID.Hex(), nil
}

func (s *PostService) ToggleLike(ctx context.Context, userID, postID string) (bool, error) {
	return s.repo.ToggleLike(ctx, postID, userID)
}

func (s *PostService) Comment(ctx context.Context, userID, postID, content string, images []string) (*model.Comment, error) {
	content, images, err := normBody(content, images)
	if err != nil {
		return nil, err
	}
	c := &model.Comment{
		User:      userID,
		Content:   content,
		ImageURLs: images,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.AddComment(ctx, postID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Feed 自己和关注的人的帖子，新的在前；作者与评论者展开为用户名和头像
func (s *PostService) Feed(ctx context.Context, userID string) ([]*model.FeedItem, error) {
	me, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	authors := append(append([]string{}, me.Following...), userID)
	posts, err := s.repo.FindByUsers(ctx, authors)
	if err != nil {
		return nil, err
	}

	idSet := map[string]struct{}{}
	for _, p := range posts {
		idSet[p.User] = struct{}{}
		for _, c := range p.Comments {
			idSet[c.User] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	briefs, err := s.users.FindBriefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*usermodel.Brief, len(briefs))
	for _, b := range briefs {
		byID[b.ID] = b
	}
	author := func(id string) model.Author {
		if b, ok := byID[id]; ok {
			return model.Author{Username: b.Username, ProfilePicture: b.ProfilePicture}
		}
		return model.Author{Username: unknownUsername}
	}

	feed := make([]*model.FeedItem, 0, len(posts))
	for _, p := range posts {
		item := &model.FeedItem{
			ID:        p.ID.Hex(),
			Timestamp: isoTime(p.Timestamp),
			User:      author(p.User),
			Content:   p.Content,
			ImageURLs: nonNil(p.ImageURLs),
			Likes:     nonNil(p.Likes),
			Comments:  make([]*model.FeedComment, 0, len(p.Comments)),
		}
		for _, c := range p.Comments {
			item.Comments = append(item.Comments, &model.FeedComment{
				ID:        c.ID.Hex(),
				Timestamp: isoTime(c.Timestamp),
				User:      author(c.User),
				Content:   c.Content,
				ImageURLs: nonNil(c.ImageURLs),
			})
		}
		feed = append(feed, item)
	}
	return feed, nil
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
