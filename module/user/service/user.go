package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"PPSocial/logger"
	chatmodel "PPSocial/module/chat/model"
	"PPSocial/module/user/model"
	"PPSocial/module/user/store"
	"PPSocial/tools/errs"
	"PPSocial/tools/security"

	"go.uber.org/zap"
)

const (
	DefaultSearchLimit = 10
	DefaultSelfLimit   = 5
	RecommendationSize = 5
	maxPageLimit       = 100
	maxUsernameRunes   = 64
)

// Sessions web 会话（cookie）存储
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	Destroy(ctx context.Context, sid string) error
}

// CredentialIssuer 给实时连接签发凭证
type CredentialIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// ConversationEnsurer 关注时确保双方会话存在
type ConversationEnsurer interface {
	Ensure(ctx context.Context, a, b string) (string, error)
}

type LoginResult struct {
	UserID    string
	SessionID string
	Token     string
	ExpiresAt time.Time
}

type FollowResult struct {
	Username       string
	ConversationID string
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type SelfPagination struct {
	FollowersPage int `json:"followersPage"`
	FollowingPage int `json:"followingPage"`
	Limit         int `json:"limit"`
}

type UserService struct {
	repo     store.Repo
	sessions Sessions
	issuer   CredentialIssuer
	convs    ConversationEnsurer
}

func NewUserService(repo store.Repo, sessions Sessions, issuer CredentialIssuer, convs ConversationEnsurer) *UserService {
	return &UserService{repo: repo, sessions: sessions, issuer: issuer, convs: convs}
}

func (s *UserService) Register(ctx context.Context, username, password, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errs.ErrValidation.WrapMsg("Username and password are required.")
	}
	if len([]rune(username)) > maxUsernameRunes {
		return nil, errs.ErrValidation.WrapMsg("Username is too long.")
	}
	if role == "" {
		role = model.RoleUser
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Followers:    []string{},
		Following:    []string{},
		CreateTime:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	logger.Info("user registered", zap.String("user", u.IDHex()), zap.String("username", username))
	return u, nil
}

// Login 校验密码后同时建立 web 会话并签发实时连接凭证，两者来自同一个用户ID
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	ok, err := security.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrUnauthorized.WrapMsg("Invalid credentials.")
	}
	sid, err := s.sessions.Create(ctx, u.IDHex())
	if err != nil {
		return nil, err
	}
	token, exp, err := s.issuer.Issue(u.IDHex())
	if err != nil {
		_ = s.sessions.Destroy(ctx, sid)
		return nil, err
	}
	return &LoginResult{UserID: u.IDHex(), SessionID: sid, Token: token, ExpiresAt: exp}, nil
}

func (s *UserService) Logout(ctx context.Context, sid string) error {
	return s.sessions.Destroy(ctx, sid)
}

func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *UserService) Me(ctx context.Context, userID string) (*model.Me, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Me{ID: u.IDHex(), Username: u.Username, Role: u.Role}, nil
}

// Follow 建立关注关系，并确保两人的会话存在
func (s *UserService) Follow(ctx context.Context, me, target string) (*FollowResult, error) {
	if me == target {
		return nil, errs.ErrValidation.WrapMsg("You cannot follow yourself.")
	}
	t, err := s.targetUser(ctx, target, "User to follow not found.")
	if err != nil {
		return nil, err
	}
	added, err := s.repo.Follow(ctx, me, target)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, errs.ErrConflict.WrapMsg("You are already following this user.")
	}
	convID, err := s.convs.Ensure(ctx, me, target)
	if err != nil {
		return nil, err
	}
	return &FollowResult{Username: t.Username, ConversationID: convID}, nil
}

func (s *UserService) Unfollow(ctx context.Context, me, target string) (string, error) {
	if me == target {
		return "", errs.ErrValidation.WrapMsg("You cannot unfollow yourself.")
	}
	t, err := s.targetUser(ctx, target, "User to unfollow not found.")
	if err != nil {
		return "", err
	}
	removed, err := s.repo.Unfollow(ctx, me, target)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", errs.ErrConflict.WrapMsg("You are not following this user.")
	}
	return t.Username, nil
}

func (s *UserService) targetUser(ctx context.Context, id, notFound string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errs.ErrValidation.WrapMsg("userId is required")
	}
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, errs.ErrUserNotFound) {
		return nil, errs.ErrUserNotFound.WrapMsg(notFound)
	}
	return u, err
}

// Search 按用户名搜索，关注关系展开成 Brief
func (s *UserService) Search(ctx context.Context, q string, page, limit int) ([]*model.Card, Pagination, error) {
	page, limit = normPage(page, limit, DefaultSearchLimit)
	if page-1 > math.MaxInt/limit {
		return []*model.Card{}, Pagination{Page: page, Limit: limit}, nil
	}
	users, err := s.repo.Search(ctx, strings.TrimSpace(q), (page-1)*limit, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	cards := make([]*model.Card, 0, len(users))
	for _, u := range users {
		followers, err := s.repo.FindBriefs(ctx, u.Followers)
		if err != nil {
			return nil, Pagination{}, err
		}
		following, err := s.repo.FindBriefs(ctx, u.Following)
		if err != nil {
			return nil, Pagination{}, err
		}
		cards = append(cards, &model.Card{
			ID:             u.IDHex(),
			Username:       u.Username,
			ProfilePicture: u.ProfilePicture,
			Followers:      followers,
			Following:      following,
		})
	}
	return cards, Pagination{Page: page, Limit: limit}, nil
}

// Self 当前用户资料，followers/following 各自分页
func (s *UserService) Self(ctx context.Context, me string, followersPage, followingPage, limit int) (*model.Card, SelfPagination, error) {
	followersPage, limit = normPage(followersPage, limit, DefaultSelfLimit)
	followingPage, _ = normPage(followingPage, limit, DefaultSelfLimit)
	u, err := s.repo.FindByID(ctx, me)
	if err != nil {
		return nil, SelfPagination{}, err
	}
	followers, err := s.repo.FindBriefs(ctx, window(u.Followers, followersPage, limit))
	if err != nil {
		return nil, SelfPagination{}, err
	}
	following, err := s.repo.FindBriefs(ctx, window(u.Following, followingPage, limit))
	if err != nil {
		return nil, SelfPagination{}, err
	}
	card := &model.Card{
		ID:             u.IDHex(),
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Followers:      followers,
		Following:      following,
	}
	return card, SelfPagination{FollowersPage: followersPage, FollowingPage: followingPage, Limit: limit}, nil
}

func (s *UserService) Recommendations(ctx context.Context, me string) ([]*model.User, error) {
	return s.repo.Sample(ctx, me, RecommendationSize)
}

// FindByID 提供给消息补全的用户目录
func (s *UserService) FindByID(ctx context.Context, id string) (*chatmodel.PublicProfile, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func normPage(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func window(ids []string, page, limit int) []string {
	if page < 1 || limit <= 0 || page-1 >= (len(ids)+limit-1)/limit {
		return []string{}
	}
	start := (page - 1) * limit
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}
