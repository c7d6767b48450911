package model

import (
	"time"

	chatmodel "PPSocial/module/chat/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const UserTableName = "users"

// Role
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 账号主档。followers/following 存对方用户ID（hex），由关注操作成对维护
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username       string             `bson:"username" json:"username"` // 唯一
	PasswordHash   string             `bson:"password_hash" json:"-"`
	Role           string             `bson:"role" json:"role"`
	ProfilePicture string             `bson:"profile_picture" json:"profile_picture"`
	Followers      []string           `bson:"followers" json:"followers"`
	Following      []string           `bson:"following" json:"following"`
	CreateTime     time.Time          `bson:"create_time" json:"createTime"`
}

func (u *User) GetTableName() string { return UserTableName }

func (u *User) IDHex() string { return u.ID.Hex() }

func (u *User) IsFollowing(id string) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

// Public 消息补全用的公开资料：显示名即用户名，头像即 profile_picture
func (u *User) Public() *chatmodel.PublicProfile {
	return &chatmodel.PublicProfile{ID: u.IDHex(), DisplayName: u.Username, AvatarRef: u.ProfilePicture}
}

func (u *User) Brief() *Brief {
	return &Brief{ID: u.IDHex(), Username: u.Username, ProfilePicture: u.ProfilePicture}
}

// Brief 列表里展示的用户
type Brief struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// Me /me 的返回
type Me struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Card 搜索结果：关注关系展开成 Brief
type Card struct {
	ID             string   `json:"_id"`
	Username       string   `json:"username"`
	ProfilePicture string   `json:"profile_picture"`
	Followers      []*Brief `json:"followers"`
	Following      []*Brief `json:"following"`
}
