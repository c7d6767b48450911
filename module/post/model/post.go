package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const PostTableName = "posts"

// Post 动态；user/likes 存用户ID（hex）
type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User      string             `bson:"user" json:"user"`
	Content   string             `bson:"content" json:"content"`
	ImageURLs []string           `bson:"image_urls" json:"imageUrls"`
	Likes     []string           `bson:"likes" json:"likes"`
	Comments  []*Comment         `bson:"comments" json:"comments"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

func (p *Post) GetTableName() string { return PostTableName }

type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	User      string             `bson:"user" json:"user"`
	Content   string             `bson:"content" json:"content"`
	ImageURLs []string           `bson:"image_urls" json:"imageUrls"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Author feed 里展示的作者
type Author struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

type FeedComment struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	User      Author   `json:"user"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"imageUrls"`
}

type FeedItem struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	User      Author         `json:"user"`
	Content   string         `json:"content"`
	ImageURLs []string       `json:"imageUrls"`
	Likes     []string       `json:"likes"`
	Comments  []*FeedComment `json:"comments"`
}
