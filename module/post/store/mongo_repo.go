package store

import (
	"context"

	"PPSocial/data/database"
	"PPSocial/module/post/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{coll: database.Collection(db, &model.Post{})}
}

// EnsureIndexes feed 按 (user, timestamp desc) 查询
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := database.Collection(db, &model.Post{}).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("idx_user_ts"),
	})
	return err
}

func (r *MongoRepo) Create(ctx context.Context, p *model.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return persistence(err, "create post")
	}
	return nil
}

// ToggleLike 两次条件更新：先尝试取消，没命中再尝试点赞
func (r *MongoRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	oid, err := postObjectID(postID)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}})
	if err != nil {
		return false, persistence(err, "unlike post")
	}
	if res.MatchedCount == 1 {
		return false, nil
	}
	res, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$addToSet": bson.M{"likes": userID}})
	if err != nil {
		return false, persistence(err, "like post")
	}
	if res.MatchedCount == 0 {
		return false, errPostNotFound()
	}
	return true, nil
}

func (r *MongoRepo) AddComment(ctx context.Context, postID string, c *model.Comment) error {
	oid, err := postObjectID(postID)
	if err != nil {
		return err
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$push": bson.M{"comments": c}})
	if err != nil {
		return persistence(err, "add comment")
	}
	if res.MatchedCount == 0 {
		return errPostNotFound()
	}
	return nil
}

func (r *MongoRepo) FindByUsers(ctx context.Context, users []string) ([]*model.Post, error) {
	out := make([]*model.Post, 0)
	if len(users) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"user": bson.M{"$in": users}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, persistence(err, "find posts")
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, persistence(err, "decode posts")
	}
	return out, nil
}
