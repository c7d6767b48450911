package store

import (
	"context"
	"errors"
	"regexp"

	"PPSocial/data/database"
	"PPSocial/data/database/mgo/mongoutil"
	"PPSocial/module/user/model"
	"PPSocial/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{coll: database.Collection(db, &model.User{})}
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := database.Collection(db, &model.User{}).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_username"),
	})
	return err
}

func persistence(err error, op string) error {
	return errs.ErrPersistence.WrapCause(err, "", "op", op)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return oid, errs.ErrUserNotFound.WrapMsg("", "id", id)
	}
	return oid, nil
}

func (r *MongoRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongoutil.IsDuplicateKey(err) {
			return errs.ErrRecordExists.WrapMsg("Username already taken.")
		}
		return persistence(err, "create user")
	}
	return nil
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M, op string) (*model.User, error) {
	var u model.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUserNotFound.Wrap()
	}
	if err != nil {
		return nil, persistence(err, op)
	}
	return &u, nil
}

func (r *MongoRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid}, "find user")
}

func (r *MongoRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"username": username}, "find user by name")
}

func (r *MongoRepo) FindBriefs(ctx context.Context, ids []string) ([]*model.Brief, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []*model.Brief{}, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(bson.M{"username": 1, "profile_picture": 1}))
	if err != nil {
		return nil, persistence(err, "find briefs")
	}
	var users []*model.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, persistence(err, "decode briefs")
	}
	return orderBriefs(ids, users), nil
}

func orderBriefs(ids []string, users []*model.User) []*model.Brief {
	byID := make(map[string]*model.User, len(users))
	for _, u := range users {
		byID[u.IDHex()] = u
	}
	out := make([]*model.Brief, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u.Brief())
		}
	}
	return out
}

// Follow 先在关注者一侧条件更新，只有真正新增时才写被关注者一侧
func (r *MongoRepo) Follow(ctx context.Context, follower, target string) (bool, error) {
	fid, err := objectID(follower)
	if err != nil {
		return false, err
	}
	tid, err := objectID(target)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": fid, "following": bson.M{"$ne": target}},
		bson.M{"$addToSet": bson.M{"following": target}})
	if err != nil {
		return false, persistence(err, "follow")
	}
	if res.ModifiedCount == 0 {
		return false, nil
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": tid}, bson.M{"$addToSet": bson.M{"followers": follower}}); err != nil {
		return false, persistence(err, "follow")
	}
	return true, nil
}

func (r *MongoRepo) Unfollow(ctx context.Context, follower, target string) (bool, error) {
	fid, err := objectID(follower)
	if err != nil {
		return false, err
	}
	tid, err := objectID(target)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": fid, "following": target},
		bson.M{"$pull": bson.M{"following": target}})
	if err != nil {
		return false, persistence(err, "unfollow")
	}
	if res.ModifiedCount == 0 {
		return false, nil
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": tid}, bson.M{"$pull": bson.M{"followers": follower}}); err != nil {
		return false, persistence(err, "unfollow")
	}
	return true, nil
}

func (r *MongoRepo) Search(ctx context.Context, q string, skip, limit int) ([]*model.User, error) {
	filter := bson.M{}
	if q != "" {
		filter["username"] = primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"password_hash": 0})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, persistence(err, "search users")
	}
	users := make([]*model.User, 0, limit)
	if err := cur.All(ctx, &users); err != nil {
		return nil, persistence(err, "decode users")
	}
	return users, nil
}

func (r *MongoRepo) Sample(ctx context.Context, exclude string, n int) ([]*model.User, error) {
	match := bson.M{}
	if oid, err := primitive.ObjectIDFromHex(exclude); err == nil {
		match["_id"] = bson.M{"$ne": oid}
	}
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.M{"size": n}}},
		{{Key: "$project", Value: bson.M{"password_hash": 0}}},
	})
	if err != nil {
		return nil, persistence(err, "sample users")
	}
	users := make([]*model.User, 0, n)
	if err := cur.All(ctx, &users); err != nil {
		return nil, persistence(err, "decode users")
	}
	return users, nil
}
