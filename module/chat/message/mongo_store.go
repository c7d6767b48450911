package message

import (
	"context"
	"errors"

	"PPSocial/data/database"
	"PPSocial/data/database/mgo/mongoutil"
	"PPSocial/global"
	"PPSocial/logger"
	"PPSocial/module/chat/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: database.Collection(db, &model.Conversation{})}
}

// EnsureIndexes pair_key 唯一索引是“一对用户一个会话”的最终保证
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := database.Collection(db, &model.Conversation{}).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_pair_key")},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "update_time", Value: -1}}, Options: options.Index().SetName("idx_participant_update")},
	})
	return err
}

func (s *MongoStore) FindByParticipants(ctx context.Context, a, b string) (*model.Conversation, error) {
	ps, err := model.Participants(a, b)
	if err != nil {
		return nil, err
	}
	var conv model.Conversation
	err = s.coll.FindOne(ctx, bson.M{"pair_key": global.PairKey(ps[0], ps[1])}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errPersistence(err, "op", "find conversation")
	}
	return &conv, nil
}

// UpsertAppend 用聚合管道更新在一次 findAndModify 里完成：
// 不存在则创建（成员只在创建时写入），next_seq+1，并把带新 seq 的消息追加到末尾。
// 时间戳取服务端 $$NOW，所以时间顺序与 seq 顺序一致。
func (s *MongoStore) UpsertAppend(ctx context.Context, a, b string, msg *model.Message) (*AppendResult, error) {
	ps, err := model.Participants(a, b)
	if err != nil {
		return nil, err
	}
	if err := checkSender(ps, msg); err != nil {
		return nil, err
	}
	key := global.PairKey(ps[0], ps[1])

	seq := bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$next_seq", 0}}, 1}}
	doc := bson.M{
		"seq":        seq,
		"msg_id":     bson.M{"$literal": msg.MsgID},
		"sender":     bson.M{"$literal": msg.Sender},
		"content":    bson.M{"$literal": msg.Content},
		"image_urls": bson.M{"$literal": cloneStrings(msg.ImageURLs)},
		"timestamp":  "$$NOW",
		"read_by":    bson.M{"$literal": bson.A{}},
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"pair_key":     bson.M{"$literal": key},
		"participants": bson.M{"$ifNull": bson.A{"$participants", bson.M{"$literal": ps}}},
		"create_time":  bson.M{"$ifNull": bson.A{"$create_time", "$$NOW"}},
		"update_time":  "$$NOW",
		"next_seq":     seq,
		"messages":     bson.M{"$concatArrays": bson.A{bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}, bson.A{doc}}},
	}}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.M{"messages": bson.M{"$slice": -1}})

	var conv model.Conversation
	for attempt := 0; ; attempt++ {
		err = s.coll.FindOneAndUpdate(ctx, bson.M{"pair_key": key}, pipeline, opts).Decode(&conv)
		// 两个首发并发 upsert 时，输掉的一方撞唯一索引；重试一次即命中已存在的文档
		if mongoutil.IsDuplicateKey(err) && attempt == 0 {
			logger.Debug("conversation upsert raced, retrying", zap.String("pair", key))
			continue
		}
		break
	}
	if err != nil {
		return nil, errPersistence(err, "op", "append message", "pair", key)
	}
	if len(conv.Messages) == 0 {
		return nil, errPersistence(errors.New("appended message missing from result"), "pair", key)
	}
	return &AppendResult{ConversationID: conv.ID.Hex(), Message: conv.Messages[0]}, nil
}

func (s *MongoStore) FindAllByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error) {
	opts := options.Find().
		SetProjection(bson.M{"messages": bson.M{"$slice": -1}}).
		SetSort(bson.D{{Key: "update_time", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, errPersistence(err, "op", "list conversations")
	}
	out := make([]*model.Conversation, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errPersistence(err, "op", "decode conversations")
	}
	return out, nil
}

func (s *MongoStore) Ensure(ctx context.Context, a, b string) (string, error) {
	ps, err := model.Participants(a, b)
	if err != nil {
		return "", err
	}
	key := global.PairKey(ps[0], ps[1])
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"pair_key":     bson.M{"$literal": key},
		"participants": bson.M{"$ifNull": bson.A{"$participants", bson.M{"$literal": ps}}},
		"messages":     bson.M{"$ifNull": bson.A{"$messages", bson.A{}}},
		"next_seq":     bson.M{"$ifNull": bson.A{"$next_seq", 0}},
		"create_time":  bson.M{"$ifNull": bson.A{"$create_time", "$$NOW"}},
		"update_time":  bson.M{"$ifNull": bson.A{"$update_time", "$$NOW"}},
	}}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.M{"_id": 1})

	var conv model.Conversation
	for attempt := 0; ; attempt++ {
		err = s.coll.FindOneAndUpdate(ctx, bson.M{"pair_key": key}, update, opts).Decode(&conv)
		if mongoutil.IsDuplicateKey(err) && attempt == 0 {
			continue
		}
		break
	}
	if err != nil {
		return "", errPersistence(err, "op", "ensure conversation", "pair", key)
	}
	return conv.ID.Hex(), nil
}

func (s *MongoStore) MarkRead(ctx context.Context, reader, other string) (bool, error) {
	ps, err := model.Participants(reader, other)
	if err != nil {
		return false, err
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"m.sender": other}},
	})
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"pair_key": global.PairKey(ps[0], ps[1])},
		bson.M{"$addToSet": bson.M{"messages.$[m].read_by": reader}},
		opts,
	)
	if err != nil {
		return false, errPersistence(err, "op", "mark read")
	}
	return res.ModifiedCount > 0, nil
}
