package database

import "go.mongodb.org/mongo-driver/mongo"

// Table 文档模型对应的集合名
type Table interface {
	GetTableName() string
}

// Collection 取模型所在的集合
func Collection(db *mongo.Database, t Table) *mongo.Collection {
	return db.Collection(t.GetTableName())
}
