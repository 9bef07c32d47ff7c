package database

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection    = "users"
	RoomsCollection    = "rooms"
	MessagesCollection = "messages"

	// 每次資料庫操作的逾時
	opTimeout = 5 * time.Second
)

var (
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
	connectOnce sync.Once
	connectErr  error
)

// ConnectMongoDB 建立並初始化 MongoDB 連線。整個行程只會連線一次，之後的呼叫回傳同一個 handle。
func ConnectMongoDB(uri, name string) (*mongo.Database, error) {
	connectOnce.Do(func() {
		mongoDB, connectErr = connect(uri, name)
	})
	return mongoDB, connectErr
}

func connect(uri, name string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	log.Println("Connected to MongoDB successfully!")

	db := client.Database(name)
	if err := EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}
	mongoClient = client
	return db, nil
}

// EnsureIndexes 建立查詢需要的索引，重複執行不會出錯
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "isOnline", Value: 1}}},
		},
		RoomsCollection: {
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "members", Value: 1}, {Key: "updatedAt", Value: -1}}},
			{Keys: bson.D{{Key: "isPrivate", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		MessagesCollection: {
			{Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "userId", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", coll, err)
		}
	}
	log.Println("MongoDB indexes ensured.")
	return nil
}

// DisconnectMongoDB 關閉 MongoDB 連線
func DisconnectMongoDB() {
	if mongoClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mongoClient.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	} else {
		log.Println("Disconnected from MongoDB.")
	}
}

// opContext 操作開始後不受請求取消影響，只受逾時限制
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
}

// now 以毫秒為精度，與 MongoDB 儲存的時間一致
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
