// Package notifier 透過 Redis Pub/Sub 把聊天室事件送到每個 API 節點。
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"roomchat/backend/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	redisClient *redis.Client
	connectOnce sync.Once
	connectErr  error
)

// ConnectRedis 建立 Redis 連線，整個行程共用同一個 client
func ConnectRedis(url string) (*redis.Client, error) {
	connectOnce.Do(func() {
		redisClient, connectErr = connect(url)
	})
	return redisClient, connectErr
}

func connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping Redis: %w", err)
	}
	log.Println("Connected to Redis successfully!")
	return client, nil
}

// DisconnectRedis 關閉共用的 client
func DisconnectRedis() {
	if redisClient == nil {
		return
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error disconnecting from Redis: %v", err)
		return
	}
	log.Println("Disconnected from Redis.")
}

// RedisNotifier 將事件 PUBLISH 到 room-<roomId> 頻道
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, roomID primitive.ObjectID, event models.EventType, payload any) error {
	ev, err := models.NewEvent(roomID, event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := n.client.Publish(ctx, ev.Channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, ev.Channel, err)
	}
	return nil
}

// Listen 訂閱所有聊天室頻道並把收到的事件交給 deliver，直到 ctx 結束
func Listen(ctx context.Context, client *redis.Client, deliver func(models.Event)) error {
	pubsub := client.PSubscribe(ctx, models.RoomChannelPrefix+"*")
	defer pubsub.Close()

	// 等待訂閱確認，確保之後發佈的事件不會漏掉
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to room channels: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[NOTIFY_ERROR] malformed event on %s: %v", msg.Channel, err)
				continue
			}
			if ev.Channel == "" {
				ev.Channel = msg.Channel
			}
			deliver(ev)
		}
	}
}

// RoomIDFromChannel 解析 room-<roomId>
func RoomIDFromChannel(channel string) (primitive.ObjectID, bool) {
	hex, ok := strings.CutPrefix(channel, models.RoomChannelPrefix)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
