package database

import (
	"context"
	"errors"
	"fmt"

	"roomchat/backend/apperr"
	"roomchat/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// MessageStore 聊天室訊息、已讀與編輯狀態
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection(MessagesCollection)}
}

// Create 將新的聊天訊息插入到 MongoDB，作者自動視為已讀
func (s *MessageStore) Create(ctx context.Context, msg *models.Message) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	ts := now()
	msg.ID = primitive.NewObjectID()
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	msg.ReadBy = []primitive.ObjectID{msg.UserID}
	msg.IsEdited = false
	msg.EditedAt = nil
	msg.CreatedAt = ts
	msg.UpdatedAt = ts

	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListByRoom 分頁取得訊息（page 從 1 開始）。查詢時由新到舊，回傳前反轉為由舊到新。
func (s *MessageStore) ListByRoom(ctx context.Context, roomID primitive.ObjectID, page, limit int64) (*models.MessagePage, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	skip := (page - 1) * limit
	filter := bson.M{"roomId": roomID}

	var (
		messages []models.Message
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetSkip(skip).
			SetLimit(limit)
		cursor, err := s.coll.Find(gctx, filter, opts)
		if err != nil {
			return fmt.Errorf("find messages for room %s: %w", roomID.Hex(), err)
		}
		defer cursor.Close(gctx)
		if err := cursor.All(gctx, &messages); err != nil {
			return fmt.Errorf("decode messages for room %s: %w", roomID.Hex(), err)
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.coll.CountDocuments(gctx, filter)
		if err != nil {
			return fmt.Errorf("count messages for room %s: %w", roomID.Hex(), err)
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return &models.MessagePage{
		Messages: messages,
		Total:    total,
		HasMore:  skip+int64(len(messages)) < total,
	}, nil
}

func (s *MessageStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var msg models.Message
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Message not found")
		}
		return nil, fmt.Errorf("find message %s: %w", id.Hex(), err)
	}
	return &msg, nil
}

// FindInRoom 批次取得同一聊天室內的訊息，不存在或屬於其他聊天室的 ID 會被略過
func (s *MessageStore) FindInRoom(ctx context.Context, roomID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Message, error) {
	if len(ids) == 0 {
		return []models.Message{}, nil
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "roomId": roomID})
	if err != nil {
		return nil, fmt.Errorf("find messages by ids: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages by ids: %w", err)
	}
	return messages, nil
}

// Update 修改內容並標記為已編輯
func (s *MessageStore) Update(ctx context.Context, id primitive.ObjectID, content string) (*models.Message, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	ts := now()
	update := bson.M{"$set": bson.M{
		"content":   content,
		"isEdited":  true,
		"editedAt":  ts,
		"updatedAt": ts,
	}}
	var msg models.Message
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Message not found")
		}
		return nil, fmt.Errorf("update message %s: %w", id.Hex(), err)
	}
	return &msg, nil
}

func (s *MessageStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("Message not found")
	}
	return nil
}

// MarkRead readBy 只會增加（$addToSet），重複呼叫沒有影響
func (s *MessageStore) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"readBy": userID}})
	if err != nil {
		return fmt.Errorf("mark message %s read: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("Message not found")
	}
	return nil
}

// MarkRoomRead 一次把聊天室內所有未讀訊息標記為已讀，回傳更新筆數
func (s *MessageStore) MarkRoomRead(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{"roomId": roomID, "readBy": bson.M{"$ne": userID}}
	res, err := s.coll.UpdateMany(ctx, filter, bson.M{"$addToSet": bson.M{"readBy": userID}})
	if err != nil {
		return 0, fmt.Errorf("mark room %s read: %w", roomID.Hex(), err)
	}
	return res.ModifiedCount, nil
}

// UnreadCount 別人發的、使用者尚未讀取的訊息數
func (s *MessageStore) UnreadCount(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{
		"roomId": roomID,
		"readBy": bson.M{"$ne": userID},
		"userId": bson.M{"$ne": userID},
	}
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count unread in room %s: %w", roomID.Hex(), err)
	}
	return n, nil
}
