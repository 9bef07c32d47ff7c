package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"roomchat/backend/apperr"
	"roomchat/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 條件更新失敗後重新判斷的次數上限
const maxJoinAttempts = 3

// RoomStore 聊天室與成員資料
type RoomStore struct {
	db              *mongo.Database
	rooms           *mongo.Collection
	messages        *mongo.Collection
	useTransactions bool
}

// NewRoomStore useTransactions 為 true 時，刪除聊天室與其訊息會包在同一個交易裡（需要 replica set）
func NewRoomStore(db *mongo.Database, useTransactions bool) *RoomStore {
	return &RoomStore{
		db:              db,
		rooms:           db.Collection(RoomsCollection),
		messages:        db.Collection(MessagesCollection),
		useTransactions: useTransactions,
	}
}

// Create 建立聊天室，成員初始化為只有建立者
func (s *RoomStore) Create(ctx context.Context, room *models.Room) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	ts := now()
	room.ID = primitive.NewObjectID()
	room.Name = strings.TrimSpace(room.Name)
	room.Description = strings.TrimSpace(room.Description)
	room.Members = []primitive.ObjectID{room.CreatedBy}
	room.MaxMembers = normalizeMaxMembers(room.MaxMembers)
	room.CreatedAt = ts
	room.UpdatedAt = ts

	if _, err := s.rooms.InsertOne(ctx, room); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// normalizeMaxMembers 0 或負數視為不限人數
func normalizeMaxMembers(capacity *int) *int {
	if capacity == nil || *capacity <= 0 {
		return nil
	}
	v := *capacity
	return &v
}

func (s *RoomStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var room models.Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Room not found")
		}
		return nil, fmt.Errorf("find room %s: %w", id.Hex(), err)
	}
	return &room, nil
}

// ListForUser 使用者所在的聊天室，最近更新的在前
func (s *RoomStore) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	return s.find(ctx, bson.M{"members": userID}, opts)
}

// ListPublic 公開聊天室，最新建立的在前
func (s *RoomStore) ListPublic(ctx context.Context, limit int64) ([]models.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	return s.find(ctx, bson.M{"isPrivate": false}, opts)
}

func (s *RoomStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Room, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.rooms.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	defer cursor.Close(ctx)

	rooms := []models.Room{}
	if err = cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

// AddMember 加入成員。已經是成員時直接回傳目前狀態。
// 人數檢查與加入在同一個條件更新裡完成，同時加入也不會超過 maxMembers。
func (s *RoomStore) AddMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		room, err := s.tryAddMember(ctx, roomID, userID)
		if err != nil {
			return nil, err
		}
		if room != nil {
			return room, nil
		}

		// 條件不成立：房間不存在、已是成員、或已滿
		current, err := s.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if current.HasMember(userID) {
			return current, nil
		}
		if current.IsFull() {
			return nil, apperr.Capacity("Room is full")
		}
		// 期間有人離開，重試
	}
	return nil, apperr.Capacity("Room is full")
}

func (s *RoomStore) tryAddMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{
		"_id":     roomID,
		"members": bson.M{"$ne": userID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": "$members"},
			bson.M{"$ifNull": bson.A{"$maxMembers", math.MaxInt32}},
		}},
	}
	update := bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updatedAt": now()},
	}

	var room models.Room
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.rooms.FindOneAndUpdate(ctx, filter, update, opts).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("add member to room %s: %w", roomID.Hex(), err)
	}
	return &room, nil
}

// RemoveMember 移除成員，不是成員也不會出錯。建立者離開不會轉移擁有權。
func (s *RoomStore) RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	update := bson.M{
		"$pull": bson.M{"members": userID},
		"$set":  bson.M{"updatedAt": now()},
	}
	return s.findOneAndUpdate(ctx, roomID, update)
}

// Update 部分更新，nil 欄位不變。MaxMembers <= 0 會移除人數上限。
func (s *RoomStore) Update(ctx context.Context, roomID primitive.ObjectID, patch models.RoomPatch) (*models.Room, error) {
	if patch.IsEmpty() {
		return s.Get(ctx, roomID)
	}

	set := bson.M{"updatedAt": now()}
	update := bson.M{"$set": set}
	if patch.Name != nil {
		set["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		set["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.IsPrivate != nil {
		set["isPrivate"] = *patch.IsPrivate
	}
	if patch.MaxMembers != nil {
		if max := normalizeMaxMembers(patch.MaxMembers); max != nil {
			set["maxMembers"] = *max
		} else {
			update["$unset"] = bson.M{"maxMembers": ""}
		}
	}
	return s.findOneAndUpdate(ctx, roomID, update)
}

func (s *RoomStore) findOneAndUpdate(ctx context.Context, roomID primitive.ObjectID, update bson.M) (*models.Room, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var room models.Room
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.rooms.FindOneAndUpdate(ctx, bson.M{"_id": roomID}, update, opts).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Room not found")
		}
		return nil, fmt.Errorf("update room %s: %w", roomID.Hex(), err)
	}
	return &room, nil
}

// Delete 刪除聊天室並一併刪除其所有訊息
func (s *RoomStore) Delete(ctx context.Context, roomID primitive.ObjectID) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if !s.useTransactions {
		return s.deleteCascade(ctx, roomID)
	}

	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, s.deleteCascade(sc, roomID)
	})
	return err
}

// deleteCascade 先刪聊天室再刪訊息；聊天室不存在後，殘留訊息也無法再被存取
func (s *RoomStore) deleteCascade(ctx context.Context, roomID primitive.ObjectID) error {
	res, err := s.rooms.DeleteOne(ctx, bson.M{"_id": roomID})
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("Room not found")
	}

	msgRes, err := s.messages.DeleteMany(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return fmt.Errorf("delete messages of room %s: %w", roomID.Hex(), err)
	}
	log.Printf("Deleted room %s and %d messages", roomID.Hex(), msgRes.DeletedCount)
	return nil
}
