// Package services 實作聊天室成員與訊息的業務規則。
// 每個操作都先經過 AccessGate（身分 → 資源存在 → 權限），再驗證輸入、寫入資料、最後廣播事件。
package services

import (
	"context"

	"roomchat/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks roomchat/backend/services UserStore,RoomStore,MessageStore,Notifier

// UserStore 使用者目錄
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, patch models.UpdateProfileRequest) (*models.User, error)
	SetOnline(ctx context.Context, id primitive.ObjectID, online bool) error
	ListOnline(ctx context.Context) ([]models.User, error)
	Search(ctx context.Context, query string, exclude primitive.ObjectID, limit int64) ([]models.User, error)
}

// RoomStore 聊天室登記。人數上限由 AddMember 自己保證。
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Room, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error)
	ListPublic(ctx context.Context, limit int64) ([]models.Room, error)
	AddMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error)
	RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error)
	Update(ctx context.Context, roomID primitive.ObjectID, patch models.RoomPatch) (*models.Room, error)
	Delete(ctx context.Context, roomID primitive.ObjectID) error
}

// MessageStore 訊息儲存，不檢查作者或成員身分
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	ListByRoom(ctx context.Context, roomID primitive.ObjectID, page, limit int64) (*models.MessagePage, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	FindInRoom(ctx context.Context, roomID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Message, error)
	Update(ctx context.Context, id primitive.ObjectID, content string) (*models.Message, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	MarkRoomRead(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error)
	UnreadCount(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error)
}

// Notifier 把事件發佈到 room-<roomId> 頻道，不等待確認
type Notifier interface {
	Publish(ctx context.Context, roomID primitive.ObjectID, event models.EventType, payload any) error
}
