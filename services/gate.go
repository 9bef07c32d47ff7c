package services

import (
	"context"

	"roomchat/backend/apperr"
	"roomchat/backend/models"
	"roomchat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessGate 集中處理身分與權限檢查，順序固定為：身分 → 資源存在 → 權限
type AccessGate struct {
	rooms     RoomStore
	messages  MessageStore
	jwtSecret string
}

func NewAccessGate(rooms RoomStore, messages MessageStore, jwtSecret string) *AccessGate {
	return &AccessGate{rooms: rooms, messages: messages, jwtSecret: jwtSecret}
}

// Identify 從 session token 解析使用者 ID
func (g *AccessGate) Identify(token string) (primitive.ObjectID, error) {
	if token == "" {
		return primitive.NilObjectID, apperr.Unauthorized("Unauthorized")
	}
	userID, err := utils.GetUserIDFromToken(token, g.jwtSecret)
	if err != nil {
		return primitive.NilObjectID, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "Invalid or expired token", Err: err}
	}
	return userID, nil
}

// Authenticate 呼叫者必須已登入
func (g *AccessGate) Authenticate(userID primitive.ObjectID) error {
	if userID.IsZero() {
		return apperr.Unauthorized("Unauthorized")
	}
	return nil
}

// RequireRoom 已登入且聊天室存在
func (g *AccessGate) RequireRoom(ctx context.Context, userID, roomID primitive.ObjectID) (*models.Room, error) {
	if err := g.Authenticate(userID); err != nil {
		return nil, err
	}
	return g.rooms.Get(ctx, roomID)
}

// RequireMember 讀取或發送訊息前必須是成員
func (g *AccessGate) RequireMember(ctx context.Context, userID, roomID primitive.ObjectID) (*models.Room, error) {
	room, err := g.RequireRoom(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, apperr.Forbidden("Forbidden")
	}
	return room, nil
}

// RequireCreator 設定、刪除聊天室或強制加入成員只限建立者
func (g *AccessGate) RequireCreator(ctx context.Context, userID, roomID primitive.ObjectID, deniedMsg string) (*models.Room, error) {
	room, err := g.RequireRoom(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsCreator(userID) {
		if deniedMsg == "" {
			deniedMsg = "Forbidden"
		}
		return nil, apperr.Forbidden(deniedMsg)
	}
	return room, nil
}

// RequireMessage 成員才能存取聊天室內的訊息；屬於別的聊天室的訊息視為不存在
func (g *AccessGate) RequireMessage(ctx context.Context, userID, roomID, messageID primitive.ObjectID) (*models.Room, *models.Message, error) {
	room, err := g.RequireMember(ctx, userID, roomID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := g.messages.Get(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg.RoomID != roomID {
		return nil, nil, apperr.NotFound("Message not found")
	}
	return room, msg, nil
}

// RequireAuthor 只有作者能編輯或刪除自己的訊息
func (g *AccessGate) RequireAuthor(ctx context.Context, userID, roomID, messageID primitive.ObjectID) (*models.Room, *models.Message, error) {
	room, msg, err := g.RequireMessage(ctx, userID, roomID, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg.UserID != userID {
		return nil, nil, apperr.Forbidden("Forbidden")
	}
	return room, msg, nil
}
