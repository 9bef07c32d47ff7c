package services

import (
	"context"
	"strings"

	"roomchat/backend/apperr"
	"roomchat/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const publicRoomsLimit = 50

var roomMessages = map[string]string{
	"Name.required":   "Room name is required",
	"Name.max":        "Room name cannot exceed 100 characters",
	"Description.max": "Description cannot exceed 500 characters",
	"MaxMembers.min":  "maxMembers cannot be negative",
	"UserID.required": "User ID is required",
	"UserID.mongodb":  "Invalid user ID",
}

type createRoomInput struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	MaxMembers  *int   `validate:"omitnil,min=0"`
}

type roomPatchInput struct {
	Name        *string `validate:"omitnil,required,max=100"`
	Description *string `validate:"omitnil,max=500"`
	MaxMembers  *int    `validate:"omitnil,min=0"`
}

type addMemberInput struct {
	UserID string `validate:"required,mongodb"`
}

// RoomService 聊天室的建立、設定與成員變更
type RoomService struct {
	gate     *AccessGate
	rooms    RoomStore
	users    UserStore
	notifier Notifier
}

func NewRoomService(gate *AccessGate, rooms RoomStore, users UserStore, notifier Notifier) *RoomService {
	return &RoomService{gate: gate, rooms: rooms, users: users, notifier: notifier}
}

// Create 建立聊天室，建立者自動成為第一位成員
func (s *RoomService) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateRoomRequest) (*models.Room, error) {
	if err := s.gate.Authenticate(userID); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateInput(createRoomInput{Name: req.Name, Description: req.Description, MaxMembers: req.MaxMembers}, roomMessages); err != nil {
		return nil, err
	}

	room := &models.Room{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
		IsPrivate:   req.IsPrivate,
		MaxMembers:  req.MaxMembers,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, userID, roomID primitive.ObjectID) (*models.Room, error) {
	return s.gate.RequireRoom(ctx, userID, roomID)
}

// ListMine 使用者所在的聊天室，最近更新的在前
func (s *RoomService) ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	if err := s.gate.Authenticate(userID); err != nil {
		return nil, err
	}
	return s.rooms.ListForUser(ctx, userID)
}

// ListPublic 可以自行加入的公開聊天室
func (s *RoomService) ListPublic(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	if err := s.gate.Authenticate(userID); err != nil {
		return nil, err
	}
	return s.rooms.ListPublic(ctx, publicRoomsLimit)
}

// Update 只有建立者可以修改，未提供的欄位不變
func (s *RoomService) Update(ctx context.Context, userID, roomID primitive.ObjectID, patch models.RoomPatch) (*models.Room, error) {
	if _, err := s.gate.RequireCreator(ctx, userID, roomID, ""); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}
	input := roomPatchInput{Name: patch.Name, Description: patch.Description, MaxMembers: patch.MaxMembers}
	if err := validateInput(input, roomMessages); err != nil {
		return nil, err
	}

	room, err := s.rooms.Update(ctx, roomID, patch)
	if err != nil {
		return nil, err
	}
	notify(ctx, s.notifier, roomID, models.EventRoomUpdated, room)
	return room, nil
}

// Delete 只有建立者可以刪除，訊息一併刪除
func (s *RoomService) Delete(ctx context.Context, userID, roomID primitive.ObjectID) error {
	if _, err := s.gate.RequireCreator(ctx, userID, roomID, ""); err != nil {
		return err
	}
	if err := s.rooms.Delete(ctx, roomID); err != nil {
		return err
	}
	notify(ctx, s.notifier, roomID, models.EventRoomDeleted, models.RoomDeletedPayload{RoomID: roomID})
	return nil
}

// Join 自行加入，已是成員時直接回傳目前狀態
func (s *RoomService) Join(ctx context.Context, userID, roomID primitive.ObjectID) (*models.Room, error) {
	room, err := s.gate.RequireRoom(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	return s.addMember(ctx, room, userID)
}

// Leave 離開聊天室，不是成員也不會出錯。建立者也可以離開，擁有權不轉移。
func (s *RoomService) Leave(ctx context.Context, userID, roomID primitive.ObjectID) (*models.Room, error) {
	room, err := s.gate.RequireRoom(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	wasMember := room.HasMember(userID)

	updated, err := s.rooms.RemoveMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if wasMember {
		notify(ctx, s.notifier, roomID, models.EventMemberLeft, models.MembershipPayload{
			RoomID:      roomID,
			UserID:      userID,
			MemberCount: len(updated.Members),
		})
	}
	return updated, nil
}

// AddMember 建立者把其他使用者加入聊天室
func (s *RoomService) AddMember(ctx context.Context, userID, roomID primitive.ObjectID, req models.AddMemberRequest) (*models.Room, error) {
	room, err := s.gate.RequireCreator(ctx, userID, roomID, "Only room creator can add members")
	if err != nil {
		return nil, err
	}
	if err := validateInput(addMemberInput{UserID: strings.TrimSpace(req.UserID)}, roomMessages); err != nil {
		return nil, err
	}
	memberID, _ := primitive.ObjectIDFromHex(strings.TrimSpace(req.UserID))
	if _, err := s.users.FindByID(ctx, memberID); err != nil {
		return nil, err
	}
	return s.addMember(ctx, room, memberID)
}

func (s *RoomService) addMember(ctx context.Context, room *models.Room, memberID primitive.ObjectID) (*models.Room, error) {
	wasMember := room.HasMember(memberID)

	updated, err := s.rooms.AddMember(ctx, room.ID, memberID)
	if err != nil {
		return nil, err
	}
	if !wasMember {
		notify(ctx, s.notifier, room.ID, models.EventMemberJoined, models.MembershipPayload{
			RoomID:      room.ID,
			UserID:      memberID,
			MemberCount: len(updated.Members),
		})
	}
	return updated, nil
}

// IsCapacityError 方便呼叫端判斷聊天室已滿
func IsCapacityError(err error) bool {
	return apperr.KindOf(err) == apperr.KindCapacity
}
