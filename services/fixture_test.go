package services

import (
	"testing"
	"time"

	"roomchat/backend/models"
	"roomchat/backend/services/mocks"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
)

const testSecret = "test-secret"

type fixture struct {
	users    *mocks.MockUserStore
	rooms    *mocks.MockRoomStore
	messages *mocks.MockMessageStore
	notifier *mocks.MockNotifier
	gate     *AccessGate
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		users:    mocks.NewMockUserStore(ctrl),
		rooms:    mocks.NewMockRoomStore(ctrl),
		messages: mocks.NewMockMessageStore(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	f.gate = NewAccessGate(f.rooms, f.messages, testSecret)
	return f
}

func (f *fixture) roomService() *RoomService {
	return NewRoomService(f.gate, f.rooms, f.users, f.notifier)
}

func (f *fixture) messageService() *MessageService {
	return NewMessageService(f.gate, f.messages, f.users, f.notifier)
}

func (f *fixture) userService() *UserService {
	return NewUserService(f.gate, f.users, testSecret, time.Hour)
}

func newRoom(creator primitive.ObjectID, members ...primitive.ObjectID) *models.Room {
	return &models.Room{
		ID:        primitive.NewObjectID(),
		Name:      "General",
		CreatedBy: creator,
		Members:   append([]primitive.ObjectID{creator}, members...),
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
