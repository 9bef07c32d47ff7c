package services

import (
	"context"
	"testing"
	"time"

	"roomchat/backend/apperr"
	"roomchat/backend/models"
	"roomchat/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAccessGate_Identify(t *testing.T) {
	f := newFixture(t)
	userID := primitive.NewObjectID()

	token, err := utils.GenerateJWT(userID, "alice", testSecret, time.Hour)
	require.NoError(t, err)

	got, err := f.gate.Identify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = f.gate.Identify("")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	other, err := utils.GenerateJWT(userID, "alice", "other-secret", time.Hour)
	require.NoError(t, err)
	_, err = f.gate.Identify(other)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.Equal(t, "Invalid or expired token", apperr.MessageOf(err))
}

func TestAccessGate_CheckOrder(t *testing.T) {
	ctx := context.Background()
	creator := primitive.NewObjectID()
	member := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	t.Run("anonymous caller never reaches the store", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.gate.RequireMember(ctx, primitive.NilObjectID, primitive.NewObjectID())
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("missing room is not found before membership", func(t *testing.T) {
		f := newFixture(t)
		roomID := primitive.NewObjectID()
		f.rooms.EXPECT().Get(ctx, roomID).Return(nil, apperr.NotFound("Room not found"))

		_, err := f.gate.RequireMember(ctx, stranger, roomID)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("non member is forbidden", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(creator, member)
		f.rooms.EXPECT().Get(ctx, room.ID).Return(room, nil)

		_, err := f.gate.RequireMember(ctx, stranger, room.ID)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("member who is not creator", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(creator, member)
		f.rooms.EXPECT().Get(ctx, room.ID).Return(room, nil)

		_, err := f.gate.RequireCreator(ctx, member, room.ID, "Only room creator can add members")
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.Equal(t, "Only room creator can add members", apperr.MessageOf(err))
	})
}

func TestAccessGate_RequireMessage(t *testing.T) {
	ctx := context.Background()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	t.Run("message from another room is not found", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		msg := &models.Message{ID: primitive.NewObjectID(), RoomID: primitive.NewObjectID(), UserID: alice}
		f.rooms.EXPECT().Get(ctx, room.ID).Return(room, nil)
		f.messages.EXPECT().Get(ctx, msg.ID).Return(msg, nil)

		_, _, err := f.gate.RequireMessage(ctx, alice, room.ID, msg.ID)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("only the author passes", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		msg := &models.Message{ID: primitive.NewObjectID(), RoomID: room.ID, UserID: alice}
		f.rooms.EXPECT().Get(ctx, room.ID).Return(room, nil).Times(2)
		f.messages.EXPECT().Get(ctx, msg.ID).Return(msg, nil).Times(2)

		_, _, err := f.gate.RequireAuthor(ctx, bob, room.ID, msg.ID)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

		_, got, err := f.gate.RequireAuthor(ctx, alice, room.ID, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, got.ID)
	})
}
