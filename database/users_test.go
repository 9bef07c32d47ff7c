package database

import (
	"context"
	"testing"

	"roomchat/backend/apperr"
	"roomchat/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserStore_CreateAndFind(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()

	user := &models.User{Name: "  Alice ", Email: " Alice@Example.COM ", Password: "hash"}
	require.NoError(t, store.Create(ctx, user))
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)

	byEmail, err := store.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.Password)

	byID, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)

	_, err = store.FindByID(ctx, primitive.NewObjectID())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUserStore_DuplicateEmailIsConflict(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &models.User{Name: "A", Email: "dup@example.com"}))
	err := store.Create(ctx, &models.User{Name: "B", Email: "DUP@example.com"})

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUserStore_SearchExcludesCallerAndQuotesInput(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()

	me := &models.User{Name: "Bob Builder", Email: "bob@example.com"}
	other := &models.User{Name: "Bobby", Email: "bobby@example.com"}
	dotted := &models.User{Name: "a.b", Email: "ab@example.com"}
	plain := &models.User{Name: "axb", Email: "axb@example.com"}
	for _, u := range []*models.User{me, other, dotted, plain} {
		require.NoError(t, store.Create(ctx, u))
	}

	users, err := store.Search(ctx, "BOB", me.ID, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, other.ID, users[0].ID)

	// "." 必須當成一般字元
	users, err = store.Search(ctx, "a.b", primitive.NilObjectID, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, dotted.ID, users[0].ID)
}

func TestUserStore_PresenceAndProfile(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()

	user := &models.User{Name: "Carol", Email: "carol@example.com"}
	require.NoError(t, store.Create(ctx, user))

	require.NoError(t, store.SetOnline(ctx, user.ID, true))
	online, err := store.ListOnline(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.True(t, online[0].IsOnline)

	require.NoError(t, store.SetOnline(ctx, user.ID, false))
	online, err = store.ListOnline(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)

	name, avatar := "Caroline", "https://cdn.test/c.png"
	updated, err := store.Update(ctx, user.ID, models.UpdateProfileRequest{Name: &name, Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Caroline", updated.Name)
	assert.Equal(t, avatar, updated.Avatar)
	assert.Equal(t, "carol@example.com", updated.Email)

	err = store.SetOnline(ctx, primitive.NewObjectID(), true)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUserStore_FindByIDs(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()

	a := &models.User{Name: "A", Email: "a@example.com"}
	b := &models.User{Name: "B", Email: "b@example.com"}
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))

	users, err := store.FindByIDs(ctx, []primitive.ObjectID{a.ID, b.ID, primitive.NewObjectID()})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = store.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}
