package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roomchat/backend/apperr"
	"roomchat/backend/models"
	"roomchat/backend/services"
	"roomchat/backend/services/mocks"
	"roomchat/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
)

const testSecret = "test-secret"

type apiFixture struct {
	users    *mocks.MockUserStore
	rooms    *mocks.MockRoomStore
	messages *mocks.MockMessageStore
	notifier *mocks.MockNotifier
	router   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &apiFixture{
		users:    mocks.NewMockUserStore(ctrl),
		rooms:    mocks.NewMockRoomStore(ctrl),
		messages: mocks.NewMockMessageStore(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	gate := services.NewAccessGate(f.rooms, f.messages, testSecret)
	f.router = NewRouter(Dependencies{
		Gate:     gate,
		Users:    services.NewUserService(gate, f.users, testSecret, time.Hour),
		Rooms:    services.NewRoomService(gate, f.rooms, f.users, f.notifier),
		Messages: services.NewMessageService(gate, f.messages, f.users, f.notifier),
		OAuth:    map[string]*OAuthProvider{},
	})
	return f
}

func tokenFor(t *testing.T, userID primitive.ObjectID) string {
	t.Helper()
	token, err := utils.GenerateJWT(userID, "tester", testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func room(creator primitive.ObjectID, members ...primitive.ObjectID) *models.Room {
	return &models.Room{
		ID:        primitive.NewObjectID(),
		Name:      "General",
		CreatedBy: creator,
		Members:   append([]primitive.ObjectID{creator}, members...),
	}
}

func TestRouter_Health(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouter_RequiresSession(t *testing.T) {
	f := newAPIFixture(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/rooms"},
		{http.MethodPost, "/rooms"},
		{http.MethodGet, "/messages/" + primitive.NewObjectID().Hex()},
		{http.MethodGet, "/user/search?q=a"},
	} {
		rr := f.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.path)
		assert.Equal(t, "Unauthorized", decodeBody[models.ErrorResponse](t, rr).Error)
	}
}

func TestRouter_Register(t *testing.T) {
	f := newAPIFixture(t)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ any, u *models.User) error {
		u.ID = primitive.NewObjectID()
		return nil
	})

	rr := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "alice", "email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")
	got := decodeBody[UserResponse](t, rr)
	assert.Equal(t, "alice", got.User.Name)

	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(apperr.Conflict("User already exists"))
	rr = f.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "alice", "email": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request payload", decodeBody[models.ErrorResponse](t, rr).Error)
}

func TestRouter_CreateRoom(t *testing.T) {
	f := newAPIFixture(t)
	alice := primitive.NewObjectID()
	f.rooms.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ any, r *models.Room) error {
		r.ID = primitive.NewObjectID()
		r.Members = []primitive.ObjectID{r.CreatedBy}
		return nil
	})

	rr := f.do(t, http.MethodPost, "/rooms", tokenFor(t, alice), map[string]any{"name": "General", "maxMembers": 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body struct {
		Room struct {
			Name        string   `json:"name"`
			CreatedBy   string   `json:"createdBy"`
			Members     []string `json:"members"`
			MemberCount int      `json:"memberCount"`
			MaxMembers  int      `json:"maxMembers"`
		} `json:"room"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, alice.Hex(), body.Room.CreatedBy)
	assert.Equal(t, []string{alice.Hex()}, body.Room.Members)
	assert.Equal(t, 1, body.Room.MemberCount)
	assert.Equal(t, 2, body.Room.MaxMembers)

	rr = f.do(t, http.MethodPost, "/rooms", tokenFor(t, alice), map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Room name is required", decodeBody[models.ErrorResponse](t, rr).Error)
}

func TestRouter_JoinFullRoomIs400(t *testing.T) {
	f := newAPIFixture(t)
	u1, u2, u3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	r := room(u1, u2)
	capacity := 2
	r.MaxMembers = &capacity

	f.rooms.EXPECT().Get(gomock.Any(), r.ID).Return(r, nil)
	f.rooms.EXPECT().AddMember(gomock.Any(), r.ID, u3).Return(nil, apperr.Capacity("Room is full"))

	rr := f.do(t, http.MethodPost, "/rooms/"+r.ID.Hex()+"/join", tokenFor(t, u3), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Room is full", decodeBody[models.ErrorResponse](t, rr).Error)
}

func TestRouter_RoomNotFound(t *testing.T) {
	f := newAPIFixture(t)
	alice := primitive.NewObjectID()

	rr := f.do(t, http.MethodGet, "/rooms/not-an-id", tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	missing := primitive.NewObjectID()
	f.rooms.EXPECT().Get(gomock.Any(), missing).Return(nil, apperr.NotFound("Room not found"))
	rr = f.do(t, http.MethodGet, "/rooms/"+missing.Hex(), tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Room not found", decodeBody[models.ErrorResponse](t, rr).Error)
}

func TestRouter_DeleteRoomCreatorOnly(t *testing.T) {
	f := newAPIFixture(t)
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	r := room(alice, bob)

	f.rooms.EXPECT().Get(gomock.Any(), r.ID).Return(r, nil).Times(2)
	rr := f.do(t, http.MethodDelete, "/rooms/"+r.ID.Hex(), tokenFor(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	f.rooms.EXPECT().Delete(gomock.Any(), r.ID).Return(nil)
	f.notifier.EXPECT().Publish(gomock.Any(), r.ID, models.EventRoomDeleted, gomock.Any()).Return(nil)
	rr = f.do(t, http.MethodDelete, "/rooms/"+r.ID.Hex(), tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[SuccessResponse](t, rr).Success)
}

func TestRouter_MessageLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	r := room(alice, bob)
	f.rooms.EXPECT().Get(gomock.Any(), r.ID).Return(r, nil).AnyTimes()
	f.users.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).Return([]models.User{{ID: alice, Name: "alice"}}, nil).AnyTimes()
	f.notifier.EXPECT().Publish(gomock.Any(), r.ID, gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	var stored models.Message
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ any, m *models.Message) error {
		m.ID = primitive.NewObjectID()
		m.CreatedAt = time.Now().UTC()
		m.ReadBy = []primitive.ObjectID{m.UserID}
		stored = *m
		return nil
	})

	rr := f.do(t, http.MethodPost, "/messages/"+r.ID.Hex(), tokenFor(t, alice), map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	sent := decodeBody[MessageResponse](t, rr).Message
	assert.Equal(t, "hello", sent.Content)
	assert.Equal(t, "alice", sent.UserName)

	f.messages.EXPECT().Get(gomock.Any(), stored.ID).Return(&stored, nil).AnyTimes()

	// 非作者不能修改
	rr = f.do(t, http.MethodPatch, "/messages/"+r.ID.Hex()+"/"+stored.ID.Hex(), tokenFor(t, bob), map[string]string{"content": "hacked"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	edited := stored
	edited.Content = "hello!"
	edited.IsEdited = true
	f.messages.EXPECT().Update(gomock.Any(), stored.ID, "hello!").Return(&edited, nil)
	rr = f.do(t, http.MethodPatch, "/messages/"+r.ID.Hex()+"/"+stored.ID.Hex(), tokenFor(t, alice), map[string]string{"content": "hello!"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[MessageResponse](t, rr).Message.IsEdited)

	f.messages.EXPECT().MarkRead(gomock.Any(), stored.ID, bob).Return(nil)
	rr = f.do(t, http.MethodPost, "/messages/"+r.ID.Hex()+"/"+stored.ID.Hex()+"/read", tokenFor(t, bob), nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	f.messages.EXPECT().UnreadCount(gomock.Any(), r.ID, bob).Return(int64(0), nil)
	rr = f.do(t, http.MethodGet, "/messages/"+r.ID.Hex()+"/unread", tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(0), decodeBody[CountResponse](t, rr).Count)

	rr = f.do(t, http.MethodDelete, "/messages/"+r.ID.Hex()+"/"+stored.ID.Hex(), tokenFor(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	f.messages.EXPECT().Delete(gomock.Any(), stored.ID).Return(nil)
	rr = f.do(t, http.MethodDelete, "/messages/"+r.ID.Hex()+"/"+stored.ID.Hex(), tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_ListMessages(t *testing.T) {
	f := newAPIFixture(t)
	alice, stranger := primitive.NewObjectID(), primitive.NewObjectID()
	r := room(alice)
	f.rooms.EXPECT().Get(gomock.Any(), r.ID).Return(r, nil).AnyTimes()

	rr := f.do(t, http.MethodGet, "/messages/"+r.ID.Hex(), tokenFor(t, stranger), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodGet, "/messages/"+r.ID.Hex()+"?page=abc", tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	f.messages.EXPECT().ListByRoom(gomock.Any(), r.ID, int64(2), int64(10)).
		Return(&models.MessagePage{Messages: []models.Message{}, Total: 12, HasMore: false}, nil)
	rr = f.do(t, http.MethodGet, "/messages/"+r.ID.Hex()+"?page=2&limit=10", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decodeBody[models.MessagePage](t, rr)
	assert.Equal(t, int64(12), page.Total)
	assert.NotNil(t, page.Messages)
}

func TestRouter_SearchUsers(t *testing.T) {
	f := newAPIFixture(t)
	alice := primitive.NewObjectID()
	f.users.EXPECT().Search(gomock.Any(), "bo", alice, int64(10)).Return(nil, nil)

	rr := f.do(t, http.MethodGet, "/user/search?q=bo", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"users":[]}`, rr.Body.String())
}
