package websocket

import (
	"context"
	"testing"
	"time"

	"roomchat/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

func newTestClient(t *testing.T, hub *Hub, userID, roomID primitive.ObjectID, buffer int) *Client {
	t.Helper()
	c := &Client{hub: hub, send: make(chan models.Event, buffer), UserID: userID, RoomID: roomID}
	require.NoError(t, hub.add(context.Background(), c))
	return c
}

func receive(t *testing.T, c *Client) (models.Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-c.send:
		return ev, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}, false
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev, ok := <-c.send:
		t.Fatalf("unexpected delivery %v (open=%t)", ev, ok)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FansOutToRoomOnly(t *testing.T) {
	hub := startHub(t)
	roomA, roomB := primitive.NewObjectID(), primitive.NewObjectID()
	a1 := newTestClient(t, hub, primitive.NewObjectID(), roomA, 4)
	a2 := newTestClient(t, hub, primitive.NewObjectID(), roomA, 4)
	b1 := newTestClient(t, hub, primitive.NewObjectID(), roomB, 4)

	payload := models.MessageDeletedPayload{MessageID: primitive.NewObjectID()}
	require.NoError(t, hub.Publish(context.Background(), roomA, models.EventMessageDeleted, payload))

	for _, c := range []*Client{a1, a2} {
		ev, ok := receive(t, c)
		require.True(t, ok)
		assert.Equal(t, models.RoomChannel(roomA), ev.Channel)
		assert.Equal(t, models.EventMessageDeleted, ev.Event)
	}
	assertNothing(t, b1)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	roomID := primitive.NewObjectID()
	slow := newTestClient(t, hub, primitive.NewObjectID(), roomID, 0)
	fast := newTestClient(t, hub, primitive.NewObjectID(), roomID, 4)

	require.NoError(t, hub.Publish(context.Background(), roomID, models.EventTyping, models.TypingPayload{IsTyping: true}))

	_, ok := receive(t, fast)
	assert.True(t, ok)
	_, ok = receive(t, slow)
	assert.False(t, ok, "slow client should be disconnected")
}

func TestHub_RoomDeletedClosesConnections(t *testing.T) {
	hub := startHub(t)
	roomID := primitive.NewObjectID()
	c := newTestClient(t, hub, primitive.NewObjectID(), roomID, 4)

	require.NoError(t, hub.Publish(context.Background(), roomID, models.EventRoomDeleted, models.RoomDeletedPayload{RoomID: roomID}))

	ev, ok := receive(t, c)
	require.True(t, ok)
	assert.Equal(t, models.EventRoomDeleted, ev.Event)
	_, ok = receive(t, c)
	assert.False(t, ok)
}

func TestHub_MemberLeftClosesOnlyThatUser(t *testing.T) {
	hub := startHub(t)
	roomID := primitive.NewObjectID()
	leaver, stayer := primitive.NewObjectID(), primitive.NewObjectID()
	l := newTestClient(t, hub, leaver, roomID, 4)
	s := newTestClient(t, hub, stayer, roomID, 4)

	require.NoError(t, hub.Publish(context.Background(), roomID, models.EventMemberLeft, models.MembershipPayload{RoomID: roomID, UserID: leaver, MemberCount: 1}))

	_, ok := receive(t, l)
	require.True(t, ok)
	_, ok = receive(t, l)
	assert.False(t, ok)

	ev, ok := receive(t, s)
	require.True(t, ok)
	assert.Equal(t, models.EventMemberLeft, ev.Event)
	assertNothing(t, s)
}

func TestHub_DeliverIgnoresUnknownChannel(t *testing.T) {
	hub := startHub(t)
	roomID := primitive.NewObjectID()
	c := newTestClient(t, hub, primitive.NewObjectID(), roomID, 4)

	hub.Deliver(models.Event{Channel: "presence", Event: models.EventTyping})
	assertNothing(t, c)

	ev, err := models.NewEvent(roomID, models.EventTyping, models.TypingPayload{IsTyping: false})
	require.NoError(t, err)
	hub.Deliver(ev)
	got, ok := receive(t, c)
	require.True(t, ok)
	assert.Equal(t, ev.Channel, got.Channel)
}

func TestHub_PublishAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	cancel()
	<-hub.done

	err := hub.Publish(context.Background(), primitive.NewObjectID(), models.EventTyping, nil)
	assert.ErrorIs(t, err, errHubClosed)
}
