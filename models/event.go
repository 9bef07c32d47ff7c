package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType 廣播到聊天室頻道的事件類型
type EventType string

const (
	EventMessageNew     EventType = "MESSAGE_NEW"
	EventMessageUpdated EventType = "MESSAGE_UPDATED"
	EventMessageDeleted EventType = "MESSAGE_DELETED"
	EventTyping         EventType = "TYPING"
	EventMemberJoined   EventType = "MEMBER_JOINED"
	EventMemberLeft     EventType = "MEMBER_LEFT"
	EventRoomUpdated    EventType = "ROOM_UPDATED"
	EventRoomDeleted    EventType = "ROOM_DELETED"
)

// RoomChannelPrefix 頻道名稱前綴，頻道為 room-<roomId>
const RoomChannelPrefix = "room-"

// RoomChannel 回傳聊天室的廣播頻道
func RoomChannel(roomID primitive.ObjectID) string {
	return RoomChannelPrefix + roomID.Hex()
}

// Event 推送給客戶端的封包
type Event struct {
	Channel string          `json:"channel"`
	Event   EventType       `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// NewEvent 將 payload 編碼成封包
func NewEvent(roomID primitive.ObjectID, eventType EventType, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Channel: RoomChannel(roomID), Event: eventType, Data: data}, nil
}

type MessageNewPayload struct {
	ID         primitive.ObjectID  `json:"id"`
	RoomID     primitive.ObjectID  `json:"roomId"`
	UserID     primitive.ObjectID  `json:"userId"`
	UserName   string              `json:"userName"`
	UserAvatar string              `json:"userAvatar,omitempty"`
	Content    string              `json:"content"`
	Type       MessageType         `json:"type"`
	Attachment *Attachment         `json:"attachment,omitempty"`
	ReplyTo    *primitive.ObjectID `json:"replyTo,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

type MessageDeletedPayload struct {
	MessageID primitive.ObjectID `json:"messageId"`
}

type TypingPayload struct {
	RoomID   primitive.ObjectID `json:"roomId"`
	UserID   primitive.ObjectID `json:"userId"`
	UserName string             `json:"userName"`
	IsTyping bool               `json:"isTyping"`
}

type MembershipPayload struct {
	RoomID      primitive.ObjectID `json:"roomId"`
	UserID      primitive.ObjectID `json:"userId"`
	MemberCount int                `json:"memberCount"`
}

type RoomDeletedPayload struct {
	RoomID primitive.ObjectID `json:"roomId"`
}
