package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType 定義消息類型
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	MessageTypeAudio MessageType = "audio"
)

const MaxMessageLength = 5000

// Valid 檢查是否為支援的類型
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio:
		return true
	}
	return false
}

// Attachment 附件描述
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Type string `bson:"type" json:"type"` // MIME type
	Name string `bson:"name" json:"name"`
	Size int64  `bson:"size" json:"size"`
}

// Message 代表一個聊天訊息
type Message struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	RoomID     primitive.ObjectID   `bson:"roomId" json:"roomId"`
	UserID     primitive.ObjectID   `bson:"userId" json:"userId"` // 作者，建立後不可變
	Content    string               `bson:"content" json:"content"`
	Type       MessageType          `bson:"type" json:"type"`
	Attachment *Attachment          `bson:"attachment,omitempty" json:"attachment,omitempty"`
	ReadBy     []primitive.ObjectID `bson:"readBy" json:"readBy"`
	ReplyTo    *primitive.ObjectID  `bson:"replyTo,omitempty" json:"replyTo,omitempty"`
	IsEdited   bool                 `bson:"isEdited" json:"isEdited"`
	EditedAt   *time.Time           `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time            `bson:"updatedAt" json:"updatedAt"`

	// 以下欄位不存資料庫，回傳前才填入
	UserName       string        `bson:"-" json:"userName,omitempty"`
	UserAvatar     string        `bson:"-" json:"userAvatar,omitempty"`
	ReplyToMessage *ReplyPreview `bson:"-" json:"replyToMessage,omitempty"`
}

// IsReadBy 使用者是否已讀
func (m *Message) IsReadBy(userID primitive.ObjectID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ReplyPreview 被回覆訊息的摘要。找不到原訊息時整個欄位省略。
type ReplyPreview struct {
	ID       primitive.ObjectID `json:"id"`
	UserID   primitive.ObjectID `json:"userId"`
	UserName string             `json:"userName,omitempty"`
	Content  string             `json:"content"`
}

// MessagePage 分頁結果，Messages 依時間由舊到新
type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int64     `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

// SendMessageRequest 發送訊息的請求體
type SendMessageRequest struct {
	Content    string      `json:"content"`
	Type       MessageType `json:"type,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	ReplyTo    string      `json:"replyTo,omitempty"`
}

// EditMessageRequest 編輯訊息的請求體
type EditMessageRequest struct {
	Content string `json:"content"`
}
