package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxRoomNameLength        = 100
	MaxRoomDescriptionLength = 500
)

// Room 代表一個聊天室
type Room struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy   primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	Members     []primitive.ObjectID `bson:"members" json:"members"` // 成員的使用者 ID 列表，建立者一定在內
	IsPrivate   bool                 `bson:"isPrivate" json:"isPrivate"`
	MaxMembers  *int                 `bson:"maxMembers,omitempty" json:"maxMembers,omitempty"` // nil 代表不限人數
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// HasMember 檢查使用者是否為成員
func (r *Room) HasMember(userID primitive.ObjectID) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsCreator 檢查使用者是否為建立者
func (r *Room) IsCreator(userID primitive.ObjectID) bool {
	return r.CreatedBy == userID
}

// IsFull 人數是否已達上限
func (r *Room) IsFull() bool {
	return r.MaxMembers != nil && len(r.Members) >= *r.MaxMembers
}

// MarshalJSON 額外輸出 memberCount
func (r Room) MarshalJSON() ([]byte, error) {
	type alias Room
	members := r.Members
	if members == nil {
		members = []primitive.ObjectID{}
	}
	r.Members = members
	return json.Marshal(struct {
		alias
		MemberCount int `json:"memberCount"`
	}{alias(r), len(members)})
}

// CreateRoomRequest 建立聊天室的請求體
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
	MaxMembers  *int   `json:"maxMembers,omitempty"`
}

// RoomPatch 部分更新聊天室，nil 欄位不變。MaxMembers 為 0 代表取消人數上限。
type RoomPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPrivate   *bool   `json:"isPrivate,omitempty"`
	MaxMembers  *int    `json:"maxMembers,omitempty"`
}

// IsEmpty 沒有任何欄位要更新
func (p RoomPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.IsPrivate == nil && p.MaxMembers == nil
}

// AddMemberRequest 建立者強制加入成員
type AddMemberRequest struct {
	UserID string `json:"userId"`
}
