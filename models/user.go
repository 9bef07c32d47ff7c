package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RegisterRequest 結構體用於處理註冊請求
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 登入請求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest 部分更新個人資料，nil 代表不變
type UpdateProfileRequest struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// ErrorResponse 結構體用於返回 JSON 格式的錯誤訊息
type ErrorResponse struct {
	Error string `json:"error"`
}

// User 結構體定義了使用者資料的欄位
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password,omitempty" json:"-"` // 外部登入的帳號沒有密碼
	Avatar    string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsOnline  bool               `bson:"isOnline" json:"isOnline"`
	LastSeen  time.Time          `bson:"lastSeen" json:"lastSeen"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasPassword 是否為帳號密碼註冊的使用者
func (u *User) HasPassword() bool {
	return u.Password != ""
}
