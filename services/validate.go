package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"roomchat/backend/apperr"
	"roomchat/backend/models"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput 以 struct tag 驗證輸入，第一個錯誤依 "欄位.規則" 對應到回傳給客戶端的訊息
func validateInput(input any, messages map[string]string) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Internal("validate input", err)
	}
	fe := verrs[0]
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return apperr.Validation(msg)
	}
	return apperr.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
}

// parseObjectID 解析路徑或請求中的 ID，格式錯誤視為找不到
func parseObjectID(hex, notFoundMsg string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.NotFound(notFoundMsg)
	}
	return id, nil
}

// ParseRoomID 給 HTTP 層使用
func ParseRoomID(hex string) (primitive.ObjectID, error) {
	return parseObjectID(hex, "Room not found")
}

func ParseMessageID(hex string) (primitive.ObjectID, error) {
	return parseObjectID(hex, "Message not found")
}

const notifyTimeout = 3 * time.Second

// notify 在資料寫入成功後才呼叫。發佈失敗只記錄，不回滾資料。
func notify(ctx context.Context, n Notifier, roomID primitive.ObjectID, event models.EventType, payload any) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := n.Publish(ctx, roomID, event, payload); err != nil {
		log.Printf("[NOTIFY_ERROR] %s on %s: %v", event, models.RoomChannel(roomID), err)
	}
}
