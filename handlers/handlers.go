// Package handlers 把 HTTP 請求轉成 services 的呼叫，並把結果與錯誤轉成 JSON。
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"roomchat/backend/apperr"
	"roomchat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SuccessResponse {success: true}
type SuccessResponse struct {
	Success bool `json:"success"`
}

var success = SuccessResponse{Success: true}

// decodeJSON 解析請求內容，格式錯誤一律回傳 400
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Printf("JSON decode error: %v", err)
		return apperr.Validation("Invalid request payload")
	}
	return nil
}

// currentUser 取得 JWTMiddleware 放入的使用者 ID。沒有時回傳零值，交給 AccessGate 拒絕。
func currentUser(r *http.Request) primitive.ObjectID {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		return primitive.NilObjectID
	}
	return userID
}
