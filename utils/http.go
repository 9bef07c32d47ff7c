package utils

import (
	"encoding/json"
	"log"
	"net/http"

	"roomchat/backend/apperr"
	"roomchat/backend/models"
)

// WriteJSON 統一發送 JSON 響應
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// WriteError 依錯誤分類決定狀態碼。內部錯誤只記錄，不把細節回傳給客戶端。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Printf("[INTERNAL_ERROR] %s %s: %v", r.Method, r.URL.Path, err)
	}
	WriteJSON(w, apperr.HTTPStatus(kind), models.ErrorResponse{Error: apperr.MessageOf(err)})
}
