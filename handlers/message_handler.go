package handlers

import (
	"net/http"
	"strconv"

	"roomchat/backend/models"
	"roomchat/backend/services"
	"roomchat/backend/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageResponse struct {
	Message *models.Message `json:"message"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

// MessageHandler 訊息相關的 API，路徑皆為 /messages/{roomId}/...
type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func routeIDs(r *http.Request, withMessage bool) (roomID, messageID primitive.ObjectID, err error) {
	vars := mux.Vars(r)
	if roomID, err = services.ParseRoomID(vars["roomId"]); err != nil {
		return
	}
	if withMessage {
		messageID, err = services.ParseMessageID(vars["messageId"])
	}
	return
}

// queryInt 讀取查詢參數，未提供時使用預設值。無法解析時回傳 0，交給 service 在權限檢查之後拒絕。
func queryInt(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// List GET /messages/{roomId}?page=&limit=
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	roomID, _, err := routeIDs(r, false)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", services.DefaultPageSize)

	result, err := h.messages.List(r.Context(), currentUser(r), roomID, page, limit)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// Send POST /messages/{roomId}
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	roomID, _, err := routeIDs(r, false)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	msg, err := h.messages.Send(r.Context(), currentUser(r), roomID, req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

// Edit PATCH /messages/{roomId}/{messageId}
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	roomID, messageID, err := routeIDs(r, true)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.EditMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	msg, err := h.messages.Edit(r.Context(), currentUser(r), roomID, messageID, req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roomID, messageID, err := routeIDs(r, true)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := h.messages.Delete(r.Context(), currentUser(r), roomID, messageID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, success)
}

// MarkRead POST /messages/{roomId}/{messageId}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	roomID, messageID, err := routeIDs(r, true)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := h.messages.MarkRead(r.Context(), currentUser(r), roomID, messageID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, success)
}

// MarkRoomRead POST /messages/{roomId}/read
func (h *MessageHandler) MarkRoomRead(w http.ResponseWriter, r *http.Request) {
	roomID, _, err := routeIDs(r, false)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := h.messages.MarkRoomRead(r.Context(), currentUser(r), roomID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, success)
}

// Unread GET /messages/{roomId}/unread
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	roomID, _, err := routeIDs(r, false)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	count, err := h.messages.UnreadCount(r.Context(), currentUser(r), roomID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}
