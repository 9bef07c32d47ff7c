package handlers

import (
	"net/http"

	"roomchat/backend/models"
	"roomchat/backend/services"
	"roomchat/backend/utils"

	"github.com/gorilla/mux"
)

type RoomResponse struct {
	Room *models.Room `json:"room"`
}

type RoomsResponse struct {
	Rooms []models.Room `json:"rooms"`
}

// RoomHandler 聊天室相關的 API
type RoomHandler struct {
	rooms *services.RoomService
}

func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List 使用者所在的聊天室
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListMine(r.Context(), currentUser(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	writeRooms(w, rooms)
}

// Public 公開聊天室
func (h *RoomHandler) Public(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListPublic(r.Context(), currentUser(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	writeRooms(w, rooms)
}

func writeRooms(w http.ResponseWriter, rooms []models.Room) {
	if rooms == nil {
		rooms = []models.Room{}
	}
	utils.WriteJSON(w, http.StatusOK, RoomsResponse{Rooms: rooms})
}

// Create 處理創建聊天室的請求
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	room, err := h.rooms.Create(r.Context(), currentUser(r), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, RoomResponse{Room: room})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID, err := services.ParseRoomID(mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	room, err := h.rooms.Get(r.Context(), currentUser(r), roomID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, RoomResponse{Room: room})
}

// Update PATCH /rooms/{id}，只更新有提供的欄位
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	roomID, err := services.ParseRoomID(mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var patch models.RoomPatch
	if err := decodeJSON(r, &patch); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	room, err := h.rooms.Update(r.Context(), currentUser(r), roomID, patch)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, RoomResponse{Room: room})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roomID, err := services.ParseRoomID(mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := h.rooms.Delete(r.Context(), currentUser(r), roomID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, success)
}

// Join 自行加入聊天室，額滿時回傳 400
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	roomID, err := services.ParseRoomID(mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	room, err := h.rooms.Join(r.Context(), currentUser(r), roomID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, RoomResponse{Room: room})
}

func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	roomID, err := services.ParseRoomID(mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	room, err := h.rooms.Leave(r.Context(), currentUser(r), roomID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, RoomResponse{Room: room})
}

// AddMember 建立者把其他使用者加入聊天室
func (h *RoomHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	roomID, err := services.ParseRoomID(mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	room, err := h.rooms.AddMember(r.Context(), currentUser(r), roomID, req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, RoomResponse{Room: room})
}
