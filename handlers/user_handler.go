package handlers

import (
	"net/http"

	"roomchat/backend/models"
	"roomchat/backend/services"
	"roomchat/backend/utils"
)

// UserHandler 搜尋使用者、個人資料與上線名單
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Search GET /user/search?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Search(r.Context(), currentUser(r), r.URL.Query().Get("q"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	utils.WriteJSON(w, http.StatusOK, UsersResponse{Users: users})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), currentUser(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, UserResponse{User: user})
}

// UpdateMe PATCH /user/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	user, err := h.users.UpdateMe(r.Context(), currentUser(r), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, UserResponse{User: user})
}

// Online 目前上線的使用者
func (h *UserHandler) Online(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Online(r.Context(), currentUser(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	utils.WriteJSON(w, http.StatusOK, UsersResponse{Users: users})
}
