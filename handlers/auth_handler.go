package handlers

import (
	"net/http"

	"roomchat/backend/models"
	"roomchat/backend/services"
	"roomchat/backend/utils"
)

type UserResponse struct {
	User *models.User `json:"user"`
}

type UsersResponse struct {
	Users []models.User `json:"users"`
}

// AuthHandler 帳號密碼註冊與登入
type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register 處理使用者註冊請求
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, UserResponse{User: user})
}

// Login 處理使用者登入請求
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	result, err := h.users.Login(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}
