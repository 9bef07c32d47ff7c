package handlers

import (
	"fmt"
	"net/http"

	"roomchat/backend/middleware"
	"roomchat/backend/services"

	"github.com/gorilla/mux"
)

// Dependencies 建立路由需要的 services 與 WebSocket 入口
type Dependencies struct {
	Gate      *services.AccessGate
	Users     *services.UserService
	Rooms     *services.RoomService
	Messages  *services.MessageService
	OAuth     map[string]*OAuthProvider
	WebSocket http.Handler
}

// NewRouter 註冊所有 API 路由
func NewRouter(deps Dependencies) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger)

	// 健康檢查路由
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Backend is running!")
	}).Methods(http.MethodGet)

	auth := NewAuthHandler(deps.Users)
	router.HandleFunc("/auth/register", auth.Register).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", auth.Login).Methods(http.MethodPost)

	oauth := NewOAuthHandler(deps.Users, deps.OAuth)
	router.HandleFunc("/auth/oauth/{provider}/login", oauth.Login).Methods(http.MethodGet)
	router.HandleFunc("/auth/oauth/{provider}/callback", oauth.Callback).Methods(http.MethodGet)

	// WebSocket 以查詢參數帶 token，由 Handler 自行驗證
	if deps.WebSocket != nil {
		router.Handle("/ws", deps.WebSocket).Methods(http.MethodGet)
	}

	api := router.NewRoute().Subrouter()
	api.Use(middleware.JWTMiddleware(deps.Gate))

	rooms := NewRoomHandler(deps.Rooms)
	api.HandleFunc("/rooms", rooms.List).Methods(http.MethodGet)
	api.HandleFunc("/rooms", rooms.Create).Methods(http.MethodPost)
	api.HandleFunc("/rooms/public", rooms.Public).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", rooms.Get).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", rooms.Update).Methods(http.MethodPatch)
	api.HandleFunc("/rooms/{id}", rooms.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/rooms/{id}/join", rooms.Join).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/leave", rooms.Leave).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/add-member", rooms.AddMember).Methods(http.MethodPost)

	messages := NewMessageHandler(deps.Messages)
	api.HandleFunc("/messages/{roomId}", messages.List).Methods(http.MethodGet)
	api.HandleFunc("/messages/{roomId}", messages.Send).Methods(http.MethodPost)
	api.HandleFunc("/messages/{roomId}/read", messages.MarkRoomRead).Methods(http.MethodPost)
	api.HandleFunc("/messages/{roomId}/unread", messages.Unread).Methods(http.MethodGet)
	api.HandleFunc("/messages/{roomId}/{messageId}", messages.Edit).Methods(http.MethodPatch)
	api.HandleFunc("/messages/{roomId}/{messageId}", messages.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/messages/{roomId}/{messageId}/read", messages.MarkRead).Methods(http.MethodPost)

	users := NewUserHandler(deps.Users)
	api.HandleFunc("/user/search", users.Search).Methods(http.MethodGet)
	api.HandleFunc("/user/me", users.Me).Methods(http.MethodGet)
	api.HandleFunc("/user/me", users.UpdateMe).Methods(http.MethodPatch)
	api.HandleFunc("/user/online", users.Online).Methods(http.MethodGet)

	return router
}
