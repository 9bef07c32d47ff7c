// Package websocket 將聊天室事件即時推送給瀏覽器。
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"roomchat/backend/apperr"
	"roomchat/backend/models"
	"roomchat/backend/services"
	"roomchat/backend/utils"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// 將訊息寫入到遠端對等點的最長時間
	writeWait = 10 * time.Second

	// 允許從遠端對等點讀取下一個 pong 訊息的最長時間。
	pongWait = 60 * time.Second

	// 發送 ping 訊息給遠端對等點的週期。
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBufferSize  = 256
	presenceTimeout = 5 * time.Second
)

// Authorizer 連線前的身分與成員檢查
type Authorizer interface {
	Identify(token string) (primitive.ObjectID, error)
	RequireMember(ctx context.Context, userID, roomID primitive.ObjectID) (*models.Room, error)
}

// TypingPublisher 轉送客戶端的輸入狀態
type TypingPublisher interface {
	Typing(ctx context.Context, userID, roomID primitive.ObjectID, isTyping bool) error
}

type PresenceTracker interface {
	SetPresence(ctx context.Context, userID primitive.ObjectID, online bool) error
}

// Client 代表一個 WebSocket 客戶端，一個連線只訂閱一個聊天室
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan models.Event
	UserID primitive.ObjectID
	RoomID primitive.ObjectID
}

// inboundFrame 客戶端送來的封包，目前只處理 TYPING
type inboundFrame struct {
	Event    models.EventType `json:"event"`
	IsTyping bool             `json:"isTyping"`
}

// 讀取用戶傳來的封包
func (c *Client) readPump(typing TypingPublisher) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Client disconnected gracefully.")
			} else if websocket.IsUnexpectedCloseError(err) {
				log.Printf("Error reading message: %v", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(p, &frame); err != nil {
			log.Printf("Error unmarshalling frame from %s: %v", c.UserID.Hex(), err)
			continue
		}
		switch frame.Event {
		case models.EventTyping:
			ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
			if err := typing.Typing(ctx, c.UserID, c.RoomID, frame.IsTyping); err != nil {
				log.Printf("[TYPING_ERROR] user %s room %s: %v", c.UserID.Hex(), c.RoomID.Hex(), err)
			}
			cancel()
		default:
			log.Printf("Ignoring unsupported frame %q from %s", frame.Event, c.UserID.Hex())
		}
	}
}

// 接收 Hub 廣播來的事件，丟給前端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 如果這個 channel 被關閉了（ok == false），就送出 CloseMessage
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}

		// 定時 ping 以保持連線活躍並檢測客戶端是否仍在線。
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler 處理 GET /ws?roomId=&token=
type Handler struct {
	hub      *Hub
	auth     Authorizer
	typing   TypingPublisher
	presence PresenceTracker
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[primitive.ObjectID]int // 每個使用者目前的連線數
}

func NewHandler(hub *Hub, auth Authorizer, typing TypingPublisher, presence PresenceTracker, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		auth:     auth,
		typing:   typing,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sessions: make(map[primitive.ObjectID]int),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP 驗證身分與成員資格後才升級連線
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	userID, err := h.auth.Identify(token)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	roomID, err := services.ParseRoomID(r.URL.Query().Get("roomId"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if _, err := h.auth.RequireMember(r.Context(), userID, roomID); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan models.Event, sendBufferSize),
		UserID: userID,
		RoomID: roomID,
	}
	if err := h.hub.add(r.Context(), client); err != nil {
		log.Printf("Failed to register client %s: %v", userID.Hex(), err)
		conn.Close()
		return
	}

	h.connected(userID)
	defer h.disconnected(userID)

	go client.writePump()
	client.readPump(h.typing) // readPump 會在連線關閉時自動取消註冊
}

func (h *Handler) connected(userID primitive.ObjectID) {
	h.mu.Lock()
	h.sessions[userID]++
	first := h.sessions[userID] == 1
	h.mu.Unlock()
	if first {
		h.setPresence(userID, true)
	}
}

func (h *Handler) disconnected(userID primitive.ObjectID) {
	h.mu.Lock()
	h.sessions[userID]--
	last := h.sessions[userID] <= 0
	if last {
		delete(h.sessions, userID)
	}
	h.mu.Unlock()
	if last {
		h.setPresence(userID, false)
	}
}

func (h *Handler) setPresence(userID primitive.ObjectID, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.presence.SetPresence(ctx, userID, online); err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		log.Printf("[PRESENCE_ERROR] user %s online=%t: %v", userID.Hex(), online, err)
	}
}
