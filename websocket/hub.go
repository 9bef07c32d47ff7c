package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"roomchat/backend/models"
	"roomchat/backend/notifier"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errHubClosed = errors.New("websocket hub is closed")

// Hub 維護所有活躍的 WebSocket 客戶端，並把聊天室事件廣播給該聊天室的連線
type Hub struct {
	clients       map[*Client]bool
	clientsByRoom map[primitive.ObjectID]map[*Client]bool // 按聊天室ID索引的客戶端
	broadcast     chan models.Event
	register      chan *Client
	unregister    chan *Client
	done          chan struct{}
}

// NewHub 創建並返回一個新的 Hub 實例
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		clientsByRoom: make(map[primitive.ObjectID]map[*Client]bool),
		broadcast:     make(chan models.Event),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
	}
}

// Run 啟動 Hub 的運行迴圈，ctx 結束時關閉所有連線
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			log.Println("WebSocket hub stopped.")
			return

		case client := <-h.register:
			h.clients[client] = true
			if _, ok := h.clientsByRoom[client.RoomID]; !ok {
				h.clientsByRoom[client.RoomID] = make(map[*Client]bool)
			}
			h.clientsByRoom[client.RoomID][client] = true
			log.Printf("Client %s registered to room %s. Total clients in room: %d", client.UserID.Hex(), client.RoomID.Hex(), len(h.clientsByRoom[client.RoomID]))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				log.Printf("Client %s unregistered from room %s. Total clients in room: %d", client.UserID.Hex(), client.RoomID.Hex(), len(h.clientsByRoom[client.RoomID]))
			}

		case ev := <-h.broadcast:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) fanOut(ev models.Event) {
	roomID, ok := notifier.RoomIDFromChannel(ev.Channel)
	if !ok {
		log.Printf("[NOTIFY_ERROR] event %s on unknown channel %q", ev.Event, ev.Channel)
		return
	}
	for client := range h.clientsByRoom[roomID] {
		select {
		case client.send <- ev:
		default:
			h.drop(client)
			log.Printf("Client channel is full, unregistered client %s from room %s", client.UserID.Hex(), roomID.Hex())
		}
	}

	switch ev.Event {
	case models.EventRoomDeleted:
		// 聊天室已不存在，關閉所有連線
		for client := range h.clientsByRoom[roomID] {
			h.drop(client)
		}
	case models.EventMemberLeft:
		var p models.MembershipPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		for client := range h.clientsByRoom[roomID] {
			if client.UserID == p.UserID {
				h.drop(client)
			}
		}
	}
}

// drop 只能在 Run 迴圈內呼叫
func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	if room, ok := h.clientsByRoom[client.RoomID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.clientsByRoom, client.RoomID) // 如果房間沒有客戶端了，就刪除房間
		}
	}
	close(client.send)
}

// Publish 讓 Hub 直接作為單一節點部署時的 Notifier
func (h *Hub) Publish(ctx context.Context, roomID primitive.ObjectID, event models.EventType, payload any) error {
	ev, err := models.NewEvent(roomID, event, payload)
	if err != nil {
		return err
	}
	return h.enqueue(ctx, ev)
}

// Deliver 接收從 Redis 轉來的事件
func (h *Hub) Deliver(ev models.Event) {
	if err := h.enqueue(context.Background(), ev); err != nil {
		log.Printf("[NOTIFY_ERROR] %s on %s: %v", ev.Event, ev.Channel, err)
	}
}

func (h *Hub) enqueue(ctx context.Context, ev models.Event) error {
	select {
	case h.broadcast <- ev:
		return nil
	case <-h.done:
		return errHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) add(ctx context.Context, client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return errHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
