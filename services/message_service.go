package services

import (
	"context"
	"log"
	"strings"

	"roomchat/backend/apperr"
	"roomchat/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var messageMessages = map[string]string{
	"Content.required": "Content is required",
	"Content.max":      "Message cannot exceed 5000 characters",
	"Type.oneof":       "Invalid message type",
	"ReplyTo.mongodb":  "Invalid replyTo message ID",
	"URL.required":     "Attachment url is required",
	"Size.min":         "Attachment size cannot be negative",
	"Page.min":         "page must be at least 1",
	"Limit.min":        "limit must be at least 1",
}

type attachmentInput struct {
	URL  string `validate:"required"`
	Size int64  `validate:"min=0"`
}

type sendMessageInput struct {
	Content    string           `validate:"required,max=5000"`
	Type       string           `validate:"oneof=text image file audio"`
	Attachment *attachmentInput `validate:"omitnil"`
	ReplyTo    string           `validate:"omitempty,mongodb"`
}

type editMessageInput struct {
	Content string `validate:"required,max=5000"`
}

type pageInput struct {
	Page  int64 `validate:"min=1"`
	Limit int64 `validate:"min=1"`
}

// MessageService 訊息的發送、編輯、刪除與已讀
type MessageService struct {
	gate     *AccessGate
	messages MessageStore
	users    UserStore
	notifier Notifier
}

func NewMessageService(gate *AccessGate, messages MessageStore, users UserStore, notifier Notifier) *MessageService {
	return &MessageService{gate: gate, messages: messages, users: users, notifier: notifier}
}

// List 分頁列出訊息。page 從 1 開始，每頁最多 MaxPageSize 筆。
func (s *MessageService) List(ctx context.Context, userID, roomID primitive.ObjectID, page, limit int64) (*models.MessagePage, error) {
	if _, err := s.gate.RequireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if err := validateInput(pageInput{Page: page, Limit: limit}, messageMessages); err != nil {
		return nil, err
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	result, err := s.messages.ListByRoom(ctx, roomID, page, limit)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, roomID, result.Messages)
	return result, nil
}

// Send 發送訊息。沒有去重，重送會產生兩則訊息。
func (s *MessageService) Send(ctx context.Context, userID, roomID primitive.ObjectID, req models.SendMessageRequest) (*models.Message, error) {
	if _, err := s.gate.RequireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Validation("Content is required")
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}
	input := sendMessageInput{
		Content: req.Content,
		Type:    string(req.Type),
		ReplyTo: strings.TrimSpace(req.ReplyTo),
	}
	if req.Attachment != nil {
		input.Attachment = &attachmentInput{URL: req.Attachment.URL, Size: req.Attachment.Size}
	}
	if err := validateInput(input, messageMessages); err != nil {
		return nil, err
	}

	msg := &models.Message{
		RoomID:     roomID,
		UserID:     userID,
		Content:    req.Content,
		Type:       req.Type,
		Attachment: req.Attachment,
	}
	if input.ReplyTo != "" {
		// replyTo 不檢查是否存在，列出時才盡力解析
		replyTo, _ := primitive.ObjectIDFromHex(input.ReplyTo)
		msg.ReplyTo = &replyTo
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	decorated := []models.Message{*msg}
	s.decorate(ctx, roomID, decorated)
	*msg = decorated[0]

	notify(ctx, s.notifier, roomID, models.EventMessageNew, models.MessageNewPayload{
		ID:         msg.ID,
		RoomID:     roomID,
		UserID:     userID,
		UserName:   msg.UserName,
		UserAvatar: msg.UserAvatar,
		Content:    msg.Content,
		Type:       msg.Type,
		Attachment: msg.Attachment,
		ReplyTo:    msg.ReplyTo,
		Timestamp:  msg.CreatedAt,
	})
	return msg, nil
}

// Edit 只有作者能修改內容
func (s *MessageService) Edit(ctx context.Context, userID, roomID, messageID primitive.ObjectID, req models.EditMessageRequest) (*models.Message, error) {
	if _, _, err := s.gate.RequireAuthor(ctx, userID, roomID, messageID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Validation("Content is required")
	}
	if err := validateInput(editMessageInput{Content: req.Content}, messageMessages); err != nil {
		return nil, err
	}

	msg, err := s.messages.Update(ctx, messageID, req.Content)
	if err != nil {
		return nil, err
	}
	decorated := []models.Message{*msg}
	s.decorate(ctx, roomID, decorated)
	msg = &decorated[0]

	notify(ctx, s.notifier, roomID, models.EventMessageUpdated, msg)
	return msg, nil
}

// Delete 只有作者能刪除
func (s *MessageService) Delete(ctx context.Context, userID, roomID, messageID primitive.ObjectID) error {
	if _, _, err := s.gate.RequireAuthor(ctx, userID, roomID, messageID); err != nil {
		return err
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}
	notify(ctx, s.notifier, roomID, models.EventMessageDeleted, models.MessageDeletedPayload{MessageID: messageID})
	return nil
}

// MarkRead 單則訊息已讀
func (s *MessageService) MarkRead(ctx context.Context, userID, roomID, messageID primitive.ObjectID) error {
	if _, _, err := s.gate.RequireMessage(ctx, userID, roomID, messageID); err != nil {
		return err
	}
	return s.messages.MarkRead(ctx, messageID, userID)
}

// MarkRoomRead 聊天室內全部標記為已讀
func (s *MessageService) MarkRoomRead(ctx context.Context, userID, roomID primitive.ObjectID) error {
	if _, err := s.gate.RequireMember(ctx, userID, roomID); err != nil {
		return err
	}
	_, err := s.messages.MarkRoomRead(ctx, roomID, userID)
	return err
}

func (s *MessageService) UnreadCount(ctx context.Context, userID, roomID primitive.ObjectID) (int64, error) {
	if _, err := s.gate.RequireMember(ctx, userID, roomID); err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(ctx, roomID, userID)
}

// Typing 廣播正在輸入的狀態，不寫入資料庫
func (s *MessageService) Typing(ctx context.Context, userID, roomID primitive.ObjectID, isTyping bool) error {
	if _, err := s.gate.RequireMember(ctx, userID, roomID); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	notify(ctx, s.notifier, roomID, models.EventTyping, models.TypingPayload{
		RoomID:   roomID,
		UserID:   userID,
		UserName: user.Name,
		IsTyping: isTyping,
	})
	return nil
}

// decorate 填入作者名稱、頭像與回覆預覽。查詢失敗只記錄，訊息照樣回傳。
func (s *MessageService) decorate(ctx context.Context, roomID primitive.ObjectID, messages []models.Message) {
	if len(messages) == 0 {
		return
	}

	var replyIDs []primitive.ObjectID
	for _, m := range messages {
		if m.ReplyTo != nil {
			replyIDs = append(replyIDs, *m.ReplyTo)
		}
	}
	replies := map[primitive.ObjectID]models.Message{}
	if len(replyIDs) > 0 {
		found, err := s.messages.FindInRoom(ctx, roomID, replyIDs)
		if err != nil {
			log.Printf("[MESSAGE_REPLY_LOOKUP_ERROR] room %s: %v", roomID.Hex(), err)
		}
		for _, r := range found {
			replies[r.ID] = r
		}
	}

	seen := map[primitive.ObjectID]bool{}
	var userIDs []primitive.ObjectID
	addUser := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			userIDs = append(userIDs, id)
		}
	}
	for _, m := range messages {
		addUser(m.UserID)
	}
	for _, r := range replies {
		addUser(r.UserID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		log.Printf("[MESSAGE_AUTHOR_LOOKUP_ERROR] room %s: %v", roomID.Hex(), err)
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for i := range messages {
		m := &messages[i]
		if u, ok := byID[m.UserID]; ok {
			m.UserName = u.Name
			m.UserAvatar = u.Avatar
		}
		if m.ReplyTo == nil {
			continue
		}
		if r, ok := replies[*m.ReplyTo]; ok {
			m.ReplyToMessage = &models.ReplyPreview{
				ID:       r.ID,
				UserID:   r.UserID,
				UserName: byID[r.UserID].Name,
				Content:  r.Content,
			}
		}
	}
}
